package encryption

import (
	"fmt"

	"pacs2go/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the export config
// type.
func NewEncryptorFromConfig(cfg config.ExportConfig) (Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NewNoneEncryptor(), nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown export encryption type: %q", cfg.Type)
	}
}
