package encryption

import (
	"testing"

	"pacs2go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty type means passthrough", func(t *testing.T) {
		e, err := NewEncryptorFromConfig(config.ExportConfig{})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*NoneEncryptor); !ok {
			t.Errorf("got %T, want *NoneEncryptor", e)
		}
	})

	t.Run("age", func(t *testing.T) {
		e, err := NewEncryptorFromConfig(config.ExportConfig{Type: "age", PublicKeyPath: "k.pub"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*AgeEncryptor); !ok {
			t.Errorf("got %T, want *AgeEncryptor", e)
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		if _, err := NewEncryptorFromConfig(config.ExportConfig{Type: "rot13"}); err == nil {
			t.Fatal("NewEncryptorFromConfig() accepted an unknown type")
		}
	})
}
