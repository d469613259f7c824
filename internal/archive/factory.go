package archive

import (
	"context"
	"fmt"

	"pacs2go/internal/config"
	"pacs2go/internal/pacs"
)

// NewArchiveFromConfig creates an Archive implementation based on the
// archive config type.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig, ids pacs.IDGenerator, log pacs.Logger) (pacs.Archive, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryArchive(cfg.User), nil
	case "xnat":
		return NewXNATArchive(ctx, cfg.XNATBaseURL, cfg.XNATUsername, cfg.XNATPassword, ids, log)
	case "s3":
		return NewS3Archive(ctx, S3ArchiveConfig{
			Bucket:    cfg.S3Bucket,
			KeyPrefix: cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			User:      cfg.User,
		})
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
