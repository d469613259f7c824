package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pacs2go/internal/archive"
	"pacs2go/internal/config"
	"pacs2go/internal/database"
	"pacs2go/internal/encryption"
	"pacs2go/internal/pacs"
)

// PacsApp is the application layer between the CLI and the facade. It
// constructs all dependencies from config and manages their lifecycle on
// Close.
type PacsApp struct {
	cfg       *config.Config
	store     pacs.MetadataStore
	archive   pacs.Archive
	encryptor encryption.Encryptor
	conn      *pacs.Connection
	logFile   *os.File
}

// NewPacsApp creates a fully wired PacsApp from the given config. The
// caller must call Close when done.
func NewPacsApp(ctx context.Context, cfg *config.Config) (*PacsApp, error) {
	sessionID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, sessionID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating metadata store: %w", err)
	}

	ids := pacs.UUIDGenerator{}
	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive, ids, log)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Export)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating export encryptor: %w", err)
	}

	conn, err := pacs.NewConnection(ctx, store, arch, log, pacs.RealClock{}, ids)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, err
	}

	return &PacsApp{
		cfg:       cfg,
		store:     store,
		archive:   arch,
		encryptor: enc,
		conn:      conn,
		logFile:   logFile,
	}, nil
}

// Connection exposes the facade for CLI commands.
func (a *PacsApp) Connection() *pacs.Connection { return a.conn }

// Encryptor exposes the export encryptor for download commands.
func (a *PacsApp) Encryptor() encryption.Encryptor { return a.encryptor }

// ExportConfig exposes the export section for key management commands.
func (a *PacsApp) ExportConfig() config.ExportConfig { return a.cfg.Export }

// Close tears down the session and closes all resources.
func (a *PacsApp) Close(ctx context.Context) error {
	err := a.conn.Close(ctx)
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}

// DownloadProject exports a project as a zip, sealing it when export
// encryption is configured. Returns the written path.
func (a *PacsApp) DownloadProject(ctx context.Context, projectName, destDir string) (string, error) {
	p, err := a.conn.GetProject(ctx, projectName)
	if err != nil {
		return "", err
	}
	path, err := p.Download(ctx, destDir, true)
	if err != nil {
		return "", err
	}
	return encryption.SealFile(a.encryptor, path)
}

// DownloadDirectory exports a directory subtree as a zip, sealing it when
// export encryption is configured. Returns the written path.
func (a *PacsApp) DownloadDirectory(ctx context.Context, uniqueName, destDir string) (string, error) {
	d, err := a.conn.GetDirectory(ctx, uniqueName)
	if err != nil {
		return "", err
	}
	path, err := d.Download(ctx, destDir, true)
	if err != nil {
		return "", err
	}
	return encryption.SealFile(a.encryptor, path)
}

// DownloadDirectoryFlat streams the archive's own zip of a single directory,
// subdirectories excluded, sealing it when export encryption is configured.
// Returns the written path.
func (a *PacsApp) DownloadDirectoryFlat(ctx context.Context, uniqueName, destDir string) (string, error) {
	d, err := a.conn.GetDirectory(ctx, uniqueName)
	if err != nil {
		return "", err
	}
	rc, err := d.ArchiveZip(ctx)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating destination: %w", err)
	}
	path := filepath.Join(destDir, d.Name()+".zip")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing export file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing export file: %w", err)
	}
	return encryption.SealFile(a.encryptor, path)
}
