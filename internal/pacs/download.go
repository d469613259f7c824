package pacs

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Tree export. A project or directory is written to the local filesystem
// with one folder per directory (unique-name segments become path
// segments), every file fetched from the archive. Optionally the tree is
// then packed into a single zip.

// Download exports the whole project under destDir and returns the path of
// the export (a folder named after the project, or its zip).
func (p *Project) Download(ctx context.Context, destDir string, asZip bool) (string, error) {
	root := filepath.Join(destDir, p.row.Name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", &DownloadError{Cause: err}
	}
	dirs, err := p.conn.store.ListDirectorySubtree(p.row.Name)
	if err != nil {
		return "", &DownloadError{Cause: err}
	}
	for _, row := range dirs {
		if err := p.conn.exportDirectoryFiles(ctx, row, p.row.Name, root); err != nil {
			return "", err
		}
	}
	if !asZip {
		return root, nil
	}
	zipPath := root + ".zip"
	if err := zipTree(root, zipPath); err != nil {
		return "", &DownloadError{Cause: err}
	}
	if err := os.RemoveAll(root); err != nil {
		return "", &DownloadError{Cause: err}
	}
	return zipPath, nil
}

// Download exports this directory's subtree under destDir and returns the
// path of the export.
func (d *Directory) Download(ctx context.Context, destDir string, asZip bool) (string, error) {
	root := filepath.Join(destDir, d.row.DirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", &DownloadError{Cause: err}
	}
	dirs, err := d.conn.store.ListDirectorySubtree(d.row.UniqueName)
	if err != nil {
		return "", &DownloadError{Cause: err}
	}
	// Paths inside the export are relative to this directory's parent so
	// the subtree keeps its shape.
	prefix := d.row.UniqueName[:len(d.row.UniqueName)-len(d.row.DirName)]
	prefix = strings.TrimSuffix(prefix, "::")
	for _, row := range dirs {
		if err := d.conn.exportDirectoryFiles(ctx, row, prefix, filepath.Dir(root)); err != nil {
			return "", err
		}
	}
	if !asZip {
		return root, nil
	}
	zipPath := root + ".zip"
	if err := zipTree(root, zipPath); err != nil {
		return "", &DownloadError{Cause: err}
	}
	if err := os.RemoveAll(root); err != nil {
		return "", &DownloadError{Cause: err}
	}
	return zipPath, nil
}

// exportDirectoryFiles writes one directory row's files into the export
// tree. prefix is the unique-name prefix that maps onto exportRoot.
func (c *Connection) exportDirectoryFiles(ctx context.Context, row *DirectoryRow, prefix, exportRoot string) error {
	rel := strings.TrimPrefix(row.UniqueName, prefix)
	rel = strings.TrimPrefix(rel, "::")
	local := filepath.Join(exportRoot, filepath.FromSlash(strings.ReplaceAll(rel, "::", "/")))
	if err := os.MkdirAll(local, 0o755); err != nil {
		return &DownloadError{Cause: err}
	}
	files, err := c.store.ListFiles(row.UniqueName, "", 0, 0)
	if err != nil {
		return &DownloadError{Cause: err}
	}
	for _, f := range files {
		rc, err := c.archive.DownloadFile(ctx, row.ParentProject, row.UniqueName, f.FileName)
		if err != nil {
			return &DownloadError{Cause: fmt.Errorf("fetching %s: %w", f.FileName, err)}
		}
		if err := writeStream(rc, filepath.Join(local, f.FileName)); err != nil {
			return &DownloadError{Cause: err}
		}
	}
	return nil
}

func writeStream(rc io.ReadCloser, path string) error {
	defer rc.Close()
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// zipTree packs the directory at srcDir into a zip whose entries are
// rooted at srcDir's base name.
func zipTree(srcDir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	base := filepath.Base(srcDir)
	err = filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = base + "/" + filepath.ToSlash(rel)
		}
		if entry.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		zw.Close()
		out.Close()
		os.Remove(zipPath)
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
