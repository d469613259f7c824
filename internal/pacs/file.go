package pacs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// File is a handle on one file. Descriptive attributes (format, tags,
// modality, timestamps, recorded size) come from the metadata store; the
// bytes themselves are fetched fresh from the archive on every access and
// never cached.
type File struct {
	conn *Connection
	dir  *Directory
	row  *FileRow
}

func (f *File) Name() string           { return f.row.FileName }
func (f *File) Directory() *Directory  { return f.dir }
func (f *File) Format() string         { return f.row.Format }
func (f *File) Tags() string           { return f.row.Tags }
func (f *File) Modality() string       { return f.row.Modality }
func (f *File) Size() int64            { return f.row.Size }
func (f *File) Created() time.Time     { return f.row.TimestampCreation }
func (f *File) LastUpdated() time.Time { return f.row.TimestampLastUpdated }

func (f *File) setAttribute(column, value, user string) error {
	err := f.conn.store.UpdateAttribute("file", column, value,
		Condition{Column: "file_name", Value: f.row.FileName},
		Condition{Column: "parent_directory", Value: f.row.ParentDirectory})
	if err != nil {
		return &AttributeUpdateError{
			Subject: fmt.Sprintf("the %s of file %q", column, f.row.FileName),
			Cause:   err,
		}
	}
	now := f.conn.clock.Now().Format(time.RFC3339)
	err = f.conn.store.UpdateAttribute("file", "timestamp_last_updated", now,
		Condition{Column: "file_name", Value: f.row.FileName},
		Condition{Column: "parent_directory", Value: f.row.ParentDirectory})
	if err != nil {
		f.conn.log.Warn("failed to bump file last_updated",
			"file", f.row.FileName, "error", err)
	}
	f.row.TimestampLastUpdated = f.conn.clock.Now()
	f.conn.log.Info("file attribute updated",
		"file", f.row.FileName, "directory", f.row.ParentDirectory,
		"attribute", column, "user", user)
	return nil
}

func (f *File) SetTags(tags, user string) error {
	if err := f.setAttribute("tags", tags, user); err != nil {
		return err
	}
	f.row.Tags = tags
	return nil
}

func (f *File) SetModality(modality, user string) error {
	if err := f.setAttribute("modality", modality, user); err != nil {
		return err
	}
	f.row.Modality = modality
	return nil
}

// Data streams the file's bytes from the archive. The caller closes the
// reader.
func (f *File) Data(ctx context.Context) (io.ReadCloser, error) {
	rc, err := f.conn.archive.DownloadFile(ctx, f.dir.ProjectName(), f.row.ParentDirectory, f.row.FileName)
	if err != nil {
		return nil, &DownloadError{Cause: err}
	}
	return rc, nil
}

// RemoteMetadata returns the archive's view of the file. Single-file
// metadata lookups do not exist on every backend, so this goes through the
// directory listing.
func (f *File) RemoteMetadata(ctx context.Context) (RemoteFile, error) {
	remote, err := f.conn.archive.ListFiles(ctx, f.dir.ProjectName(), f.row.ParentDirectory)
	if err != nil {
		return RemoteFile{}, &NotFoundError{
			Subject: fmt.Sprintf("File %q", f.row.FileName),
			Cause:   err,
		}
	}
	for _, rf := range remote {
		if rf.Name == f.row.FileName {
			return rf, nil
		}
	}
	return RemoteFile{}, &NotFoundError{Subject: fmt.Sprintf("File %q", f.row.FileName)}
}

// ContentType returns the archive-reported content type.
func (f *File) ContentType(ctx context.Context) (string, error) {
	rf, err := f.RemoteMetadata(ctx)
	if err != nil {
		return "", err
	}
	return rf.ContentType, nil
}

// LiveSize returns the archive-reported byte count, which is authoritative
// over the size recorded at upload time.
func (f *File) LiveSize(ctx context.Context) (int64, error) {
	rf, err := f.RemoteMetadata(ctx)
	if err != nil {
		return 0, err
	}
	return rf.Size, nil
}

// Download writes the file's bytes into destDir and returns the written
// path.
func (f *File) Download(ctx context.Context, destDir string) (string, error) {
	rc, err := f.Data(ctx)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &DownloadError{Cause: err}
	}
	path := filepath.Join(destDir, f.row.FileName)
	out, err := os.Create(path)
	if err != nil {
		return "", &DownloadError{Cause: err}
	}
	defer out.Close()
	if _, err := io.Copy(out, rc); err != nil {
		os.Remove(path)
		return "", &DownloadError{Cause: err}
	}
	return path, nil
}

// Delete removes the file: archive bytes first, then the metadata row, then
// the parent directory's last_updated bump.
func (f *File) Delete(ctx context.Context) error {
	err := f.conn.archive.DeleteFile(ctx, f.dir.ProjectName(), f.row.ParentDirectory, f.row.FileName)
	if err != nil {
		return &DeletionError{Subject: fmt.Sprintf("file %q", f.row.FileName), Cause: err}
	}
	if err := f.conn.store.DeleteFile(f.row.ParentDirectory, f.row.FileName); err != nil {
		return &DeletionError{Subject: fmt.Sprintf("file %q", f.row.FileName), Cause: err}
	}
	if err := f.conn.touchDirectory(f.row.ParentDirectory); err != nil {
		f.conn.log.Warn("failed to bump directory last_updated",
			"directory", f.row.ParentDirectory, "error", err)
	}
	f.conn.log.Info("file deleted",
		"file", f.row.FileName, "directory", f.row.ParentDirectory, "user", f.conn.user)
	return nil
}
