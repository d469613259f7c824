package pacs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Directory is a handle on one directory. Its identity is the hierarchical
// unique name `project::dir::subdir`, recomputed from parent and display
// name on creation and never treated as an opaque token.
type Directory struct {
	conn *Connection
	row  *DirectoryRow
}

// Name returns the display name, the last segment of the unique name.
func (d *Directory) Name() string { return d.row.DirName }

// UniqueName returns the full hierarchical identity.
func (d *Directory) UniqueName() string { return d.row.UniqueName }

// ProjectName returns the project this directory belongs to.
func (d *Directory) ProjectName() string { return d.row.ParentProject }

func (d *Directory) Parameters() string     { return d.row.Parameters }
func (d *Directory) Created() time.Time     { return d.row.TimestampCreation }
func (d *Directory) LastUpdated() time.Time { return d.row.TimestampLastUpdated }

// IsTopLevel reports whether the directory sits directly under its project.
func (d *Directory) IsTopLevel() bool { return d.row.ParentDirectory == "" }

func (d *Directory) SetParameters(parameters, user string) error {
	err := d.conn.store.UpdateAttribute("directory", "parameters", parameters,
		Condition{Column: "unique_name", Value: d.row.UniqueName})
	if err != nil {
		return &AttributeUpdateError{
			Subject: fmt.Sprintf("the parameters of directory %q", d.row.DirName),
			Cause:   err,
		}
	}
	if err := d.conn.touchDirectory(d.row.UniqueName); err != nil {
		d.conn.log.Warn("failed to bump directory last_updated",
			"directory", d.row.UniqueName, "error", err)
	}
	d.row.Parameters = parameters
	d.row.TimestampLastUpdated = d.conn.clock.Now()
	d.conn.log.Info("directory parameters updated",
		"directory", d.row.UniqueName, "user", user)
	return nil
}

// CreateSubdirectory creates a child directory, or returns the existing one.
func (d *Directory) CreateSubdirectory(ctx context.Context, name, parameters, user string) (*Directory, error) {
	return d.conn.createDirectory(ctx, d.row.ParentProject, d.row.UniqueName, name, parameters, user)
}

// Subdirectories lists the direct children.
func (d *Directory) Subdirectories() ([]*Directory, error) {
	rows, err := d.conn.store.GetSubdirectories(d.row.UniqueName)
	if err != nil {
		return nil, fmt.Errorf("listing subdirectories of %q: %w", d.row.UniqueName, err)
	}
	dirs := make([]*Directory, 0, len(rows))
	for _, row := range rows {
		dirs = append(dirs, &Directory{conn: d.conn, row: row})
	}
	return dirs, nil
}

// Files lists this directory's files by asking the archive and matching
// each remote entry against the metadata store. Entries present in only
// one store are logged and skipped.
func (d *Directory) Files(ctx context.Context) ([]*File, error) {
	remote, err := d.conn.archive.ListFiles(ctx, d.row.ParentProject, d.row.UniqueName)
	if err != nil {
		return nil, &NotFoundError{
			Subject: fmt.Sprintf("files of directory %q", d.row.DirName),
			Cause:   err,
		}
	}
	rows, err := d.conn.store.ListFiles(d.row.UniqueName, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("listing files of %q: %w", d.row.UniqueName, err)
	}
	byName := make(map[string]*FileRow, len(rows))
	for _, row := range rows {
		byName[row.FileName] = row
	}

	files := make([]*File, 0, len(remote))
	for _, rf := range remote {
		row, ok := byName[rf.Name]
		if !ok {
			d.conn.log.Warn("file exists in archive but not in metadata store",
				"directory", d.row.UniqueName, "file", rf.Name)
			continue
		}
		delete(byName, rf.Name)
		files = append(files, &File{conn: d.conn, dir: d, row: row})
	}
	for name := range byName {
		d.conn.log.Warn("file exists in metadata store but not in archive",
			"directory", d.row.UniqueName, "file", name)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].row.FileName < files[j].row.FileName
	})
	return files, nil
}

// FilesSlice returns a page of files from the metadata store only, ordered
// by name. Cheaper than Files since the archive is not consulted.
func (d *Directory) FilesSlice(filter string, offset, limit int) ([]*File, error) {
	rows, err := d.conn.store.ListFiles(d.row.UniqueName, filter, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing files of %q: %w", d.row.UniqueName, err)
	}
	files := make([]*File, 0, len(rows))
	for _, row := range rows {
		files = append(files, &File{conn: d.conn, dir: d, row: row})
	}
	return files, nil
}

// GetFile resolves one file by name.
func (d *Directory) GetFile(fileName string) (*File, error) {
	row, err := d.conn.store.GetFile(d.row.UniqueName, fileName)
	if err != nil {
		return nil, fmt.Errorf("fetching file %q: %w", fileName, err)
	}
	if row == nil {
		return nil, &NotFoundError{Subject: fmt.Sprintf("File %q", fileName)}
	}
	return &File{conn: d.conn, dir: d, row: row}, nil
}

// NumberOfFiles counts files directly in this directory.
func (d *Directory) NumberOfFiles() (int, error) {
	n, err := d.conn.store.CountFiles(d.row.UniqueName)
	if err != nil {
		return 0, fmt.Errorf("counting files of %q: %w", d.row.UniqueName, err)
	}
	return n, nil
}

// NumberOfFilesSubtree counts files in this directory and all descendants.
func (d *Directory) NumberOfFilesSubtree() (int, error) {
	n, err := d.conn.store.CountFilesSubtree(d.row.UniqueName)
	if err != nil {
		return 0, fmt.Errorf("counting files under %q: %w", d.row.UniqueName, err)
	}
	return n, nil
}

// Favorite marks the directory as a favorite of the user. Repeated calls
// are harmless.
func (d *Directory) Favorite(username string) error {
	if err := d.conn.store.AddFavorite(d.row.UniqueName, username); err != nil {
		return &CreationError{Subject: "the favorite", Cause: err}
	}
	return nil
}

func (d *Directory) Unfavorite(username string) error {
	if err := d.conn.store.RemoveFavorite(d.row.UniqueName, username); err != nil {
		return &DeletionError{Subject: "the favorite", Cause: err}
	}
	return nil
}

func (d *Directory) IsFavorite(username string) (bool, error) {
	fav, err := d.conn.store.IsFavorite(d.row.UniqueName, username)
	if err != nil {
		return false, fmt.Errorf("checking favorite of %q: %w", d.row.UniqueName, err)
	}
	return fav, nil
}

// NewFilesForUser counts files added since the user last marked the
// directory as checked. A user who never checked sees every file as new.
func (d *Directory) NewFilesForUser(username string) (int, error) {
	n, err := d.conn.store.CountNewFiles(username, d.row.UniqueName)
	if err != nil {
		return 0, fmt.Errorf("counting new files in %q: %w", d.row.UniqueName, err)
	}
	return n, nil
}

// MarkChecked records that the user has seen the directory's current state.
func (d *Directory) MarkChecked(username string) error {
	err := d.conn.store.MarkDirectoryChecked(username, d.row.UniqueName, d.conn.clock.Now())
	if err != nil {
		return fmt.Errorf("marking %q checked: %w", d.row.UniqueName, err)
	}
	return nil
}

// ArchiveZip streams the archive's own zip rendering of this directory's
// files, subdirectories excluded. Cheaper than Download for a flat
// directory since nothing is staged locally. The caller closes the reader.
func (d *Directory) ArchiveZip(ctx context.Context) (io.ReadCloser, error) {
	rc, err := d.conn.archive.DownloadDirectoryZip(ctx, d.row.ParentProject, d.row.UniqueName)
	if err != nil {
		return nil, &DownloadError{Cause: err}
	}
	return rc, nil
}

// Delete removes the directory and everything beneath it. Archive
// containers go depth first so a failure never orphans children; the
// metadata rows cascade from the root row. The parent's last_updated is
// bumped afterwards.
func (d *Directory) Delete(ctx context.Context) error {
	subtree, err := d.conn.store.ListDirectorySubtree(d.row.UniqueName)
	if err != nil {
		return &DeletionError{Subject: fmt.Sprintf("directory %q", d.row.DirName), Cause: err}
	}
	// Deepest first.
	sort.Slice(subtree, func(i, j int) bool {
		return strings.Count(subtree[i].UniqueName, "::") > strings.Count(subtree[j].UniqueName, "::")
	})
	for _, row := range subtree {
		if err := d.conn.archive.DeleteDirectory(ctx, d.row.ParentProject, row.UniqueName); err != nil {
			return &DeletionError{Subject: fmt.Sprintf("directory %q", row.DirName), Cause: err}
		}
	}
	if err := d.conn.store.DeleteDirectory(d.row.UniqueName); err != nil {
		return &DeletionError{Subject: fmt.Sprintf("directory %q", d.row.DirName), Cause: err}
	}
	if d.row.ParentDirectory != "" {
		if err := d.conn.touchDirectory(d.row.ParentDirectory); err != nil {
			d.conn.log.Warn("failed to bump parent last_updated",
				"directory", d.row.ParentDirectory, "error", err)
		}
	}
	if err := d.conn.touchProject(d.row.ParentProject); err != nil {
		d.conn.log.Warn("failed to bump project last_updated",
			"project", d.row.ParentProject, "error", err)
	}
	d.conn.log.Info("directory deleted",
		"directory", d.row.UniqueName, "user", d.conn.user)
	return nil
}
