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

// timestampDirLayout names the directory that absorbs a single-file upload
// when the caller did not name one.
const timestampDirLayout = "2006_01_02_15_04_05"

// UploadResult reports what an Insert produced: the directory the upload
// landed in and the files that made it.
type UploadResult struct {
	Directory *Directory
	Files     []*File
}

// Insert uploads a single file or a zip archive into the project.
// directoryName selects the target directory by display name (top level) or
// full unique name (nested); empty means a timestamp-named directory for a
// single file, or the archive's own root folder for a zip. tags and
// modality are applied to every uploaded file.
//
// Shape problems (unknown extension on a single file, more than one
// top-level folder in a zip) are rejected before any store is touched.
func (p *Project) Insert(ctx context.Context, sourcePath, directoryName, tags, modality, user string) (*UploadResult, error) {
	if strings.EqualFold(filepath.Ext(sourcePath), ".zip") {
		return p.insertZip(ctx, sourcePath, directoryName, tags, modality, user)
	}
	return p.insertSingleFile(ctx, sourcePath, directoryName, tags, modality, user)
}

func (p *Project) insertSingleFile(ctx context.Context, sourcePath, directoryName, tags, modality, user string) (*UploadResult, error) {
	if _, ok := FormatForFilename(sourcePath); !ok {
		return nil, &WrongUploadFormatError{Subject: filepath.Base(sourcePath)}
	}
	if directoryName == "" {
		directoryName = p.conn.clock.Now().Format(timestampDirLayout)
	}
	dir, err := p.resolveTargetDirectory(ctx, directoryName, user)
	if err != nil {
		return nil, err
	}
	f, err := p.uploadFileInto(ctx, dir, sourcePath, tags, modality, user)
	if err != nil {
		return nil, err
	}
	if err := p.conn.touchProject(p.row.Name); err != nil {
		p.conn.log.Warn("failed to bump project last_updated",
			"project", p.row.Name, "error", err)
	}
	return &UploadResult{Directory: dir, Files: []*File{f}}, nil
}

// resolveTargetDirectory maps a caller-supplied directory name to a handle:
// a name with "::" must already exist, a plain name is created at top level
// if missing.
func (p *Project) resolveTargetDirectory(ctx context.Context, name, user string) (*Directory, error) {
	if strings.Contains(name, "::") {
		return p.conn.GetDirectory(ctx, name)
	}
	return p.CreateDirectory(ctx, name, "", user)
}

// uploadFileInto writes one local file into the directory: metadata row
// first (which resolves name collisions by suffixing), then the archive
// bytes, with the row removed again if the archive leg fails.
func (p *Project) uploadFileInto(ctx context.Context, dir *Directory, sourcePath, tags, modality, user string) (*File, error) {
	name := filepath.Base(sourcePath)
	format, ok := FormatForFilename(name)
	if !ok {
		return nil, &WrongUploadFormatError{Subject: name}
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, &UploadError{Subject: name, Cause: err}
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return nil, &UploadError{Subject: name, Cause: err}
	}

	now := p.conn.clock.Now()
	row, err := p.conn.store.InsertFile(&FileRow{
		FileName:             name,
		ParentDirectory:      dir.UniqueName(),
		Format:               format,
		Size:                 info.Size(),
		Tags:                 tags,
		Modality:             modality,
		TimestampCreation:    now,
		TimestampLastUpdated: now,
	})
	if err != nil {
		return nil, &UploadError{Subject: name, Cause: err}
	}

	meta := UploadMetadata{Format: format, Tags: tags}
	if err := p.conn.archive.UploadFile(ctx, p.row.Name, dir.UniqueName(), row.FileName, src, meta); err != nil {
		compensate(p.conn.log, "upload file "+row.FileName, func() error {
			return p.conn.store.DeleteFile(dir.UniqueName(), row.FileName)
		})
		return nil, &UploadError{Subject: name, Cause: err}
	}

	if err := p.conn.touchDirectory(dir.UniqueName()); err != nil {
		p.conn.log.Warn("failed to bump directory last_updated",
			"directory", dir.UniqueName(), "error", err)
	}
	p.conn.log.Info("file uploaded",
		"file", row.FileName, "directory", dir.UniqueName(), "user", user)
	return &File{conn: p.conn, dir: dir, row: row}, nil
}

func (p *Project) insertZip(ctx context.Context, sourcePath, directoryName, tags, modality, user string) (*UploadResult, error) {
	staging, err := os.MkdirTemp("", "pacs2go-upload-")
	if err != nil {
		return nil, &UploadError{Subject: filepath.Base(sourcePath), Cause: err}
	}
	defer os.RemoveAll(staging)

	root, err := extractZip(sourcePath, staging)
	if err != nil {
		return nil, err
	}

	var base *Directory
	if directoryName != "" {
		// Unpack directly: the archive's root folder is not recreated,
		// its contents merge into the named directory.
		base, err = p.resolveTargetDirectory(ctx, directoryName, user)
	} else {
		base, err = p.CreateDirectory(ctx, filepath.Base(root), "", user)
	}
	if err != nil {
		return nil, err
	}

	result := &UploadResult{Directory: base}
	// Extracted path to created directory; keeps siblings in the zip
	// siblings in the project.
	dirFor := map[string]*Directory{root: base}

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		parent := dirFor[filepath.Dir(path)]
		if parent == nil {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			sub, err := parent.CreateSubdirectory(ctx, entry.Name(), "", user)
			if err != nil {
				p.conn.log.Warn("skipping archive folder",
					"folder", entry.Name(), "error", err)
				return fs.SkipDir
			}
			dirFor[path] = sub
			return nil
		}
		if _, ok := FormatForFilename(entry.Name()); !ok {
			p.conn.log.Warn("skipping file with unsupported format",
				"file", entry.Name())
			return nil
		}
		f, err := p.uploadFileInto(ctx, parent, path, tags, modality, user)
		if err != nil {
			p.conn.log.Warn("skipping file that failed to upload",
				"file", entry.Name(), "error", err)
			return nil
		}
		result.Files = append(result.Files, f)
		return nil
	})
	if walkErr != nil {
		return nil, &UploadError{Subject: filepath.Base(sourcePath), Cause: walkErr}
	}

	if err := p.conn.touchProject(p.row.Name); err != nil {
		p.conn.log.Warn("failed to bump project last_updated",
			"project", p.row.Name, "error", err)
	}
	return result, nil
}

// extractZip unpacks the archive into staging and returns the path of its
// single top-level folder. macOS resource-fork junk is dropped during
// extraction; an archive with zero or multiple top-level folders is
// rejected.
func extractZip(sourcePath, staging string) (string, error) {
	r, err := zip.OpenReader(sourcePath)
	if err != nil {
		return "", &UploadError{Subject: filepath.Base(sourcePath), Cause: err}
	}
	defer r.Close()

	for _, zf := range r.File {
		if skipZipEntry(zf.Name) {
			continue
		}
		dest := filepath.Join(staging, filepath.FromSlash(zf.Name))
		if !strings.HasPrefix(dest, filepath.Clean(staging)+string(os.PathSeparator)) {
			return "", &UploadError{
				Subject: filepath.Base(sourcePath),
				Cause:   fmt.Errorf("archive entry %q escapes extraction root", zf.Name),
			}
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return "", &UploadError{Subject: filepath.Base(sourcePath), Cause: err}
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", &UploadError{Subject: filepath.Base(sourcePath), Cause: err}
		}
		if err := writeZipEntry(zf, dest); err != nil {
			return "", &UploadError{Subject: filepath.Base(sourcePath), Cause: err}
		}
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", &UploadError{Subject: filepath.Base(sourcePath), Cause: err}
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", &WrongUploadFormatError{Subject: filepath.Base(sourcePath)}
	}
	return filepath.Join(staging, entries[0].Name()), nil
}

// skipZipEntry drops macOS metadata paths and resource-fork files.
func skipZipEntry(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if seg == "__MACOSX" || strings.HasPrefix(seg, "._") {
			return true
		}
	}
	return false
}

func writeZipEntry(zf *zip.File, dest string) error {
	in, err := zf.Open()
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
