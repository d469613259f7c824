package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"pacs2go/internal/pacs"
)

// MemoryArchive implements the archive in process memory. It backs the
// "memory" config type and the test suites; semantics mirror the real
// backends (directory listings as the only file-metadata source, absence
// as NotFoundError).
type MemoryArchive struct {
	mu       sync.Mutex
	user     string
	projects map[string]*memProject
	closed   bool

	// Error injection for tests. When set, the corresponding operation
	// fails with the given error.
	UploadErr          error
	CreateDirectoryErr error
	DeleteProjectErr   error
	DirectoryExistsErr error
}

type memProject struct {
	roles pacs.ProjectRoles
	dirs  map[string]map[string]memObject
}

type memObject struct {
	data []byte
	meta pacs.UploadMetadata
}

var _ pacs.Archive = (*MemoryArchive)(nil)

// NewMemoryArchive returns an empty archive whose session reports the
// given username.
func NewMemoryArchive(user string) *MemoryArchive {
	if user == "" {
		user = "local"
	}
	return &MemoryArchive{
		user:     user,
		projects: make(map[string]*memProject),
	}
}

func (a *MemoryArchive) User(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return "", &pacs.NotFoundError{Subject: "session"}
	}
	return a.user, nil
}

func (a *MemoryArchive) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *MemoryArchive) CreateProject(ctx context.Context, project string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.projects[project]; !ok {
		a.projects[project] = &memProject{
			roles: pacs.ProjectRoles{Owners: []string{a.user}},
			dirs:  make(map[string]map[string]memObject),
		}
	}
	return nil
}

func (a *MemoryArchive) ProjectExists(ctx context.Context, project string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.projects[project]
	return ok, nil
}

func (a *MemoryArchive) DeleteProject(ctx context.Context, project string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.DeleteProjectErr != nil {
		return a.DeleteProjectErr
	}
	delete(a.projects, project)
	return nil
}

func (a *MemoryArchive) CreateDirectory(ctx context.Context, project, directory string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.CreateDirectoryErr != nil {
		return a.CreateDirectoryErr
	}
	p, ok := a.projects[project]
	if !ok {
		return &pacs.NotFoundError{Subject: "project " + project}
	}
	if _, ok := p.dirs[directory]; !ok {
		p.dirs[directory] = make(map[string]memObject)
	}
	return nil
}

func (a *MemoryArchive) DirectoryExists(ctx context.Context, project, directory string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.DirectoryExistsErr != nil {
		return false, a.DirectoryExistsErr
	}
	p, ok := a.projects[project]
	if !ok {
		return false, nil
	}
	_, ok = p.dirs[directory]
	return ok, nil
}

func (a *MemoryArchive) DeleteDirectory(ctx context.Context, project, directory string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.projects[project]
	if !ok {
		return &pacs.NotFoundError{Subject: "project " + project}
	}
	delete(p.dirs, directory)
	return nil
}

func (a *MemoryArchive) dir(project, directory string) (map[string]memObject, error) {
	p, ok := a.projects[project]
	if !ok {
		return nil, &pacs.NotFoundError{Subject: "project " + project}
	}
	d, ok := p.dirs[directory]
	if !ok {
		return nil, &pacs.NotFoundError{Subject: "directory " + directory}
	}
	return d, nil
}

func (a *MemoryArchive) ListFiles(ctx context.Context, project, directory string) ([]pacs.RemoteFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, err := a.dir(project, directory)
	if err != nil {
		return nil, err
	}
	files := make([]pacs.RemoteFile, 0, len(d))
	for name, obj := range d {
		files = append(files, pacs.RemoteFile{
			Name:        name,
			Format:      obj.meta.Format,
			ContentType: obj.meta.ContentType,
			Tags:        obj.meta.Tags,
			Size:        int64(len(obj.data)),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (a *MemoryArchive) UploadFile(ctx context.Context, project, directory, name string, data io.Reader, meta pacs.UploadMetadata) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.UploadErr != nil {
		return a.UploadErr
	}
	p, ok := a.projects[project]
	if !ok {
		return &pacs.NotFoundError{Subject: "project " + project}
	}
	d, ok := p.dirs[directory]
	if !ok {
		// Uploading into a fresh directory materializes it, like the
		// real backends do.
		d = make(map[string]memObject)
		p.dirs[directory] = d
	}
	d[name] = memObject{data: buf, meta: meta}
	return nil
}

func (a *MemoryArchive) DownloadFile(ctx context.Context, project, directory, name string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, err := a.dir(project, directory)
	if err != nil {
		return nil, err
	}
	obj, ok := d[name]
	if !ok {
		return nil, &pacs.NotFoundError{Subject: "file " + name}
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (a *MemoryArchive) DeleteFile(ctx context.Context, project, directory, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, err := a.dir(project, directory)
	if err != nil {
		return err
	}
	if _, ok := d[name]; !ok {
		return &pacs.NotFoundError{Subject: "file " + name}
	}
	delete(d, name)
	return nil
}

func (a *MemoryArchive) DownloadDirectoryZip(ctx context.Context, project, directory string) (io.ReadCloser, error) {
	files, err := a.ListFiles(ctx, project, directory)
	if err != nil {
		return nil, err
	}
	base := directory
	if i := strings.LastIndex(directory, "::"); i >= 0 {
		base = directory[i+2:]
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(base + "/" + f.Name)
		if err != nil {
			return nil, err
		}
		rc, err := a.DownloadFile(ctx, project, directory, f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(w, rc); err != nil {
			rc.Close()
			return nil, err
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

func (a *MemoryArchive) Roles(ctx context.Context, project string) (pacs.ProjectRoles, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.projects[project]
	if !ok {
		return pacs.ProjectRoles{}, &pacs.NotFoundError{Subject: "project " + project}
	}
	return p.roles, nil
}

func (a *MemoryArchive) GrantRole(ctx context.Context, project, user, level string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.projects[project]
	if !ok {
		return &pacs.NotFoundError{Subject: "project " + project}
	}
	p.roles.Owners = remove(p.roles.Owners, user)
	p.roles.Members = remove(p.roles.Members, user)
	p.roles.Collaborators = remove(p.roles.Collaborators, user)
	switch level {
	case pacs.RoleOwner:
		p.roles.Owners = append(p.roles.Owners, user)
	case pacs.RoleMember:
		p.roles.Members = append(p.roles.Members, user)
	case pacs.RoleCollaborator:
		p.roles.Collaborators = append(p.roles.Collaborators, user)
	default:
		return &pacs.NotFoundError{Subject: "role level " + level}
	}
	return nil
}

func (a *MemoryArchive) RevokeRole(ctx context.Context, project, user string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.projects[project]
	if !ok {
		return &pacs.NotFoundError{Subject: "project " + project}
	}
	p.roles.Owners = remove(p.roles.Owners, user)
	p.roles.Members = remove(p.roles.Members, user)
	p.roles.Collaborators = remove(p.roles.Collaborators, user)
	return nil
}
