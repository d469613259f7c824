package pacs

import (
	"context"
	"io"
)

// Role levels as the archive understands them.
const (
	RoleOwner        = "owner"
	RoleMember       = "member"
	RoleCollaborator = "collaborator"
	RoleNone         = ""
)

// RemoteFile is per-file metadata as reported by a directory listing on the
// archive. Single-file metadata lookups do not exist on every backend, so
// listings are the only metadata source.
type RemoteFile struct {
	Name        string
	Format      string
	ContentType string
	Tags        string
	Size        int64
}

// UploadMetadata travels alongside the bytes on upload. Backends that can
// store it do; backends that cannot ignore it, the metadata store remains
// authoritative either way.
type UploadMetadata struct {
	Format      string
	ContentType string
	Tags        string
}

// ProjectRoles is a project's role membership as held by the archive.
type ProjectRoles struct {
	Owners        []string
	Members       []string
	Collaborators []string
}

// RoleOf returns the role level the given user holds, or RoleNone.
func (r ProjectRoles) RoleOf(user string) string {
	for _, u := range r.Owners {
		if u == user {
			return RoleOwner
		}
	}
	for _, u := range r.Members {
		if u == user {
			return RoleMember
		}
	}
	for _, u := range r.Collaborators {
		if u == user {
			return RoleCollaborator
		}
	}
	return RoleNone
}

// Archive is the remote binary store. It is the system of record for object
// existence, file bytes and role membership. Directories are addressed by
// their path segments, never by the store's joined unique name.
//
// Absence is reported as *NotFoundError, permission denial as a wrapped
// transport error; raw protocol errors never cross this interface.
type Archive interface {
	// User returns the authenticated username for this session.
	User(ctx context.Context) (string, error)

	CreateProject(ctx context.Context, project string) error
	ProjectExists(ctx context.Context, project string) (bool, error)
	DeleteProject(ctx context.Context, project string) error

	// CreateDirectory materializes an empty container so that the
	// directory exists before any file does.
	CreateDirectory(ctx context.Context, project, directory string) error
	DirectoryExists(ctx context.Context, project, directory string) (bool, error)
	DeleteDirectory(ctx context.Context, project, directory string) error

	ListFiles(ctx context.Context, project, directory string) ([]RemoteFile, error)
	UploadFile(ctx context.Context, project, directory, name string, data io.Reader, meta UploadMetadata) error
	DownloadFile(ctx context.Context, project, directory, name string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, project, directory, name string) error

	// DownloadDirectoryZip streams the directory's files as a zip
	// archive as assembled by the backend.
	DownloadDirectoryZip(ctx context.Context, project, directory string) (io.ReadCloser, error)

	Roles(ctx context.Context, project string) (ProjectRoles, error)
	GrantRole(ctx context.Context, project, user, level string) error
	RevokeRole(ctx context.Context, project, user string) error

	// Close invalidates the session. The Archive is unusable afterwards.
	Close(ctx context.Context) error
}
