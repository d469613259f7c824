package pacs

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Connection is the facade over the two stores. All entity handles
// (Project, Directory, File) are created through it and share its session.
type Connection struct {
	store   MetadataStore
	archive Archive
	log     Logger
	clock   Clock
	ids     IDGenerator
	user    string
}

// NewConnection authenticates against the archive and returns a ready
// facade. Nil log, clock or ids fall back to NopLogger, RealClock and
// UUIDGenerator.
func NewConnection(ctx context.Context, store MetadataStore, archive Archive, log Logger, clock Clock, ids IDGenerator) (*Connection, error) {
	if log == nil {
		log = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	user, err := archive.User(ctx)
	if err != nil {
		return nil, &FailedConnectionError{Cause: err}
	}
	return &Connection{
		store:   store,
		archive: archive,
		log:     log,
		clock:   clock,
		ids:     ids,
		user:    user,
	}, nil
}

// User returns the username the archive session was authenticated as.
func (c *Connection) User() string { return c.user }

// Close tears down the archive session and closes the store. A failed
// archive disconnect is returned as FailedDisconnectError but the store is
// closed regardless.
func (c *Connection) Close(ctx context.Context) error {
	var disconnectErr error
	if err := c.archive.Close(ctx); err != nil {
		disconnectErr = &FailedDisconnectError{Cause: err}
		c.log.Error("archive disconnect failed", "error", err)
	}
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("closing metadata store: %w", err)
	}
	return disconnectErr
}

// sanitizeProjectName strips characters the archive cannot carry in a
// project identifier.
func sanitizeProjectName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ';', ':':
			return -1
		}
		return r
	}, name)
}

// CreateProject creates a project in both stores, or returns the existing
// one unchanged (the attribute arguments only apply to a fresh create).
// A store half missing its counterpart is healed by creating the missing
// half. A fresh create runs archive first; if the metadata row then fails,
// the archive project is removed again.
func (c *Connection) CreateProject(ctx context.Context, name, description, keywords, parameters string) (*Project, error) {
	name = sanitizeProjectName(name)
	if name == "" {
		return nil, &CreationError{Subject: "project"}
	}

	exists, err := c.archive.ProjectExists(ctx, name)
	if err != nil {
		return nil, &CreationError{Subject: fmt.Sprintf("project %q", name), Cause: err}
	}
	createdInArchive := false
	if !exists {
		if err := c.archive.CreateProject(ctx, name); err != nil {
			return nil, &CreationError{Subject: fmt.Sprintf("project %q", name), Cause: err}
		}
		createdInArchive = true
	}

	row, err := c.store.GetProject(name)
	if err != nil {
		return nil, &CreationError{Subject: fmt.Sprintf("project %q", name), Cause: err}
	}
	if row == nil {
		now := c.clock.Now()
		row = &ProjectRow{
			Name:                 name,
			Description:          description,
			Keywords:             keywords,
			Parameters:           parameters,
			TimestampCreation:    now,
			TimestampLastUpdated: now,
		}
		if err := c.store.InsertProject(row); err != nil {
			if createdInArchive {
				compensate(c.log, "create project "+name, func() error {
					return c.archive.DeleteProject(ctx, name)
				})
			}
			return nil, &CreationError{Subject: fmt.Sprintf("project %q", name), Cause: err}
		}
		c.log.Info("project created", "project", name, "user", c.user)
	}

	return &Project{conn: c, row: row}, nil
}

// GetProject returns the project, or NotFoundError if either store is
// missing it.
func (c *Connection) GetProject(ctx context.Context, name string) (*Project, error) {
	row, err := c.store.GetProject(name)
	if err != nil {
		return nil, fmt.Errorf("fetching project %q: %w", name, err)
	}
	if row == nil {
		return nil, &NotFoundError{Subject: fmt.Sprintf("Project %q", name)}
	}
	exists, err := c.archive.ProjectExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching project %q: %w", name, err)
	}
	if !exists {
		c.log.Warn("project exists in metadata store but not in archive", "project", name)
		return nil, &NotFoundError{Subject: fmt.Sprintf("Project %q", name)}
	}
	return &Project{conn: c, row: row}, nil
}

// GetAllProjects lists every project known to the metadata store. With
// onlyAccessible set, projects where the current user holds no role are
// dropped.
func (c *Connection) GetAllProjects(ctx context.Context, onlyAccessible bool) ([]*Project, error) {
	rows, err := c.store.GetAllProjects()
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	projects := make([]*Project, 0, len(rows))
	for _, row := range rows {
		p := &Project{conn: c, row: row}
		if onlyAccessible {
			role, err := p.YourUserRole(ctx)
			if err != nil {
				c.log.Warn("skipping project with unreadable roles", "project", row.Name, "error", err)
				continue
			}
			if role == RoleNone {
				continue
			}
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// GetDirectory resolves a directory by its full hierarchical unique name.
func (c *Connection) GetDirectory(ctx context.Context, uniqueName string) (*Directory, error) {
	row, err := c.store.GetDirectory(uniqueName)
	if err != nil {
		return nil, fmt.Errorf("fetching directory %q: %w", uniqueName, err)
	}
	if row == nil {
		return nil, &NotFoundError{Subject: fmt.Sprintf("Directory %q", uniqueName)}
	}
	return &Directory{conn: c, row: row}, nil
}

// GetFile resolves a file by its directory's unique name and file name.
func (c *Connection) GetFile(ctx context.Context, directory, fileName string) (*File, error) {
	dir, err := c.GetDirectory(ctx, directory)
	if err != nil {
		return nil, err
	}
	row, err := c.store.GetFile(directory, fileName)
	if err != nil {
		return nil, fmt.Errorf("fetching file %q: %w", fileName, err)
	}
	if row == nil {
		return nil, &NotFoundError{Subject: fmt.Sprintf("File %q", fileName)}
	}
	return &File{conn: c, dir: dir, row: row}, nil
}

// GetFavorites returns the directories the user has favorited, skipping
// ones whose projects have since disappeared.
func (c *Connection) GetFavorites(ctx context.Context, username string) ([]*Directory, error) {
	rows, err := c.store.GetFavorites(username)
	if err != nil {
		return nil, fmt.Errorf("listing favorites for %q: %w", username, err)
	}
	dirs := make([]*Directory, 0, len(rows))
	for _, row := range rows {
		dirs = append(dirs, &Directory{conn: c, row: row})
	}
	return dirs, nil
}

// touchProject bumps a project's last_updated to now.
func (c *Connection) touchProject(name string) error {
	return c.store.UpdateAttribute("project", "timestamp_last_updated",
		c.clock.Now().Format(time.RFC3339),
		Condition{Column: "name", Value: name})
}

// touchDirectory bumps a directory's last_updated to now.
func (c *Connection) touchDirectory(uniqueName string) error {
	return c.store.UpdateAttribute("directory", "timestamp_last_updated",
		c.clock.Now().Format(time.RFC3339),
		Condition{Column: "unique_name", Value: uniqueName})
}
