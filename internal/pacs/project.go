package pacs

import (
	"context"
	"fmt"
	"time"
)

// Project is a handle on one project. Descriptive attributes come from the
// metadata store; role membership is read live from the archive.
type Project struct {
	conn *Connection
	row  *ProjectRow
}

func (p *Project) Name() string           { return p.row.Name }
func (p *Project) Description() string    { return p.row.Description }
func (p *Project) Keywords() string       { return p.row.Keywords }
func (p *Project) Parameters() string     { return p.row.Parameters }
func (p *Project) Created() time.Time     { return p.row.TimestampCreation }
func (p *Project) LastUpdated() time.Time { return p.row.TimestampLastUpdated }

// setAttribute writes one project column, bumps last_updated and logs the
// acting user.
func (p *Project) setAttribute(column, value, user string) error {
	err := p.conn.store.UpdateAttribute("project", column, value,
		Condition{Column: "name", Value: p.row.Name})
	if err != nil {
		return &AttributeUpdateError{
			Subject: fmt.Sprintf("the %s of project %q", column, p.row.Name),
			Cause:   err,
		}
	}
	if err := p.conn.touchProject(p.row.Name); err != nil {
		p.conn.log.Warn("failed to bump project last_updated",
			"project", p.row.Name, "error", err)
	}
	p.row.TimestampLastUpdated = p.conn.clock.Now()
	p.conn.log.Info("project attribute updated",
		"project", p.row.Name, "attribute", column, "user", user)
	return nil
}

func (p *Project) SetDescription(description, user string) error {
	if err := p.setAttribute("description", description, user); err != nil {
		return err
	}
	p.row.Description = description
	return nil
}

func (p *Project) SetKeywords(keywords, user string) error {
	if err := p.setAttribute("keywords", keywords, user); err != nil {
		return err
	}
	p.row.Keywords = keywords
	return nil
}

func (p *Project) SetParameters(parameters, user string) error {
	if err := p.setAttribute("parameters", parameters, user); err != nil {
		return err
	}
	p.row.Parameters = parameters
	return nil
}

// Roles returns the project's live role membership from the archive.
func (p *Project) Roles(ctx context.Context) (ProjectRoles, error) {
	roles, err := p.conn.archive.Roles(ctx, p.row.Name)
	if err != nil {
		return ProjectRoles{}, &NotFoundError{
			Subject: fmt.Sprintf("roles of project %q", p.row.Name),
			Cause:   err,
		}
	}
	return roles, nil
}

func (p *Project) Owners(ctx context.Context) ([]string, error) {
	roles, err := p.Roles(ctx)
	if err != nil {
		return nil, err
	}
	return roles.Owners, nil
}

func (p *Project) Members(ctx context.Context) ([]string, error) {
	roles, err := p.Roles(ctx)
	if err != nil {
		return nil, err
	}
	return roles.Members, nil
}

func (p *Project) Collaborators(ctx context.Context) ([]string, error) {
	roles, err := p.Roles(ctx)
	if err != nil {
		return nil, err
	}
	return roles.Collaborators, nil
}

// YourUserRole returns the role the connection's user holds on this
// project, or RoleNone.
func (p *Project) YourUserRole(ctx context.Context) (string, error) {
	roles, err := p.Roles(ctx)
	if err != nil {
		return "", err
	}
	return roles.RoleOf(p.conn.user), nil
}

// GrantRights gives the user the given role level and clears any pending
// access request from that user.
func (p *Project) GrantRights(ctx context.Context, user, level string) error {
	if err := p.conn.archive.GrantRole(ctx, p.row.Name, user, level); err != nil {
		return &AttributeUpdateError{
			Subject: fmt.Sprintf("the rights of user %q on project %q", user, p.row.Name),
			Cause:   err,
		}
	}
	if err := p.conn.store.RemoveRequest(p.row.Name, user); err != nil {
		p.conn.log.Warn("failed to clear access request after grant",
			"project", p.row.Name, "user", user, "error", err)
	}
	p.conn.log.Info("rights granted",
		"project", p.row.Name, "user", user, "level", level, "by", p.conn.user)
	return nil
}

// RevokeRights removes the user from the project's membership and clears
// any pending access request from that user.
func (p *Project) RevokeRights(ctx context.Context, user string) error {
	if err := p.conn.archive.RevokeRole(ctx, p.row.Name, user); err != nil {
		return &AttributeUpdateError{
			Subject: fmt.Sprintf("the rights of user %q on project %q", user, p.row.Name),
			Cause:   err,
		}
	}
	if err := p.conn.store.RemoveRequest(p.row.Name, user); err != nil {
		p.conn.log.Warn("failed to clear access request after revoke",
			"project", p.row.Name, "user", user, "error", err)
	}
	p.conn.log.Info("rights revoked",
		"project", p.row.Name, "user", user, "by", p.conn.user)
	return nil
}

// AddRequest records that the user asked for access. Duplicate requests
// are absorbed by the store's uniqueness rule.
func (p *Project) AddRequest(user string) error {
	if err := p.conn.store.AddRequest(p.row.Name, user); err != nil {
		return &CreationError{
			Subject: fmt.Sprintf("an access request for project %q", p.row.Name),
			Cause:   err,
		}
	}
	return nil
}

func (p *Project) RemoveRequest(user string) error {
	if err := p.conn.store.RemoveRequest(p.row.Name, user); err != nil {
		return &DeletionError{
			Subject: fmt.Sprintf("the access request of user %q", user),
			Cause:   err,
		}
	}
	return nil
}

// Requests lists the usernames with a pending access request.
func (p *Project) Requests() ([]string, error) {
	users, err := p.conn.store.GetRequests(p.row.Name)
	if err != nil {
		return nil, fmt.Errorf("listing access requests for %q: %w", p.row.Name, err)
	}
	return users, nil
}

// Citations lists the project's bibliographic references.
func (p *Project) Citations() ([]*CitationRow, error) {
	cits, err := p.conn.store.GetCitations(p.row.Name)
	if err != nil {
		return nil, fmt.Errorf("listing citations for %q: %w", p.row.Name, err)
	}
	return cits, nil
}

// AddCitation attaches a reference and bumps the project's last_updated.
func (p *Project) AddCitation(citation, link, user string) (int64, error) {
	id, err := p.conn.store.InsertCitation(&CitationRow{
		Citation:    citation,
		Link:        link,
		ProjectName: p.row.Name,
	})
	if err != nil {
		return 0, &CreationError{
			Subject: fmt.Sprintf("a citation for project %q", p.row.Name),
			Cause:   err,
		}
	}
	if err := p.conn.touchProject(p.row.Name); err != nil {
		p.conn.log.Warn("failed to bump project last_updated",
			"project", p.row.Name, "error", err)
	}
	p.conn.log.Info("citation added", "project", p.row.Name, "user", user)
	return id, nil
}

func (p *Project) DeleteCitation(id int64, user string) error {
	if err := p.conn.store.DeleteCitation(id); err != nil {
		return &DeletionError{Subject: "the citation", Cause: err}
	}
	p.conn.log.Info("citation deleted", "project", p.row.Name, "user", user)
	return nil
}

// NumberOfDirectories counts the project's directories, subdirectories
// included.
func (p *Project) NumberOfDirectories() (int, error) {
	n, err := p.conn.store.CountDirectories(p.row.Name)
	if err != nil {
		return 0, fmt.Errorf("counting directories of %q: %w", p.row.Name, err)
	}
	return n, nil
}

// CreateDirectory creates a top-level directory, or returns the existing
// one. The metadata row is written first; if the archive container then
// fails, the row is removed again.
func (p *Project) CreateDirectory(ctx context.Context, name, parameters, user string) (*Directory, error) {
	return p.conn.createDirectory(ctx, p.row.Name, "", name, parameters, user)
}

// createDirectory is the shared create-if-missing for top-level and nested
// directories. parentDir is the parent's unique name, empty for top level.
func (c *Connection) createDirectory(ctx context.Context, project, parentDir, name, parameters, user string) (*Directory, error) {
	if name == "" {
		return nil, &CreationError{Subject: "directory"}
	}
	parentName := project
	if parentDir != "" {
		parentName = parentDir
	}
	uniqueName := parentName + "::" + name

	row, err := c.store.GetDirectory(uniqueName)
	if err != nil {
		return nil, &CreationError{Subject: fmt.Sprintf("directory %q", name), Cause: err}
	}
	if row != nil {
		return &Directory{conn: c, row: row}, nil
	}

	now := c.clock.Now()
	row = &DirectoryRow{
		UniqueName:           uniqueName,
		DirName:              name,
		ParentProject:        project,
		ParentDirectory:      parentDir,
		Parameters:           parameters,
		TimestampCreation:    now,
		TimestampLastUpdated: now,
	}
	if err := c.store.InsertDirectory(row); err != nil {
		return nil, &CreationError{Subject: fmt.Sprintf("directory %q", name), Cause: err}
	}
	if err := c.archive.CreateDirectory(ctx, project, uniqueName); err != nil {
		compensate(c.log, "create directory "+uniqueName, func() error {
			return c.store.DeleteDirectory(uniqueName)
		})
		return nil, &CreationError{Subject: fmt.Sprintf("directory %q", name), Cause: err}
	}
	if err := c.touchProject(project); err != nil {
		c.log.Warn("failed to bump project last_updated", "project", project, "error", err)
	}
	c.log.Info("directory created", "directory", uniqueName, "user", user)
	return &Directory{conn: c, row: row}, nil
}

// GetDirectory resolves a top-level directory by its display name.
func (p *Project) GetDirectory(ctx context.Context, name string) (*Directory, error) {
	return p.conn.GetDirectory(ctx, p.row.Name+"::"+name)
}

// GetAllDirectories lists the project's top-level directories ordered by
// name, optionally filtered by a substring and paginated. Rows whose
// archive container has gone missing are logged and skipped.
func (p *Project) GetAllDirectories(ctx context.Context, filter string, offset, limit int) ([]*Directory, error) {
	rows, err := p.conn.store.ListDirectories(p.row.Name, filter, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing directories of %q: %w", p.row.Name, err)
	}
	dirs := make([]*Directory, 0, len(rows))
	for _, row := range rows {
		exists, err := p.conn.archive.DirectoryExists(ctx, p.row.Name, row.UniqueName)
		if err != nil {
			p.conn.log.Warn("skipping directory with unreadable archive state",
				"directory", row.UniqueName, "error", err)
			continue
		}
		if !exists {
			p.conn.log.Warn("directory exists in metadata store but not in archive",
				"directory", row.UniqueName)
			continue
		}
		dirs = append(dirs, &Directory{conn: p.conn, row: row})
	}
	return dirs, nil
}

// Delete removes the project from both stores: metadata first (cascading
// to directories, files, citations, favorites and requests), then the
// archive side.
func (p *Project) Delete(ctx context.Context) error {
	if err := p.conn.store.DeleteProject(p.row.Name); err != nil {
		return &DeletionError{Subject: fmt.Sprintf("project %q", p.row.Name), Cause: err}
	}
	if err := p.conn.archive.DeleteProject(ctx, p.row.Name); err != nil {
		return &DeletionError{Subject: fmt.Sprintf("project %q", p.row.Name), Cause: err}
	}
	p.conn.log.Info("project deleted", "project", p.row.Name, "user", p.conn.user)
	return nil
}
