// Package database implements the metadata store on SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"pacs2go/internal/database/migrations"
	"pacs2go/internal/pacs"
)

// SQLiteStore implements pacs.MetadataStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ pacs.MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path (":memory:" for in-memory),
// applies pending migrations and returns the ready store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection. Exported for
// tools and tests that need the raw handle.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	// SQLite ships with foreign keys OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// fmtTime renders a timestamp as it is stored. UTC RFC3339 so that string
// comparison orders like time comparison.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isConstraintErr reports whether err is a SQLite constraint violation
// (duplicate key, missing foreign row).
func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

// isDuplicateKeyErr reports whether err is specifically a unique or primary
// key violation. Other constraint failures (a missing foreign row, a NOT
// NULL breach) are not duplicates and must not be retried under a new name.
func isDuplicateKeyErr(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.Code != sqlite3.ErrConstraint {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Projects

func (s *SQLiteStore) InsertProject(p *pacs.ProjectRow) error {
	_, err := s.db.Exec(`
		INSERT INTO project (name, keywords, description, parameters, timestamp_creation, timestamp_last_updated)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Keywords, p.Description, p.Parameters,
		fmtTime(p.TimestampCreation), fmtTime(p.TimestampLastUpdated))
	if err != nil {
		if isConstraintErr(err) {
			return &pacs.PersistenceError{Op: "insert project", Cause: err}
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(name string) (*pacs.ProjectRow, error) {
	row := s.db.QueryRow(`
		SELECT name, keywords, description, parameters, timestamp_creation, timestamp_last_updated
		FROM project WHERE name = ?`, name)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetAllProjects() ([]*pacs.ProjectRow, error) {
	rows, err := s.db.Query(`
		SELECT name, keywords, description, parameters, timestamp_creation, timestamp_last_updated
		FROM project ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*pacs.ProjectRow
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) DeleteProject(name string) error {
	if _, err := s.db.Exec(`DELETE FROM project WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (*pacs.ProjectRow, error) {
	var p pacs.ProjectRow
	var created, updated string
	err := r.Scan(&p.Name, &p.Keywords, &p.Description, &p.Parameters, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.TimestampCreation = parseTime(created)
	p.TimestampLastUpdated = parseTime(updated)
	return &p, nil
}

// Directories

func (s *SQLiteStore) InsertDirectory(d *pacs.DirectoryRow) error {
	var parent any
	if d.ParentDirectory != "" {
		parent = d.ParentDirectory
	}
	_, err := s.db.Exec(`
		INSERT INTO directory (unique_name, dir_name, parent_project, parent_directory, parameters, timestamp_creation, timestamp_last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.UniqueName, d.DirName, d.ParentProject, parent, d.Parameters,
		fmtTime(d.TimestampCreation), fmtTime(d.TimestampLastUpdated))
	if err != nil {
		if isConstraintErr(err) {
			return &pacs.PersistenceError{Op: "insert directory", Cause: err}
		}
		return fmt.Errorf("inserting directory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDirectory(uniqueName string) (*pacs.DirectoryRow, error) {
	row := s.db.QueryRow(`
		SELECT unique_name, dir_name, parent_project, parent_directory, parameters, timestamp_creation, timestamp_last_updated
		FROM directory WHERE unique_name = ?`, uniqueName)
	d, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching directory: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) GetSubdirectories(parentUniqueName string) ([]*pacs.DirectoryRow, error) {
	rows, err := s.db.Query(`
		SELECT unique_name, dir_name, parent_project, parent_directory, parameters, timestamp_creation, timestamp_last_updated
		FROM directory WHERE parent_directory = ? ORDER BY dir_name`, parentUniqueName)
	if err != nil {
		return nil, fmt.Errorf("listing subdirectories: %w", err)
	}
	defer rows.Close()
	return collectDirectories(rows)
}

func (s *SQLiteStore) ListDirectories(project, filter string, offset, limit int) ([]*pacs.DirectoryRow, error) {
	if limit <= 0 {
		// SQLite treats a negative limit as "no limit".
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT unique_name, dir_name, parent_project, parent_directory, parameters, timestamp_creation, timestamp_last_updated
		FROM directory
		WHERE parent_project = ? AND parent_directory IS NULL AND dir_name LIKE '%' || ? || '%'
		ORDER BY dir_name
		LIMIT ? OFFSET ?`, project, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	defer rows.Close()
	return collectDirectories(rows)
}

func (s *SQLiteStore) ListDirectorySubtree(prefix string) ([]*pacs.DirectoryRow, error) {
	rows, err := s.db.Query(`
		SELECT unique_name, dir_name, parent_project, parent_directory, parameters, timestamp_creation, timestamp_last_updated
		FROM directory
		WHERE unique_name = ? OR unique_name LIKE ? || '::%'
		ORDER BY unique_name`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing directory subtree: %w", err)
	}
	defer rows.Close()
	return collectDirectories(rows)
}

func (s *SQLiteStore) CountDirectories(project string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM directory WHERE parent_project = ?`, project).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting directories: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteDirectory(uniqueName string) error {
	if _, err := s.db.Exec(`DELETE FROM directory WHERE unique_name = ?`, uniqueName); err != nil {
		return fmt.Errorf("deleting directory: %w", err)
	}
	return nil
}

func scanDirectory(r rowScanner) (*pacs.DirectoryRow, error) {
	var d pacs.DirectoryRow
	var parent sql.NullString
	var created, updated string
	err := r.Scan(&d.UniqueName, &d.DirName, &d.ParentProject, &parent, &d.Parameters, &created, &updated)
	if err != nil {
		return nil, err
	}
	d.ParentDirectory = parent.String
	d.TimestampCreation = parseTime(created)
	d.TimestampLastUpdated = parseTime(updated)
	return &d, nil
}

func collectDirectories(rows *sql.Rows) ([]*pacs.DirectoryRow, error) {
	var dirs []*pacs.DirectoryRow
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning directory: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// Files

func (s *SQLiteStore) InsertFile(f *pacs.FileRow) (*pacs.FileRow, error) {
	name := f.FileName
	// A taken name gets a "(n)" suffix before the extension, counting up
	// until a free one is found.
	for attempt := 0; ; attempt++ {
		_, err := s.db.Exec(`
			INSERT INTO file (file_name, parent_directory, format, size, tags, modality, timestamp_creation, timestamp_last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			name, f.ParentDirectory, f.Format, f.Size, f.Tags, f.Modality,
			fmtTime(f.TimestampCreation), fmtTime(f.TimestampLastUpdated))
		if err == nil {
			row := *f
			row.FileName = name
			return &row, nil
		}
		if isDuplicateKeyErr(err) {
			ext := filepath.Ext(f.FileName)
			base := strings.TrimSuffix(f.FileName, ext)
			name = fmt.Sprintf("%s(%d)%s", base, attempt+1, ext)
			continue
		}
		if isConstraintErr(err) {
			return nil, &pacs.PersistenceError{Op: "insert file", Cause: err}
		}
		return nil, fmt.Errorf("inserting file: %w", err)
	}
}

func (s *SQLiteStore) GetFile(directory, fileName string) (*pacs.FileRow, error) {
	row := s.db.QueryRow(`
		SELECT file_name, parent_directory, format, size, tags, modality, timestamp_creation, timestamp_last_updated
		FROM file WHERE parent_directory = ? AND file_name = ?`, directory, fileName)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching file: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) ListFiles(directory, filter string, offset, limit int) ([]*pacs.FileRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT file_name, parent_directory, format, size, tags, modality, timestamp_creation, timestamp_last_updated
		FROM file
		WHERE parent_directory = ? AND file_name LIKE '%' || ? || '%'
		ORDER BY file_name
		LIMIT ? OFFSET ?`, directory, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []*pacs.FileRow
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) CountFiles(directory string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM file WHERE parent_directory = ?`, directory).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CountFilesSubtree(prefix string) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM file
		WHERE parent_directory IN (
			SELECT unique_name FROM directory
			WHERE unique_name = ? OR unique_name LIKE ? || '::%'
		)`, prefix, prefix).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting files in subtree: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteFile(directory, fileName string) error {
	_, err := s.db.Exec(`DELETE FROM file WHERE parent_directory = ? AND file_name = ?`, directory, fileName)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

func scanFile(r rowScanner) (*pacs.FileRow, error) {
	var f pacs.FileRow
	var created, updated string
	err := r.Scan(&f.FileName, &f.ParentDirectory, &f.Format, &f.Size, &f.Tags, &f.Modality, &created, &updated)
	if err != nil {
		return nil, err
	}
	f.TimestampCreation = parseTime(created)
	f.TimestampLastUpdated = parseTime(updated)
	return &f, nil
}

// Attribute updates

// updatableColumns is the whitelist for UpdateAttribute: table to settable
// columns. Identifiers never come from callers unchecked.
var updatableColumns = map[string]map[string]bool{
	"project": {
		"keywords":               true,
		"description":            true,
		"parameters":             true,
		"timestamp_last_updated": true,
	},
	"directory": {
		"parameters":             true,
		"timestamp_last_updated": true,
	},
	"file": {
		"tags":                   true,
		"modality":               true,
		"timestamp_last_updated": true,
	},
}

// conditionColumns is the whitelist of columns usable in UpdateAttribute
// predicates, per table.
var conditionColumns = map[string]map[string]bool{
	"project":   {"name": true},
	"directory": {"unique_name": true},
	"file":      {"file_name": true, "parent_directory": true},
}

func (s *SQLiteStore) UpdateAttribute(table, column, value string, conds ...pacs.Condition) error {
	cols, ok := updatableColumns[table]
	if !ok {
		return fmt.Errorf("table %q is not updatable", table)
	}
	if !cols[column] {
		return fmt.Errorf("column %q of table %q is not updatable", column, table)
	}
	if len(conds) == 0 || len(conds) > 2 {
		return fmt.Errorf("update needs one or two conditions, got %d", len(conds))
	}

	query := fmt.Sprintf("UPDATE %s SET %s = ?", table, column)
	args := []any{value}
	for i, cond := range conds {
		if !conditionColumns[table][cond.Column] {
			return fmt.Errorf("column %q of table %q cannot be a condition", cond.Column, table)
		}
		if i == 0 {
			query += fmt.Sprintf(" WHERE %s = ?", cond.Column)
		} else {
			query += fmt.Sprintf(" AND %s = ?", cond.Column)
		}
		args = append(args, cond.Value)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("updating %s.%s: %w", table, column, err)
	}
	return nil
}

// Citations

func (s *SQLiteStore) InsertCitation(c *pacs.CitationRow) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO citation (citation, link, project_name) VALUES (?, ?, ?)`,
		c.Citation, c.Link, c.ProjectName)
	if err != nil {
		if isConstraintErr(err) {
			return 0, &pacs.PersistenceError{Op: "insert citation", Cause: err}
		}
		return 0, fmt.Errorf("inserting citation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading citation id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetCitations(project string) ([]*pacs.CitationRow, error) {
	rows, err := s.db.Query(`
		SELECT cit_id, citation, link, project_name
		FROM citation WHERE project_name = ? ORDER BY cit_id`, project)
	if err != nil {
		return nil, fmt.Errorf("listing citations: %w", err)
	}
	defer rows.Close()

	var cits []*pacs.CitationRow
	for rows.Next() {
		var c pacs.CitationRow
		if err := rows.Scan(&c.ID, &c.Citation, &c.Link, &c.ProjectName); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		cits = append(cits, &c)
	}
	return cits, rows.Err()
}

func (s *SQLiteStore) DeleteCitation(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM citation WHERE cit_id = ?`, id); err != nil {
		return fmt.Errorf("deleting citation: %w", err)
	}
	return nil
}

// Favorites

func (s *SQLiteStore) AddFavorite(directory, username string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO favorite (directory, username) VALUES (?, ?)`,
		directory, username)
	if err != nil {
		if isConstraintErr(err) {
			return &pacs.PersistenceError{Op: "add favorite", Cause: err}
		}
		return fmt.Errorf("adding favorite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveFavorite(directory, username string) error {
	_, err := s.db.Exec(`DELETE FROM favorite WHERE directory = ? AND username = ?`, directory, username)
	if err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsFavorite(directory, username string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM favorite WHERE directory = ? AND username = ?`,
		directory, username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking favorite: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetFavorites(username string) ([]*pacs.DirectoryRow, error) {
	rows, err := s.db.Query(`
		SELECT d.unique_name, d.dir_name, d.parent_project, d.parent_directory, d.parameters, d.timestamp_creation, d.timestamp_last_updated
		FROM directory d
		JOIN favorite f ON f.directory = d.unique_name
		WHERE f.username = ?
		ORDER BY d.unique_name`, username)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer rows.Close()
	return collectDirectories(rows)
}

// Access requests

func (s *SQLiteStore) AddRequest(project, username string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO access_request (project, username) VALUES (?, ?)`,
		project, username)
	if err != nil {
		if isConstraintErr(err) {
			return &pacs.PersistenceError{Op: "add access request", Cause: err}
		}
		return fmt.Errorf("adding access request: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveRequest(project, username string) error {
	_, err := s.db.Exec(`DELETE FROM access_request WHERE project = ? AND username = ?`, project, username)
	if err != nil {
		return fmt.Errorf("removing access request: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRequests(project string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT username FROM access_request WHERE project = ? ORDER BY req_id`, project)
	if err != nil {
		return nil, fmt.Errorf("listing access requests: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning access request: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// User activity

func (s *SQLiteStore) MarkDirectoryChecked(username, directory string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO user_activity (username, directory, last_checked) VALUES (?, ?, ?)
		ON CONFLICT (username, directory) DO UPDATE SET last_checked = excluded.last_checked`,
		username, directory, fmtTime(at))
	if err != nil {
		if isConstraintErr(err) {
			return &pacs.PersistenceError{Op: "mark directory checked", Cause: err}
		}
		return fmt.Errorf("marking directory checked: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountNewFiles(username, directory string) (int, error) {
	// Timestamps are stored UTC RFC3339, so the string comparison below
	// is a time comparison. A user without a recorded visit compares
	// against the empty string and sees everything as new.
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM file
		WHERE parent_directory = ?
		  AND timestamp_creation > COALESCE(
			(SELECT last_checked FROM user_activity WHERE username = ? AND directory = ?), '')`,
		directory, username, directory).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting new files: %w", err)
	}
	return n, nil
}
