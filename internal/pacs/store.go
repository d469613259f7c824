package pacs

import "time"

// ProjectRow is a project's descriptive metadata as held by the store.
type ProjectRow struct {
	Name                 string
	Keywords             string
	Description          string
	Parameters           string
	TimestampCreation    time.Time
	TimestampLastUpdated time.Time
}

// DirectoryRow is a directory's metadata. UniqueName is the full
// hierarchical identity (`project::dir::subdir`); DirName is the last
// segment. ParentDirectory is empty for top-level directories.
type DirectoryRow struct {
	UniqueName           string
	DirName              string
	ParentProject        string
	ParentDirectory      string
	Parameters           string
	TimestampCreation    time.Time
	TimestampLastUpdated time.Time
}

// FileRow is a file's descriptive metadata. The binary payload lives in the
// archive; Size here is the byte count recorded at upload time.
type FileRow struct {
	FileName             string
	ParentDirectory      string
	Format               string
	Size                 int64
	Tags                 string
	Modality             string
	TimestampCreation    time.Time
	TimestampLastUpdated time.Time
}

// CitationRow is one bibliographic reference attached to a project.
type CitationRow struct {
	ID          int64
	Citation    string
	Link        string
	ProjectName string
}

// Condition is one equality predicate for UpdateAttribute.
type Condition struct {
	Column string
	Value  string
}

// MetadataStore is the local relational store. It is the system of record
// for descriptive attributes, citations, timestamps, favorites and access
// requests; it knows nothing about binary payloads or roles.
//
// Get* methods return (nil, nil) when the entity does not exist. Constraint
// violations surface as *PersistenceError.
type MetadataStore interface {
	// Projects.
	InsertProject(p *ProjectRow) error
	GetProject(name string) (*ProjectRow, error)
	GetAllProjects() ([]*ProjectRow, error)
	DeleteProject(name string) error

	// Directories. ListDirectories returns a project's top-level
	// directories ordered by dir_name, optionally filtered by a substring
	// of dir_name; limit <= 0 means no limit. ListDirectorySubtree
	// returns every directory whose unique_name equals the prefix or
	// extends it by "::" segments; passing a project name yields the
	// whole project's directory tree.
	InsertDirectory(d *DirectoryRow) error
	GetDirectory(uniqueName string) (*DirectoryRow, error)
	GetSubdirectories(parentUniqueName string) ([]*DirectoryRow, error)
	ListDirectories(project, filter string, offset, limit int) ([]*DirectoryRow, error)
	ListDirectorySubtree(prefix string) ([]*DirectoryRow, error)
	CountDirectories(project string) (int, error)
	DeleteDirectory(uniqueName string) error

	// Files. InsertFile resolves a duplicate name by suffixing "(n)"
	// before the extension and returns the row actually written.
	// limit <= 0 means no limit. CountFilesSubtree counts files in every
	// directory of the subtree rooted at the given unique name.
	InsertFile(f *FileRow) (*FileRow, error)
	GetFile(directory, fileName string) (*FileRow, error)
	ListFiles(directory, filter string, offset, limit int) ([]*FileRow, error)
	CountFiles(directory string) (int, error)
	CountFilesSubtree(prefix string) (int, error)
	DeleteFile(directory, fileName string) error

	// UpdateAttribute sets a single column. Table and column must be on
	// the store's whitelist; anything else is an error before SQL runs.
	// One or two equality conditions select the row.
	UpdateAttribute(table, column, value string, conds ...Condition) error

	// Citations.
	InsertCitation(c *CitationRow) (int64, error)
	GetCitations(project string) ([]*CitationRow, error)
	DeleteCitation(id int64) error

	// Favorites.
	AddFavorite(directory, username string) error
	RemoveFavorite(directory, username string) error
	IsFavorite(directory, username string) (bool, error)
	GetFavorites(username string) ([]*DirectoryRow, error)

	// Access requests.
	AddRequest(project, username string) error
	RemoveRequest(project, username string) error
	GetRequests(project string) ([]string, error)

	// User activity: "new files since last visit" bookkeeping.
	// CountNewFiles treats a user with no recorded visit as having seen
	// nothing, so every file counts.
	MarkDirectoryChecked(username, directory string, at time.Time) error
	CountNewFiles(username, directory string) (int, error)

	Close() error
}
