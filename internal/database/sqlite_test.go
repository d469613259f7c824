package database

import (
	"errors"
	"testing"
	"time"

	"pacs2go/internal/pacs"
)

// newTestStore creates an in-memory store with the schema applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func insertTestProject(t *testing.T, s *SQLiteStore, name string) {
	t.Helper()
	err := s.InsertProject(&pacs.ProjectRow{
		Name:                 name,
		TimestampCreation:    testTime,
		TimestampLastUpdated: testTime,
	})
	if err != nil {
		t.Fatalf("InsertProject() error = %v", err)
	}
}

func insertTestDirectory(t *testing.T, s *SQLiteStore, project, parent, name string) string {
	t.Helper()
	parentName := project
	if parent != "" {
		parentName = parent
	}
	unique := parentName + "::" + name
	err := s.InsertDirectory(&pacs.DirectoryRow{
		UniqueName:           unique,
		DirName:              name,
		ParentProject:        project,
		ParentDirectory:      parent,
		TimestampCreation:    testTime,
		TimestampLastUpdated: testTime,
	})
	if err != nil {
		t.Fatalf("InsertDirectory() error = %v", err)
	}
	return unique
}

func insertTestFile(t *testing.T, s *SQLiteStore, directory, name string, created time.Time) *pacs.FileRow {
	t.Helper()
	row, err := s.InsertFile(&pacs.FileRow{
		FileName:             name,
		ParentDirectory:      directory,
		Format:               "JPEG",
		Size:                 42,
		TimestampCreation:    created,
		TimestampLastUpdated: created,
	})
	if err != nil {
		t.Fatalf("InsertFile() error = %v", err)
	}
	return row
}

func TestSQLiteStore_GetProject(t *testing.T) {
	t.Run("returns nil when project not found", func(t *testing.T) {
		s := newTestStore(t)

		p, err := s.GetProject("nope")
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if p != nil {
			t.Errorf("GetProject() = %v, want nil", p)
		}
	})

	t.Run("round-trips fields and timestamps", func(t *testing.T) {
		s := newTestStore(t)
		err := s.InsertProject(&pacs.ProjectRow{
			Name:                 "Study1",
			Keywords:             "brain, mri",
			Description:          "test study",
			TimestampCreation:    testTime,
			TimestampLastUpdated: testTime,
		})
		if err != nil {
			t.Fatalf("InsertProject() error = %v", err)
		}

		p, err := s.GetProject("Study1")
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if p == nil {
			t.Fatal("GetProject() = nil, want project")
		}
		if p.Keywords != "brain, mri" {
			t.Errorf("Keywords = %q, want %q", p.Keywords, "brain, mri")
		}
		if !p.TimestampCreation.Equal(testTime) {
			t.Errorf("TimestampCreation = %v, want %v", p.TimestampCreation, testTime)
		}
	})

	t.Run("duplicate insert is a persistence error", func(t *testing.T) {
		s := newTestStore(t)
		insertTestProject(t, s, "Study1")

		err := s.InsertProject(&pacs.ProjectRow{Name: "Study1", TimestampCreation: testTime, TimestampLastUpdated: testTime})
		var perr *pacs.PersistenceError
		if !errors.As(err, &perr) {
			t.Fatalf("InsertProject() error = %v, want PersistenceError", err)
		}
	})
}

func TestSQLiteStore_ListDirectories(t *testing.T) {
	setup := func(t *testing.T) *SQLiteStore {
		s := newTestStore(t)
		insertTestProject(t, s, "P")
		for _, name := range []string{"delta", "alpha", "charlie", "bravo"} {
			insertTestDirectory(t, s, "P", "", name)
		}
		return s
	}

	t.Run("orders by name", func(t *testing.T) {
		s := setup(t)

		dirs, err := s.ListDirectories("P", "", 0, 0)
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		want := []string{"alpha", "bravo", "charlie", "delta"}
		if len(dirs) != len(want) {
			t.Fatalf("got %d directories, want %d", len(dirs), len(want))
		}
		for i, d := range dirs {
			if d.DirName != want[i] {
				t.Errorf("dirs[%d] = %q, want %q", i, d.DirName, want[i])
			}
		}
	})

	t.Run("pages are stable and non-overlapping", func(t *testing.T) {
		s := setup(t)

		page1, err := s.ListDirectories("P", "", 0, 2)
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		page2, err := s.ListDirectories("P", "", 2, 2)
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		if len(page1) != 2 || len(page2) != 2 {
			t.Fatalf("page sizes = %d, %d, want 2, 2", len(page1), len(page2))
		}
		if page1[0].DirName != "alpha" || page1[1].DirName != "bravo" {
			t.Errorf("page1 = %q, %q", page1[0].DirName, page1[1].DirName)
		}
		if page2[0].DirName != "charlie" || page2[1].DirName != "delta" {
			t.Errorf("page2 = %q, %q", page2[0].DirName, page2[1].DirName)
		}
	})

	t.Run("filters by substring", func(t *testing.T) {
		s := setup(t)

		dirs, err := s.ListDirectories("P", "lt", 0, 0)
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		if len(dirs) != 1 || dirs[0].DirName != "delta" {
			t.Fatalf("filtered = %v, want just delta", dirs)
		}
	})

	t.Run("excludes nested directories", func(t *testing.T) {
		s := setup(t)
		insertTestDirectory(t, s, "P", "P::alpha", "nested")

		dirs, err := s.ListDirectories("P", "", 0, 0)
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		if len(dirs) != 4 {
			t.Errorf("got %d directories, want 4 top-level", len(dirs))
		}
	})
}

func TestSQLiteStore_ListDirectorySubtree(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")
	insertTestDirectory(t, s, "P", "", "a")
	insertTestDirectory(t, s, "P", "P::a", "b")
	insertTestDirectory(t, s, "P", "P::a::b", "c")
	// Sibling whose name shares a prefix with "a"; must not match.
	insertTestDirectory(t, s, "P", "", "ab")

	t.Run("subtree of a directory", func(t *testing.T) {
		dirs, err := s.ListDirectorySubtree("P::a")
		if err != nil {
			t.Fatalf("ListDirectorySubtree() error = %v", err)
		}
		want := []string{"P::a", "P::a::b", "P::a::b::c"}
		if len(dirs) != len(want) {
			t.Fatalf("got %d directories, want %d", len(dirs), len(want))
		}
		for i, d := range dirs {
			if d.UniqueName != want[i] {
				t.Errorf("dirs[%d] = %q, want %q", i, d.UniqueName, want[i])
			}
		}
	})

	t.Run("whole project tree", func(t *testing.T) {
		dirs, err := s.ListDirectorySubtree("P")
		if err != nil {
			t.Fatalf("ListDirectorySubtree() error = %v", err)
		}
		if len(dirs) != 4 {
			t.Errorf("got %d directories, want 4", len(dirs))
		}
	})
}

func TestSQLiteStore_InsertFile_DuplicateNames(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")
	dir := insertTestDirectory(t, s, "P", "", "d")

	first := insertTestFile(t, s, dir, "scan.dcm", testTime)
	second := insertTestFile(t, s, dir, "scan.dcm", testTime)
	third := insertTestFile(t, s, dir, "scan.dcm", testTime)

	if first.FileName != "scan.dcm" {
		t.Errorf("first = %q, want scan.dcm", first.FileName)
	}
	if second.FileName != "scan(1).dcm" {
		t.Errorf("second = %q, want scan(1).dcm", second.FileName)
	}
	if third.FileName != "scan(2).dcm" {
		t.Errorf("third = %q, want scan(2).dcm", third.FileName)
	}
}

func TestSQLiteStore_InsertFile_MissingParent(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")

	// A foreign key violation is not a name collision; it must fail
	// instead of retrying under suffixed names.
	_, err := s.InsertFile(&pacs.FileRow{
		FileName:             "scan.dcm",
		ParentDirectory:      "P::nope",
		Format:               "DICOM",
		TimestampCreation:    testTime,
		TimestampLastUpdated: testTime,
	})
	var perr *pacs.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("InsertFile() error = %v, want PersistenceError", err)
	}
}

func TestSQLiteStore_CountFilesSubtree(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")
	a := insertTestDirectory(t, s, "P", "", "a")
	b := insertTestDirectory(t, s, "P", a, "b")
	other := insertTestDirectory(t, s, "P", "", "ab")
	insertTestFile(t, s, a, "one.dcm", testTime)
	insertTestFile(t, s, b, "two.dcm", testTime)
	insertTestFile(t, s, other, "three.dcm", testTime)

	n, err := s.CountFilesSubtree(a)
	if err != nil {
		t.Fatalf("CountFilesSubtree() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountFilesSubtree() = %d, want 2", n)
	}
}

func TestSQLiteStore_DeleteProject_Cascades(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")
	a := insertTestDirectory(t, s, "P", "", "a")
	b := insertTestDirectory(t, s, "P", a, "b")
	insertTestFile(t, s, b, "scan.dcm", testTime)
	if _, err := s.InsertCitation(&pacs.CitationRow{Citation: "Doe et al.", ProjectName: "P"}); err != nil {
		t.Fatalf("InsertCitation() error = %v", err)
	}
	if err := s.AddFavorite(b, "alice"); err != nil {
		t.Fatalf("AddFavorite() error = %v", err)
	}
	if err := s.AddRequest("P", "bob"); err != nil {
		t.Fatalf("AddRequest() error = %v", err)
	}

	if err := s.DeleteProject("P"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	if d, _ := s.GetDirectory(b); d != nil {
		t.Error("directory survived project deletion")
	}
	if f, _ := s.GetFile(b, "scan.dcm"); f != nil {
		t.Error("file survived project deletion")
	}
	if cits, _ := s.GetCitations("P"); len(cits) != 0 {
		t.Error("citations survived project deletion")
	}
	if favs, _ := s.GetFavorites("alice"); len(favs) != 0 {
		t.Error("favorites survived project deletion")
	}
	if reqs, _ := s.GetRequests("P"); len(reqs) != 0 {
		t.Error("access requests survived project deletion")
	}
}

func TestSQLiteStore_DeleteDirectory_CascadesToChildren(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")
	a := insertTestDirectory(t, s, "P", "", "a")
	b := insertTestDirectory(t, s, "P", a, "b")
	insertTestFile(t, s, b, "scan.dcm", testTime)

	if err := s.DeleteDirectory(a); err != nil {
		t.Fatalf("DeleteDirectory() error = %v", err)
	}

	if d, _ := s.GetDirectory(b); d != nil {
		t.Error("child directory survived parent deletion")
	}
	if f, _ := s.GetFile(b, "scan.dcm"); f != nil {
		t.Error("file survived directory deletion")
	}
}

func TestSQLiteStore_UpdateAttribute(t *testing.T) {
	t.Run("updates a whitelisted column", func(t *testing.T) {
		s := newTestStore(t)
		insertTestProject(t, s, "P")

		err := s.UpdateAttribute("project", "description", "updated",
			pacs.Condition{Column: "name", Value: "P"})
		if err != nil {
			t.Fatalf("UpdateAttribute() error = %v", err)
		}
		p, _ := s.GetProject("P")
		if p.Description != "updated" {
			t.Errorf("Description = %q, want %q", p.Description, "updated")
		}
	})

	t.Run("rejects non-whitelisted column", func(t *testing.T) {
		s := newTestStore(t)
		insertTestProject(t, s, "P")

		err := s.UpdateAttribute("project", "name", "Q",
			pacs.Condition{Column: "name", Value: "P"})
		if err == nil {
			t.Fatal("UpdateAttribute() accepted a non-whitelisted column")
		}
	})

	t.Run("rejects unknown table", func(t *testing.T) {
		s := newTestStore(t)

		err := s.UpdateAttribute("favorite", "username", "x",
			pacs.Condition{Column: "username", Value: "y"})
		if err == nil {
			t.Fatal("UpdateAttribute() accepted a non-whitelisted table")
		}
	})

	t.Run("two conditions select one file", func(t *testing.T) {
		s := newTestStore(t)
		insertTestProject(t, s, "P")
		d1 := insertTestDirectory(t, s, "P", "", "d1")
		d2 := insertTestDirectory(t, s, "P", "", "d2")
		insertTestFile(t, s, d1, "scan.dcm", testTime)
		insertTestFile(t, s, d2, "scan.dcm", testTime)

		err := s.UpdateAttribute("file", "tags", "CT",
			pacs.Condition{Column: "file_name", Value: "scan.dcm"},
			pacs.Condition{Column: "parent_directory", Value: d1})
		if err != nil {
			t.Fatalf("UpdateAttribute() error = %v", err)
		}
		f1, _ := s.GetFile(d1, "scan.dcm")
		f2, _ := s.GetFile(d2, "scan.dcm")
		if f1.Tags != "CT" {
			t.Errorf("f1.Tags = %q, want CT", f1.Tags)
		}
		if f2.Tags != "" {
			t.Errorf("f2.Tags = %q, want empty", f2.Tags)
		}
	})
}

func TestSQLiteStore_Favorites(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")
	d := insertTestDirectory(t, s, "P", "", "d")

	fav, err := s.IsFavorite(d, "alice")
	if err != nil {
		t.Fatalf("IsFavorite() error = %v", err)
	}
	if fav {
		t.Error("IsFavorite() = true before AddFavorite")
	}

	if err := s.AddFavorite(d, "alice"); err != nil {
		t.Fatalf("AddFavorite() error = %v", err)
	}
	// A second add is absorbed.
	if err := s.AddFavorite(d, "alice"); err != nil {
		t.Fatalf("AddFavorite() repeat error = %v", err)
	}

	favs, err := s.GetFavorites("alice")
	if err != nil {
		t.Fatalf("GetFavorites() error = %v", err)
	}
	if len(favs) != 1 || favs[0].UniqueName != d {
		t.Fatalf("GetFavorites() = %v, want [%s]", favs, d)
	}

	if err := s.RemoveFavorite(d, "alice"); err != nil {
		t.Fatalf("RemoveFavorite() error = %v", err)
	}
	if fav, _ := s.IsFavorite(d, "alice"); fav {
		t.Error("IsFavorite() = true after RemoveFavorite")
	}
}

func TestSQLiteStore_AccessRequests(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")

	if err := s.AddRequest("P", "bob"); err != nil {
		t.Fatalf("AddRequest() error = %v", err)
	}
	if err := s.AddRequest("P", "bob"); err != nil {
		t.Fatalf("AddRequest() repeat error = %v", err)
	}
	if err := s.AddRequest("P", "carol"); err != nil {
		t.Fatalf("AddRequest() error = %v", err)
	}

	reqs, err := s.GetRequests("P")
	if err != nil {
		t.Fatalf("GetRequests() error = %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("GetRequests() = %v, want 2 entries", reqs)
	}

	if err := s.RemoveRequest("P", "bob"); err != nil {
		t.Fatalf("RemoveRequest() error = %v", err)
	}
	reqs, _ = s.GetRequests("P")
	if len(reqs) != 1 || reqs[0] != "carol" {
		t.Fatalf("GetRequests() = %v, want [carol]", reqs)
	}
}

func TestSQLiteStore_CountNewFiles(t *testing.T) {
	s := newTestStore(t)
	insertTestProject(t, s, "P")
	d := insertTestDirectory(t, s, "P", "", "d")
	insertTestFile(t, s, d, "old.dcm", testTime)

	t.Run("everything is new without a recorded visit", func(t *testing.T) {
		n, err := s.CountNewFiles("alice", d)
		if err != nil {
			t.Fatalf("CountNewFiles() error = %v", err)
		}
		if n != 1 {
			t.Errorf("CountNewFiles() = %d, want 1", n)
		}
	})

	t.Run("marking checked resets the count", func(t *testing.T) {
		if err := s.MarkDirectoryChecked("alice", d, testTime.Add(time.Hour)); err != nil {
			t.Fatalf("MarkDirectoryChecked() error = %v", err)
		}
		n, _ := s.CountNewFiles("alice", d)
		if n != 0 {
			t.Errorf("CountNewFiles() = %d, want 0 after check", n)
		}
	})

	t.Run("later files count again", func(t *testing.T) {
		insertTestFile(t, s, d, "new.dcm", testTime.Add(2*time.Hour))
		n, _ := s.CountNewFiles("alice", d)
		if n != 1 {
			t.Errorf("CountNewFiles() = %d, want 1 after new upload", n)
		}
	})
}
