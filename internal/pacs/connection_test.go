package pacs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pacs2go/internal/pacs"
	"pacs2go/internal/testutil"
)

func TestNewConnection(t *testing.T) {
	t.Parallel()

	t.Run("reports the archive session user", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")

		if got := conn.User(); got != "alice" {
			t.Errorf("User() = %q, want %q", got, "alice")
		}
	})

	t.Run("failed authentication is a connection error", func(t *testing.T) {
		t.Parallel()
		store := testutil.NewTestStore(t)
		arch := testutil.NewTestArchive("alice")
		arch.Close(context.Background())

		_, err := pacs.NewConnection(context.Background(), store, arch,
			nil, nil, nil)
		var cerr *pacs.FailedConnectionError
		if !errors.As(err, &cerr) {
			t.Fatalf("NewConnection() error = %v, want FailedConnectionError", err)
		}
	})
}

func TestConnection_CreateProject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates in both stores", func(t *testing.T) {
		t.Parallel()
		conn, arch, clock := testutil.NewTestConnection(t, "alice")

		p, err := conn.CreateProject(ctx, "Study1", "baseline scans", "neuro", "")
		if err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		if p.Name() != "Study1" {
			t.Errorf("Name() = %q, want %q", p.Name(), "Study1")
		}
		if p.Description() != "baseline scans" {
			t.Errorf("Description() = %q, want %q", p.Description(), "baseline scans")
		}
		if p.Keywords() != "neuro" {
			t.Errorf("Keywords() = %q, want %q", p.Keywords(), "neuro")
		}
		if !p.Created().Equal(clock.Now()) {
			t.Errorf("Created() = %v, want %v", p.Created(), clock.Now())
		}
		exists, err := arch.ProjectExists(ctx, "Study1")
		if err != nil {
			t.Fatalf("ProjectExists() error = %v", err)
		}
		if !exists {
			t.Error("project missing from archive after create")
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		conn, _, clock := testutil.NewTestConnection(t, "alice")

		first, err := conn.CreateProject(ctx, "Study1", "", "", "")
		if err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		clock.Advance(time.Hour)
		second, err := conn.CreateProject(ctx, "Study1", "late description", "", "")
		if err != nil {
			t.Fatalf("CreateProject() repeat error = %v", err)
		}
		if !second.Created().Equal(first.Created()) {
			t.Errorf("repeat create changed creation time: %v != %v",
				second.Created(), first.Created())
		}
		if second.Description() != "" {
			t.Errorf("repeat create applied attributes: Description() = %q", second.Description())
		}
	})

	t.Run("strips separator characters from the name", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")

		p, err := conn.CreateProject(ctx, " My.Stu,dy;2: ", "", "", "")
		if err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		if p.Name() != "MyStudy2" {
			t.Errorf("Name() = %q, want %q", p.Name(), "MyStudy2")
		}
	})

	t.Run("rejects a name that sanitizes to nothing", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")

		_, err := conn.CreateProject(ctx, " .,;: ", "", "", "")
		var cerr *pacs.CreationError
		if !errors.As(err, &cerr) {
			t.Fatalf("CreateProject() error = %v, want CreationError", err)
		}
	})

	t.Run("heals a missing metadata row", func(t *testing.T) {
		t.Parallel()
		conn, arch, _ := testutil.NewTestConnection(t, "alice")
		if err := arch.CreateProject(ctx, "Orphan"); err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}

		p, err := conn.CreateProject(ctx, "Orphan", "", "", "")
		if err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		got, err := conn.GetProject(ctx, p.Name())
		if err != nil {
			t.Fatalf("GetProject() after heal error = %v", err)
		}
		if got.Name() != "Orphan" {
			t.Errorf("Name() = %q, want %q", got.Name(), "Orphan")
		}
	})
}

func TestConnection_GetProject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown project is a not-found error", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")

		_, err := conn.GetProject(ctx, "nope")
		var nf *pacs.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("GetProject() error = %v, want NotFoundError", err)
		}
	})

	t.Run("metadata row without an archive project is not found", func(t *testing.T) {
		t.Parallel()
		conn, arch, _ := testutil.NewTestConnection(t, "alice")
		if _, err := conn.CreateProject(ctx, "Study1", "", "", ""); err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		if err := arch.DeleteProject(ctx, "Study1"); err != nil {
			t.Fatalf("DeleteProject() error = %v", err)
		}

		_, err := conn.GetProject(ctx, "Study1")
		var nf *pacs.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("GetProject() error = %v, want NotFoundError", err)
		}
	})
}

func TestConnection_GetAllProjects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn, _, _ := testutil.NewTestConnection(t, "alice")

	mine, err := conn.CreateProject(ctx, "Mine", "", "", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if _, err := conn.CreateProject(ctx, "Foreign", "", "", ""); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	// The creating session owns both; drop alice from one.
	foreign, err := conn.GetProject(ctx, "Foreign")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if err := foreign.RevokeRights(ctx, "alice"); err != nil {
		t.Fatalf("RevokeRights() error = %v", err)
	}

	all, err := conn.GetAllProjects(ctx, false)
	if err != nil {
		t.Fatalf("GetAllProjects() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("GetAllProjects(false) returned %d projects, want 2", len(all))
	}

	accessible, err := conn.GetAllProjects(ctx, true)
	if err != nil {
		t.Fatalf("GetAllProjects() error = %v", err)
	}
	if len(accessible) != 1 || accessible[0].Name() != mine.Name() {
		t.Fatalf("GetAllProjects(true) = %v, want just %q", names(accessible), mine.Name())
	}
}

func TestConnection_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn, arch, _ := testutil.NewTestConnection(t, "alice")

	if err := conn.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// The archive session is gone.
	if _, err := arch.User(ctx); err == nil {
		t.Error("archive session still alive after Close")
	}
}

func names(projects []*pacs.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Name()
	}
	return out
}
