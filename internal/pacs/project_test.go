package pacs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pacs2go/internal/pacs"
	"pacs2go/internal/testutil"
)

func createTestProject(t *testing.T, conn *pacs.Connection, name string) *pacs.Project {
	t.Helper()
	p, err := conn.CreateProject(context.Background(), name, "", "", "")
	if err != nil {
		t.Fatalf("CreateProject(%q) error = %v", name, err)
	}
	return p
}

func TestProject_SetAttributes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("setters persist and bump last_updated", func(t *testing.T) {
		t.Parallel()
		conn, _, clock := testutil.NewTestConnection(t, "alice")
		p := createTestProject(t, conn, "Study1")
		created := p.LastUpdated()

		clock.Advance(time.Hour)
		if err := p.SetDescription("brain scans", "alice"); err != nil {
			t.Fatalf("SetDescription() error = %v", err)
		}
		if err := p.SetKeywords("brain, mri", "alice"); err != nil {
			t.Fatalf("SetKeywords() error = %v", err)
		}
		if err := p.SetParameters("acq=3T", "alice"); err != nil {
			t.Fatalf("SetParameters() error = %v", err)
		}

		reloaded, err := conn.GetProject(ctx, "Study1")
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if reloaded.Description() != "brain scans" {
			t.Errorf("Description() = %q, want %q", reloaded.Description(), "brain scans")
		}
		if reloaded.Keywords() != "brain, mri" {
			t.Errorf("Keywords() = %q, want %q", reloaded.Keywords(), "brain, mri")
		}
		if reloaded.Parameters() != "acq=3T" {
			t.Errorf("Parameters() = %q, want %q", reloaded.Parameters(), "acq=3T")
		}
		if !reloaded.LastUpdated().After(created) {
			t.Errorf("LastUpdated() = %v, want after %v", reloaded.LastUpdated(), created)
		}
	})
}

func TestProject_Roles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creator is the sole owner", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")
		p := createTestProject(t, conn, "Study1")

		owners, err := p.Owners(ctx)
		if err != nil {
			t.Fatalf("Owners() error = %v", err)
		}
		if len(owners) != 1 || owners[0] != "alice" {
			t.Errorf("Owners() = %v, want [alice]", owners)
		}
		role, err := p.YourUserRole(ctx)
		if err != nil {
			t.Fatalf("YourUserRole() error = %v", err)
		}
		if role != pacs.RoleOwner {
			t.Errorf("YourUserRole() = %q, want %q", role, pacs.RoleOwner)
		}
	})

	t.Run("granting rights clears the pending request", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")
		p := createTestProject(t, conn, "Study1")

		if err := p.AddRequest("bob"); err != nil {
			t.Fatalf("AddRequest() error = %v", err)
		}
		if err := p.GrantRights(ctx, "bob", pacs.RoleMember); err != nil {
			t.Fatalf("GrantRights() error = %v", err)
		}

		members, err := p.Members(ctx)
		if err != nil {
			t.Fatalf("Members() error = %v", err)
		}
		if len(members) != 1 || members[0] != "bob" {
			t.Errorf("Members() = %v, want [bob]", members)
		}
		reqs, err := p.Requests()
		if err != nil {
			t.Fatalf("Requests() error = %v", err)
		}
		if len(reqs) != 0 {
			t.Errorf("Requests() = %v, want empty after grant", reqs)
		}
	})

	t.Run("granting a new level replaces the old one", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")
		p := createTestProject(t, conn, "Study1")

		if err := p.GrantRights(ctx, "bob", pacs.RoleCollaborator); err != nil {
			t.Fatalf("GrantRights() error = %v", err)
		}
		if err := p.GrantRights(ctx, "bob", pacs.RoleOwner); err != nil {
			t.Fatalf("GrantRights() error = %v", err)
		}

		roles, err := p.Roles(ctx)
		if err != nil {
			t.Fatalf("Roles() error = %v", err)
		}
		if len(roles.Collaborators) != 0 {
			t.Errorf("Collaborators = %v, want empty", roles.Collaborators)
		}
		if roles.RoleOf("bob") != pacs.RoleOwner {
			t.Errorf("RoleOf(bob) = %q, want %q", roles.RoleOf("bob"), pacs.RoleOwner)
		}
	})

	t.Run("revoking removes membership", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")
		p := createTestProject(t, conn, "Study1")

		if err := p.GrantRights(ctx, "bob", pacs.RoleMember); err != nil {
			t.Fatalf("GrantRights() error = %v", err)
		}
		if err := p.RevokeRights(ctx, "bob"); err != nil {
			t.Fatalf("RevokeRights() error = %v", err)
		}

		roles, err := p.Roles(ctx)
		if err != nil {
			t.Fatalf("Roles() error = %v", err)
		}
		if roles.RoleOf("bob") != pacs.RoleNone {
			t.Errorf("RoleOf(bob) = %q, want none", roles.RoleOf("bob"))
		}
	})

	t.Run("revoking clears the pending request", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")
		p := createTestProject(t, conn, "Study1")

		if err := p.GrantRights(ctx, "bob", pacs.RoleMember); err != nil {
			t.Fatalf("GrantRights() error = %v", err)
		}
		if err := p.AddRequest("bob"); err != nil {
			t.Fatalf("AddRequest() error = %v", err)
		}
		if err := p.RevokeRights(ctx, "bob"); err != nil {
			t.Fatalf("RevokeRights() error = %v", err)
		}

		reqs, err := p.Requests()
		if err != nil {
			t.Fatalf("Requests() error = %v", err)
		}
		if len(reqs) != 0 {
			t.Errorf("Requests() = %v, want empty after revoke", reqs)
		}
	})

	t.Run("listings are stable snapshots", func(t *testing.T) {
		t.Parallel()
		conn, _, _ := testutil.NewTestConnection(t, "alice")
		p := createTestProject(t, conn, "Study1")

		if err := p.GrantRights(ctx, "bob", pacs.RoleMember); err != nil {
			t.Fatalf("GrantRights() error = %v", err)
		}
		if err := p.GrantRights(ctx, "carol", pacs.RoleMember); err != nil {
			t.Fatalf("GrantRights() error = %v", err)
		}
		members, err := p.Members(ctx)
		if err != nil {
			t.Fatalf("Members() error = %v", err)
		}

		// A later mutation must not rewrite a listing already handed out.
		if err := p.RevokeRights(ctx, "bob"); err != nil {
			t.Fatalf("RevokeRights() error = %v", err)
		}
		if len(members) != 2 || members[0] != "bob" || members[1] != "carol" {
			t.Errorf("earlier Members() changed to %v, want [bob carol]", members)
		}
	})
}

func TestProject_Citations(t *testing.T) {
	t.Parallel()
	conn, _, clock := testutil.NewTestConnection(t, "alice")
	p := createTestProject(t, conn, "Study1")
	created := p.LastUpdated()

	clock.Advance(time.Hour)
	id, err := p.AddCitation("Doe et al. 2023", "https://doi.org/10.1000/x", "alice")
	if err != nil {
		t.Fatalf("AddCitation() error = %v", err)
	}

	cits, err := p.Citations()
	if err != nil {
		t.Fatalf("Citations() error = %v", err)
	}
	if len(cits) != 1 {
		t.Fatalf("Citations() returned %d entries, want 1", len(cits))
	}
	if cits[0].Citation != "Doe et al. 2023" || cits[0].Link != "https://doi.org/10.1000/x" {
		t.Errorf("citation = %+v", cits[0])
	}

	reloaded, err := conn.GetProject(context.Background(), "Study1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if !reloaded.LastUpdated().After(created) {
		t.Error("AddCitation did not bump last_updated")
	}

	if err := p.DeleteCitation(id, "alice"); err != nil {
		t.Fatalf("DeleteCitation() error = %v", err)
	}
	cits, _ = p.Citations()
	if len(cits) != 0 {
		t.Errorf("Citations() = %v, want empty after delete", cits)
	}
}

func TestProject_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn, arch, _ := testutil.NewTestConnection(t, "alice")
	p := createTestProject(t, conn, "Study1")
	dir, err := p.CreateDirectory(ctx, "scans", "", "alice")
	if err != nil {
		t.Fatalf("CreateDirectory() error = %v", err)
	}

	if err := p.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := conn.GetProject(ctx, "Study1"); err == nil {
		t.Error("project still retrievable after delete")
	}
	if _, err := conn.GetDirectory(ctx, dir.UniqueName()); err == nil {
		t.Error("directory row survived project delete")
	}
	exists, err := arch.ProjectExists(ctx, "Study1")
	if err != nil {
		t.Fatalf("ProjectExists() error = %v", err)
	}
	if exists {
		t.Error("archive project survived delete")
	}
}

func TestProject_GetAllDirectories(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn, arch, _ := testutil.NewTestConnection(t, "alice")
	p := createTestProject(t, conn, "Study1")
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if _, err := p.CreateDirectory(ctx, name, "", "alice"); err != nil {
			t.Fatalf("CreateDirectory(%q) error = %v", name, err)
		}
	}

	t.Run("ordered and paginated", func(t *testing.T) {
		dirs, err := p.GetAllDirectories(ctx, "", 1, 2)
		if err != nil {
			t.Fatalf("GetAllDirectories() error = %v", err)
		}
		if len(dirs) != 2 || dirs[0].Name() != "bravo" || dirs[1].Name() != "charlie" {
			t.Fatalf("page = %v", dirNames(dirs))
		}
	})

	t.Run("skips rows missing from the archive", func(t *testing.T) {
		if err := arch.DeleteDirectory(ctx, "Study1", "Study1::bravo"); err != nil {
			t.Fatalf("DeleteDirectory() error = %v", err)
		}

		dirs, err := p.GetAllDirectories(ctx, "", 0, 0)
		if err != nil {
			t.Fatalf("GetAllDirectories() error = %v", err)
		}
		if len(dirs) != 2 {
			t.Fatalf("got %d directories, want 2 after archive loss", len(dirs))
		}
		for _, d := range dirs {
			if d.Name() == "bravo" {
				t.Error("directory missing from archive was listed")
			}
		}
	})

	t.Run("skips rows the archive cannot confirm", func(t *testing.T) {
		arch.DirectoryExistsErr = errors.New("archive flake")
		defer func() { arch.DirectoryExistsErr = nil }()

		dirs, err := p.GetAllDirectories(ctx, "", 0, 0)
		if err != nil {
			t.Fatalf("GetAllDirectories() error = %v, want skipped rows", err)
		}
		if len(dirs) != 0 {
			t.Errorf("got %d directories, want 0 while the archive is unreadable", len(dirs))
		}
	})
}

func TestProject_CreateDirectory_CompensatesStoreRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn, arch, _ := testutil.NewTestConnection(t, "alice")
	p := createTestProject(t, conn, "Study1")

	arch.CreateDirectoryErr = errors.New("archive down")
	_, err := p.CreateDirectory(ctx, "scans", "", "alice")
	var cerr *pacs.CreationError
	if !errors.As(err, &cerr) {
		t.Fatalf("CreateDirectory() error = %v, want CreationError", err)
	}

	// The metadata row written before the archive call is rolled back.
	arch.CreateDirectoryErr = nil
	if _, err := conn.GetDirectory(ctx, "Study1::scans"); err == nil {
		t.Error("metadata row survived failed archive create")
	}
}

func dirNames(dirs []*pacs.Directory) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.Name()
	}
	return out
}
