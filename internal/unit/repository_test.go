package unit

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/evcraddock/propdesk/internal/db"
)

func testRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewRepository(database), database
}

func seedOwner(t *testing.T, database *sql.DB, id string) {
	t.Helper()
	_, err := database.Exec(
		"INSERT INTO users (id, email, role, created_at) VALUES (?, ?, 'OWNER', ?)",
		id, id+"@example.com", time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
}

func TestCreateAndGetUnit(t *testing.T) {
	repo, database := testRepo(t)
	seedOwner(t, database, "owner-1")

	p, err := repo.CreateProject(ProjectInput{Name: " Marina Towers ", Location: "Dubai"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if p.Name != "Marina Towers" {
		t.Errorf("name = %q, want trimmed", p.Name)
	}

	floor := int64(12)
	owner := "owner-1"
	u, err := repo.Create(CreateInput{ProjectID: p.ID, Name: "A-1204", Floor: &floor, OwnerID: &owner})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := repo.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasOwner() || got.Owner() != "owner-1" {
		t.Errorf("owner = %v, want owner-1", got.OwnerID)
	}
	if got.Floor == nil || *got.Floor != 12 {
		t.Errorf("floor = %v, want 12", got.Floor)
	}
}

func TestCreateUnitUnknownProject(t *testing.T) {
	repo, _ := testRepo(t)

	_, err := repo.Create(CreateInput{ProjectID: "missing", Name: "X"})
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestUpdateClearsOwner(t *testing.T) {
	repo, database := testRepo(t)
	seedOwner(t, database, "owner-1")

	p, _ := repo.CreateProject(ProjectInput{Name: "P"})
	owner := "owner-1"
	u, err := repo.Create(CreateInput{ProjectID: p.ID, Name: "U", OwnerID: &owner})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	empty := ""
	updated, err := repo.Update(u.ID, UpdateInput{OwnerID: &empty})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.HasOwner() {
		t.Errorf("owner = %v, want none", *updated.OwnerID)
	}
}

func TestListFilters(t *testing.T) {
	repo, database := testRepo(t)
	seedOwner(t, database, "owner-1")

	p1, _ := repo.CreateProject(ProjectInput{Name: "P1"})
	p2, _ := repo.CreateProject(ProjectInput{Name: "P2"})
	owner := "owner-1"
	for _, in := range []CreateInput{
		{ProjectID: p1.ID, Name: "A", OwnerID: &owner},
		{ProjectID: p1.ID, Name: "B"},
		{ProjectID: p2.ID, Name: "C"},
	} {
		if _, err := repo.Create(in); err != nil {
			t.Fatalf("create %s: %v", in.Name, err)
		}
	}

	tests := []struct {
		name string
		opts ListOptions
		want int
	}{
		{"all", ListOptions{}, 3},
		{"project", ListOptions{ProjectID: p1.ID}, 2},
		{"owner", ListOptions{OwnerID: "owner-1"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := repo.List(tt.opts)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(units) != tt.want {
				t.Errorf("got %d units, want %d", len(units), tt.want)
			}
		})
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	repo, _ := testRepo(t)

	p, _ := repo.CreateProject(ProjectInput{Name: "P"})
	u, _ := repo.Create(CreateInput{ProjectID: p.ID, Name: "U"})

	if err := repo.DeleteProject(p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := repo.GetByID(u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete again: err = %v, want ErrNotFound", err)
	}
}
