package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smileynet/wopt/internal/prefetch"
	"github.com/smileynet/wopt/internal/weapon"
)

func TestFileStore_SaveAndLoad(t *testing.T) {
	// Given a state to persist
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "prefetch"))

	jobs := prefetch.Plan([]string{"MysteryEye", "Belief"}, []float64{1}, []weapon.Buffs{{Valby: true}})
	st := prefetch.State{
		ID: "nightly",
		Jobs: []prefetch.JobResult{
			{Job: jobs[0], Status: prefetch.JobCompleted, MaxDPS: 1234.5},
			{Job: jobs[1], Status: prefetch.JobPending},
		},
		CurrentJobIdx: 1,
		StartedAt:     time.Now().Truncate(time.Second),
		Status:        prefetch.RunRunning,
	}

	// When Save is called
	if err := store.Save(st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Then Load returns the same state
	loaded, found, err := store.Load("nightly")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() found = false, want true")
	}
	if loaded.CurrentJobIdx != 1 {
		t.Errorf("CurrentJobIdx = %d, want 1", loaded.CurrentJobIdx)
	}
	if len(loaded.Jobs) != 2 {
		t.Fatalf("Jobs len = %d, want 2", len(loaded.Jobs))
	}
	if loaded.Jobs[0].MaxDPS != 1234.5 {
		t.Errorf("MaxDPS = %v, want 1234.5", loaded.Jobs[0].MaxDPS)
	}
	if loaded.Jobs[1].Job.Key() != "Belief_1_valby" {
		t.Errorf("job key = %q, want Belief_1_valby", loaded.Jobs[1].Job.Key())
	}
	if !loaded.StartedAt.Equal(st.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", loaded.StartedAt, st.StartedAt)
	}
	if !loaded.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero", loaded.FinishedAt)
	}
}

func TestFileStore_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	if err := store.Save(prefetch.State{ID: "a", Status: prefetch.RunRunning}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.json.tmp")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file still present: %v", err)
	}
}

func TestFileStore_LoadNotFound(t *testing.T) {
	// Given an empty store
	store := NewFileStore(t.TempDir())

	// When Load is called for a nonexistent ID
	_, found, err := store.Load("nonexistent")

	// Then it returns not found
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load() found = true, want false")
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := NewFileStore(dir).Load("bad")
	if err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestFileStore_Remove(t *testing.T) {
	// Given a saved state
	store := NewFileStore(t.TempDir())
	if err := store.Save(prefetch.State{ID: "run-x", Status: prefetch.RunRunning}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// When Remove is called
	if err := store.Remove("run-x"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	// Then Load returns not found
	_, found, _ := store.Load("run-x")
	if found {
		t.Error("Load() found = true after Remove, want false")
	}
}

func TestFileStore_RemoveNotFound(t *testing.T) {
	// Given an empty store
	store := NewFileStore(t.TempDir())

	// When Remove is called for a nonexistent ID
	err := store.Remove("nonexistent")

	// Then no error (idempotent)
	if err != nil {
		t.Errorf("Remove(nonexistent) error = %v, want nil", err)
	}
}

func TestFileStore_IDs(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	for _, id := range []string{"zeta", "alpha"} {
		if err := store.Save(prefetch.State{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := store.IDs()
	if err != nil {
		t.Fatalf("IDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "zeta" {
		t.Errorf("IDs() = %v, want [alpha zeta]", ids)
	}
}

func TestFileStore_IDsMissingDir(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent"))

	ids, err := store.IDs()
	if err != nil || ids != nil {
		t.Errorf("IDs() = %v, %v; want nil, nil", ids, err)
	}
}

func TestFileStore_PathTraversal(t *testing.T) {
	store := NewFileStore(t.TempDir())

	tests := []struct {
		name string
		id   string
	}{
		{name: "parent traversal", id: "../../etc/passwd"},
		{name: "slash in id", id: "foo/bar"},
		{name: "empty id", id: ""},
		{name: "dot dot", id: ".."},
		{name: "current dir", id: "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a malicious or invalid ID

			// When Save is called
			err := store.Save(prefetch.State{ID: tt.id, Status: prefetch.RunRunning})

			// Then it returns ErrInvalidID
			if !errors.Is(err, ErrInvalidID) {
				t.Errorf("Save(%q) error = %v, want ErrInvalidID", tt.id, err)
			}

			// When Load is called
			_, _, err = store.Load(tt.id)

			// Then it returns ErrInvalidID
			if !errors.Is(err, ErrInvalidID) {
				t.Errorf("Load(%q) error = %v, want ErrInvalidID", tt.id, err)
			}

			// When Remove is called
			err = store.Remove(tt.id)

			// Then it returns ErrInvalidID
			if !errors.Is(err, ErrInvalidID) {
				t.Errorf("Remove(%q) error = %v, want ErrInvalidID", tt.id, err)
			}
		})
	}
}

func TestFileStore_ValidIDs(t *testing.T) {
	store := NewFileStore(t.TempDir())

	// Given IDs with dots and hyphens
	validIDs := []string{"nightly", "run-123", "warm.2026-10-19"}

	for _, id := range validIDs {
		t.Run(id, func(t *testing.T) {
			// When Save is called with a valid ID
			err := store.Save(prefetch.State{ID: id, Status: prefetch.RunRunning})

			// Then no error
			if err != nil {
				t.Errorf("Save(%q) error = %v, want nil", id, err)
			}
		})
	}
}
