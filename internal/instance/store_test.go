package instance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nickheyer/launcherd/internal/db"
	"github.com/nickheyer/launcherd/internal/events"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	instRoot := filepath.Join(dir, "instances")

	dbPath := filepath.Join(dir, "test.db")
	dstore, err := db.Open(dbPath, db.Config{})
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { dstore.Close() })
	if err := dstore.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	bus := events.NewBus()
	s, err := Open(instRoot, dstore, bus)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, instRoot
}

func TestCreateInstanceWritesAtomicJSON(t *testing.T) {
	s, root := openTestStore(t)

	var gid uint
	for id, g := range s.groups {
		if g.IsDefault {
			gid = id
		}
	}

	id, err := s.CreateInstance(gid, "My Pack!", Icon{Default: true}, VersionField{
		Standard: &StandardVersion{Release: "1.20.1"},
	})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	inst, ok := s.Get(id)
	if !ok {
		t.Fatalf("instance %d not found after creation", id)
	}
	if inst.Shortpath != "my-pack" {
		t.Errorf("shortpath = %q, want my-pack", inst.Shortpath)
	}

	if _, err := os.Stat(s.setupDir(inst.Shortpath)); !os.IsNotExist(err) {
		t.Errorf(".setup dir should have been removed, stat err = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, inst.Shortpath, "instance.json"))
	if err != nil {
		t.Fatalf("read instance.json: %v", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unmarshal instance.json: %v", err)
	}
	if cfg.Name != "My Pack!" {
		t.Errorf("persisted name = %q, want My Pack!", cfg.Name)
	}
}

func TestUniqueShortpathOnCollision(t *testing.T) {
	s, _ := openTestStore(t)
	var gid uint
	for id, g := range s.groups {
		if g.IsDefault {
			gid = id
		}
	}

	id1, err := s.CreateInstance(gid, "Pack", Icon{Default: true}, VersionField{Standard: &StandardVersion{Release: "1.20.1"}})
	if err != nil {
		t.Fatalf("CreateInstance 1: %v", err)
	}
	id2, err := s.CreateInstance(gid, "Pack", Icon{Default: true}, VersionField{Standard: &StandardVersion{Release: "1.20.1"}})
	if err != nil {
		t.Fatalf("CreateInstance 2: %v", err)
	}

	inst1, _ := s.Get(id1)
	inst2, _ := s.Get(id2)
	if inst1.Shortpath == inst2.Shortpath {
		t.Errorf("expected distinct shortpaths, got %q twice", inst1.Shortpath)
	}
	if inst2.Shortpath != "pack-2" {
		t.Errorf("second shortpath = %q, want pack-2", inst2.Shortpath)
	}
}

func TestScanClassifiesMissingJSONAsInvalid(t *testing.T) {
	s, root := openTestStore(t)

	if err := os.MkdirAll(filepath.Join(root, "orphan"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var found *Instance
	for _, inst := range s.List() {
		if inst.Shortpath == "orphan" {
			found = inst
		}
	}
	if found == nil {
		t.Fatalf("orphan instance not found after scan")
	}
	if found.State != Invalid || found.Invalid == nil || found.Invalid.Kind != "json_missing" {
		t.Errorf("orphan instance = %+v, want Invalid/json_missing", found)
	}
}

func TestScanClassifiesSetupDirAsInstalling(t *testing.T) {
	s, root := openTestStore(t)

	if err := os.MkdirAll(filepath.Join(root, "installing-pack", ".setup"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var found *Instance
	for _, inst := range s.List() {
		if inst.Shortpath == "installing-pack" {
			found = inst
		}
	}
	if found == nil || found.State != Installing {
		t.Errorf("installing-pack = %+v, want Installing", found)
	}
}

func TestDeleteInstanceMovesToTrash(t *testing.T) {
	s, root := openTestStore(t)
	var gid uint
	for id, g := range s.groups {
		if g.IsDefault {
			gid = id
		}
	}

	id, err := s.CreateInstance(gid, "Doomed", Icon{Default: true}, VersionField{Standard: &StandardVersion{Release: "1.20.1"}})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	inst, _ := s.Get(id)
	shortpath := inst.Shortpath

	trash := filepath.Join(root, "..", "trash")
	if err := s.DeleteInstance(id, trash); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}

	if _, ok := s.Get(id); ok {
		t.Errorf("instance %d still present after delete", id)
	}
	if _, err := os.Stat(filepath.Join(root, shortpath)); !os.IsNotExist(err) {
		t.Errorf("original instance dir should be gone, stat err = %v", err)
	}
}

func TestMoveInstanceRecomputesGroupIndex(t *testing.T) {
	s, _ := openTestStore(t)
	var gid uint
	for id, g := range s.groups {
		if g.IsDefault {
			gid = id
		}
	}

	idA, _ := s.CreateInstance(gid, "A", Icon{Default: true}, VersionField{Standard: &StandardVersion{Release: "1.20.1"}})
	idB, _ := s.CreateInstance(gid, "B", Icon{Default: true}, VersionField{Standard: &StandardVersion{Release: "1.20.1"}})

	if err := s.MoveInstance(idB, MoveTarget{BeforeID: &idA}); err != nil {
		t.Fatalf("MoveInstance: %v", err)
	}

	a, _ := s.Get(idA)
	b, _ := s.Get(idB)
	if !(b.GroupIndex < a.GroupIndex) {
		t.Errorf("expected B (%v) before A (%v) after move", b.GroupIndex, a.GroupIndex)
	}
}
