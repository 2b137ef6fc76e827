package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lichlabs/confpush/internal/profile"
	"github.com/lichlabs/confpush/internal/protocol"
)

func TestOpenSeedsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config_data.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	set := s.Snapshot()
	for level := profile.MinLevel; level <= profile.MaxLevel; level++ {
		if _, ok := set[level]; !ok {
			t.Errorf("level %d missing after seeding", level)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file not persisted: %v", err)
	}
}

func TestOpenReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config_data.json")
	data, err := protocol.EncodeSnapshot(profile.Set{2: {"pool_min": 777}})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	table, ok := s.Get(2)
	if !ok || table["pool_min"] != 777 {
		t.Errorf("existing file not loaded: %v", table)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config_data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("corrupt state file accepted")
	}
}

func TestApplyMergesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config_data.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	updated, err := s.Apply(map[int]map[string]int{
		3:  {"pool_min": 4242},
		42: {"pool_min": 1}, // unknown level, ignored
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	// Reopen from disk to confirm persistence.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	table, _ := s2.Get(3)
	if table["pool_min"] != 4242 {
		t.Errorf("persisted pool_min = %d, want 4242", table["pool_min"])
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "config_data.json"))
	if err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	snap[1]["pool_min"] = -999

	again := s.Snapshot()
	if again[1]["pool_min"] == -999 {
		t.Error("snapshot shares state with store")
	}
}

func TestWatchSeesOutOfBandEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config_data.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan profile.Set, 1)
	go s.Watch(ctx, func(set profile.Set) {
		select {
		case changes <- set:
		default:
		}
	})

	// Give the watcher a moment to install.
	time.Sleep(200 * time.Millisecond)

	data, err := protocol.EncodeSnapshot(profile.Set{5: {"pool_min": 31337}})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case set := <-changes:
		if set[5]["pool_min"] != 31337 {
			t.Errorf("reloaded set = %v", set)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the edit")
	}

	table, _ := s.Get(5)
	if table["pool_min"] != 31337 {
		t.Errorf("store not updated after reload: %v", table)
	}
}

func TestReloadIgnoresOwnWrites(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "config_data.json"))
	if err != nil {
		t.Fatal(err)
	}
	if _, changed := s.reload(); changed {
		t.Error("own persisted bytes treated as external change")
	}
}
