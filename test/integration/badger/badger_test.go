//go:build integration

package badger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/relayfs/pkg/upload"
)

// TestCodeStore_Integration exercises the Badger-backed download-code store
// against a real on-disk database rather than an in-memory fake.
func TestCodeStore_Integration(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "relayfs-badger-codes-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "codes.db")

	t.Run("InsertAndResolve", func(t *testing.T) {
		store, err := upload.NewCodeStore(dbPath)
		if err != nil {
			t.Fatalf("NewCodeStore: %v", err)
		}
		defer store.Close()

		if err := store.Insert("code-1", "alice", "report.bin"); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		username, filename, ok := store.Resolve("code-1")
		if !ok {
			t.Fatal("expected code-1 to resolve")
		}
		if username != "alice" || filename != "report.bin" {
			t.Fatalf("expected alice/report.bin, got %s/%s", username, filename)
		}
	})

	t.Run("ResolveUnknownCode", func(t *testing.T) {
		store, err := upload.NewCodeStore(dbPath)
		if err != nil {
			t.Fatalf("NewCodeStore: %v", err)
		}
		defer store.Close()

		if _, _, ok := store.Resolve("nonexistent"); ok {
			t.Fatal("expected nonexistent code not to resolve")
		}
	})

	t.Run("InsertRejectsCollidingCode", func(t *testing.T) {
		store, err := upload.NewCodeStore(dbPath)
		if err != nil {
			t.Fatalf("NewCodeStore: %v", err)
		}
		defer store.Close()

		if err := store.Insert("code-2", "bob", "a.bin"); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := store.Insert("code-2", "bob", "b.bin"); err == nil {
			t.Fatal("expected inserting a colliding code to fail")
		}
	})

	t.Run("Persistence", func(t *testing.T) {
		persistPath := filepath.Join(tempDir, "persist.db")

		// Phase 1: insert a code and close.
		{
			store, err := upload.NewCodeStore(persistPath)
			if err != nil {
				t.Fatalf("NewCodeStore: %v", err)
			}
			if err := store.Insert("code-persist", "carol", "archive.bin"); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
		}

		// Phase 2: reopen the same database and confirm the code survived.
		{
			store, err := upload.NewCodeStore(persistPath)
			if err != nil {
				t.Fatalf("Reopen NewCodeStore: %v", err)
			}
			defer store.Close()

			username, filename, ok := store.Resolve("code-persist")
			if !ok {
				t.Fatal("expected code-persist to survive reopen")
			}
			if username != "carol" || filename != "archive.bin" {
				t.Fatalf("expected carol/archive.bin, got %s/%s", username, filename)
			}
		}
	})
}
