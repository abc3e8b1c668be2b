package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "data", "uptime.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStoreAbsent(t *testing.T) {
	store := newTestFileStore(t)
	doc, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected absent document, got %+v", doc)
	}

	if err := os.WriteFile(store.Path(), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err = store.Read(context.Background())
	if err != nil || doc != nil {
		t.Fatalf("empty file should read as absent, got %+v %v", doc, err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	version, err := store.Write(ctx, []byte(`{"checks":[]}`), Precondition{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(doc.Data) != `{"checks":[]}` || doc.Version != version {
		t.Fatalf("unexpected document %q version %q (want %q)", doc.Data, doc.Version, version)
	}

	matches, _ := filepath.Glob(store.Path() + ".*.tmp")
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func TestFileStoreConditionalWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	if _, err := store.Write(ctx, []byte("first"), IfVersion(nil)); err != nil {
		t.Fatalf("create with empty precondition: %v", err)
	}
	if _, err := store.Write(ctx, []byte("again"), IfVersion(nil)); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict when document already exists, got %v", err)
	}

	doc, err := store.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(ctx, []byte("second"), IfVersion(doc)); err != nil {
		t.Fatalf("matching version should succeed: %v", err)
	}
	if _, err := store.Write(ctx, []byte("stale"), IfVersion(doc)); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale version should conflict, got %v", err)
	}

	final, _ := store.Read(ctx)
	if string(final.Data) != "second" {
		t.Fatalf("conflicting write must not change the file, got %q", final.Data)
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore(""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
