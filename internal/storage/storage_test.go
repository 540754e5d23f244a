package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/skycms/skycms/internal/foundation/errors"
)

func TestFSStoreWriteRead(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := t.Context()

	if err := store.Write(ctx, "acme", "/general/terms.html", []byte("<html>terms</html>")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := store.Read(ctx, "acme", "/general/terms.html")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "<html>terms</html>" {
		t.Errorf("unexpected content: %q", data)
	}

	ok, err := store.Exists(ctx, "acme", "/general/terms.html")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v; want true", ok, err)
	}
}

func TestFSStoreOverwrite(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()

	if err := store.Write(ctx, "acme", "/index.html", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ctx, "acme", "/index.html", []byte("v2")); err != nil {
		t.Fatal(err)
	}

	data, err := store.Read(ctx, "acme", "/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestFSStoreReadMissing(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Read(t.Context(), "acme", "/missing.html")
	if !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestFSStoreDeleteIdempotent(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()

	if err := store.Write(ctx, "acme", "/a/b/page.html", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "acme", "/a/b/page.html"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "acme", "/a/b/page.html"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}

	// Empty intermediate directories are pruned.
	if _, err := os.Stat(filepath.Join(store.TenantRoot("acme"), "a")); !os.IsNotExist(err) {
		t.Errorf("expected empty directories pruned, stat err = %v", err)
	}
}

func TestFSStoreList(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()

	for _, p := range []string{"/index.html", "/toc.json", "/general/terms.html"} {
		if err := store.Write(ctx, "acme", p, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Write(ctx, "other", "/index.html", []byte("y")); err != nil {
		t.Fatal(err)
	}

	paths, err := store.List(ctx, "acme")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"/general/terms.html", "/index.html", "/toc.json"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %v", len(want), paths)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], p)
		}
	}
}

func TestFSStoreListUnknownTenant(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	paths, err := store.List(t.Context(), "nobody")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no paths, got %v", paths)
	}
}

func TestFSStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	err = store.Write(t.Context(), "acme", "/../other/index.html", []byte("x"))
	if !errors.HasCategory(err, errors.CategoryValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Write(ctx, "acme", "/index.html", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := store.Read(ctx, "acme", "/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("unexpected content: %q", data)
	}

	if calls := store.Calls(); calls.Write != 1 || calls.Read != 1 {
		t.Errorf("unexpected call counts: %+v", calls)
	}
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	store := NewMemoryStore()
	store.FailNextWrites(2)
	ctx := context.Background()

	for i := range 2 {
		err := store.Write(ctx, "acme", "/index.html", []byte("x"))
		if err == nil {
			t.Fatalf("write %d should have failed", i)
		}
		if !errors.IsTransient(err) {
			t.Errorf("injected failure should be transient, got %v", err)
		}
	}

	if err := store.Write(ctx, "acme", "/index.html", []byte("x")); err != nil {
		t.Errorf("third write should succeed, got %v", err)
	}
}
