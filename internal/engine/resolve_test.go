package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProjectRootFromFindsMarkers(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "internal", "engine")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, ok := projectRootFrom(nested)
	if !ok {
		t.Fatal("expected project root to be found")
	}
	if found != root {
		t.Fatalf("found %q, want %q", found, root)
	}
}

func TestProjectRootFromRequiresBothMarkers(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := projectRootFrom(root); ok {
		t.Fatal("go.mod without models dir should not count as project root")
	}
}

func TestFirstExisting(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "ggml-base.en.bin")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, ok := firstExisting([]string{
		filepath.Join(dir, "missing.bin"),
		present,
	})
	if !ok || found != present {
		t.Fatalf("firstExisting = %q, %v; want %q, true", found, ok, present)
	}

	if _, ok := firstExisting([]string{filepath.Join(dir, "nope.bin")}); ok {
		t.Fatal("expected no match")
	}
}

func TestResolveMissingModelError(t *testing.T) {
	_, err := Resolve("definitely-not-a-real-model.bin")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
}
