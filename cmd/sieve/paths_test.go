package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"sieve/internal/logging"
)

func TestCollectPathsExpandsDirectoriesAndGlobs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.mka", "sub/b.FLAC", "sub/notes.txt", "c.mp3"} {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := collectPaths([]string{
		filepath.Join(root, "sub"),
		filepath.Join(root, "*.mka"),
		filepath.Join(root, "sub", "notes.txt"),
		filepath.Join(root, "a.mka"),
		filepath.Join(root, "missing.mka"),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("collectPaths: %v", err)
	}
	want := []string{
		filepath.Join(root, "sub", "b.FLAC"),
		filepath.Join(root, "a.mka"),
		filepath.Join(root, "sub", "notes.txt"),
		filepath.Join(root, "missing.mka"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCollectPathsSkipsUnreadableSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	good := filepath.Join(root, "a.mka")
	locked := filepath.Join(root, "locked")
	if err := os.WriteFile(good, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(locked, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(locked, "b.mka"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	got, err := collectPaths([]string{root}, logging.NewNop())
	if err != nil {
		t.Fatalf("one unreadable directory must not abort collection: %v", err)
	}
	if !slices.Equal(got, []string{good}) {
		t.Fatalf("got %v, want [%s]", got, good)
	}
}

func TestCollectPathsFailsOnUnreadableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := filepath.Join(t.TempDir(), "media")
	if err := os.Mkdir(root, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	if _, err := collectPaths([]string{root}, logging.NewNop()); err == nil {
		t.Fatal("expected error when the requested directory itself is unreadable")
	}
}

func TestReadPathListSkipsCommentsAndBlanks(t *testing.T) {
	got, err := readPathList(strings.NewReader("a.mka\n\n# note\nb c.mka\r\n"))
	if err != nil {
		t.Fatalf("readPathList: %v", err)
	}
	if !slices.Equal(got, []string{"a.mka", "b c.mka"}) {
		t.Fatalf("unexpected paths %v", got)
	}
}
