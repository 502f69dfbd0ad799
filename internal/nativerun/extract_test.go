package nativerun

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func makeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestExtractAndPickRanked(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"readme.txt": "docs",
		"game.z64":   "rom bytes",
	})
	dest := t.TempDir()
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}

	picked, err := pickContent(dest, []string{".z64", ".n64", ".v64"})
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if filepath.Base(picked) != "game.z64" {
		t.Fatalf("picked = %s, want game.z64", picked)
	}
}

func TestPickContentFallbackFirstFile(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"b-data.dat": "x",
		"a-data.dat": "x",
	})
	dest := t.TempDir()
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}

	picked, err := pickContent(dest, []string{".z64"})
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if filepath.Base(picked) != "a-data.dat" {
		t.Fatalf("picked = %s, want a-data.dat (sorted fallback)", picked)
	}
}

func TestPickContentEmptyDir(t *testing.T) {
	_, err := pickContent(t.TempDir(), []string{".z64"})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestExtractRejectsEscapingEntry(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"../evil.z64": "rom bytes",
	})
	err := extractArchive(archive, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Fatalf("err = %v, want escape rejection", err)
	}
}

func TestExtractNestedDirs(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"disc/track01.cue": "cue",
		"disc/track01.bin": "bin",
	})
	dest := t.TempDir()
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}

	picked, err := pickContent(dest, []string{".cue", ".chd", ".pbp", ".bin"})
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if filepath.Base(picked) != "track01.cue" {
		t.Fatalf("picked = %s, want track01.cue", picked)
	}
}
