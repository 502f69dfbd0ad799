package testutil

import (
	"path/filepath"
	"testing"

	"retrocade/internal/store"
)

// OpenTestStore opens a throwaway SQLite store under t.TempDir.
// The returned cleanup closes the store; the temp dir is removed by
// the testing framework.
func OpenTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk.db")
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cleanup := func() {
		st.Close()
	}
	return st, cleanup
}
