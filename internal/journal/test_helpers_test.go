package journal

import (
	"path/filepath"
	"testing"
)

// createTestJournal opens a journal in a temp dir for testing.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// createTestNavigation creates a committed navigation record.
func createTestNavigation(id string, seq int64, from, to string) NavigationRecord {
	return NavigationRecord{
		ID:      id,
		Session: "s1",
		Seq:     seq,
		Trigger: "push",
		From:    from,
		To:      to,
		Outcome: "committed",
	}
}
