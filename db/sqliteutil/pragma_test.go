package sqliteutil

import (
	"strings"
	"testing"
)

func TestEnsurePragmas(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		wal      bool
		busy     int
		contains []string
		absent   []string
	}{
		{
			name:     "appends wal busy and foreign keys",
			dsn:      "/tmp/state.db",
			wal:      true,
			busy:     5000,
			contains: []string{"_pragma=journal_mode(WAL)", "_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"},
		},
		{
			name:     "keeps existing journal mode",
			dsn:      "/tmp/state.db?_pragma=journal_mode(DELETE)",
			wal:      true,
			busy:     0,
			contains: []string{"_pragma=journal_mode(DELETE)"},
			absent:   []string{"journal_mode(WAL)", "busy_timeout"},
		},
		{
			name:   "memory dsn untouched",
			dsn:    ":memory:",
			wal:    true,
			busy:   5000,
			absent: []string{"_pragma"},
		},
	}
	for _, test := range tests {
		actual := EnsurePragmas(test.dsn, test.wal, test.busy)
		for _, want := range test.contains {
			if !strings.Contains(actual, want) {
				t.Errorf("%s: expected %q in %q", test.name, want, actual)
			}
		}
		for _, unwanted := range test.absent {
			if strings.Contains(actual, unwanted) {
				t.Errorf("%s: did not expect %q in %q", test.name, unwanted, actual)
			}
		}
	}
}

func TestIsMemory(t *testing.T) {
	if !IsMemory(":memory:") || !IsMemory("file::memory:?cache=shared") {
		t.Errorf("expected in-memory DSNs to be detected")
	}
	if IsMemory("/var/lib/state.db") {
		t.Errorf("file path misdetected as in-memory")
	}
}
