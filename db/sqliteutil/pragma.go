// Package sqliteutil prepares SQLite DSNs for the synchronization state
// database.
package sqliteutil

import (
	"fmt"
	"strings"
)

// EnsurePragmas appends the pragmas the state database relies on to the DSN
// when not already present: WAL journaling so a watch daemon and a one-shot
// CLI can share the database, a busy timeout, and foreign-key enforcement.
// In-memory databases are returned unchanged.
func EnsurePragmas(dsn string, wal bool, busyTimeoutMS int) string {
	if dsn == "" || IsMemory(dsn) {
		return dsn
	}
	lower := strings.ToLower(dsn)
	var pragmas []string
	if wal && !strings.Contains(lower, "_pragma=journal_mode") {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}
	if busyTimeoutMS > 0 && !strings.Contains(lower, "_pragma=busy_timeout") {
		pragmas = append(pragmas, fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	}
	if !strings.Contains(lower, "_pragma=foreign_keys") {
		pragmas = append(pragmas, "foreign_keys(1)")
	}
	for _, pragma := range pragmas {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "_pragma=" + pragma
	}
	return dsn
}

// IsMemory reports whether the DSN addresses an in-memory database.
func IsMemory(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(strings.ToLower(dsn), "file::memory:")
}
