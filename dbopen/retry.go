package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Attempts is how many times Exec tries a statement that keeps hitting a
// locked database. The waits between attempts grow by 100ms.
const Attempts = 3

// IsBusy reports whether err is SQLite refusing a write because another
// connection holds the lock.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"SQLITE_BUSY", "database is locked", "database table is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Exec runs a write, retrying while the database is busy. Two processes
// following the same tour record write to one file and can collide.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= Attempts; attempt++ {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil || !IsBusy(err) {
			return res, err
		}
		lastErr = err
		if attempt == Attempts {
			break
		}
		wait := time.NewTimer(time.Duration(attempt) * 100 * time.Millisecond)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, fmt.Errorf("dbopen: gave up waiting for lock: %w", ctx.Err())
		case <-wait.C:
		}
	}
	return nil, fmt.Errorf("dbopen: still busy after %d attempts: %w", Attempts, lastErr)
}
