package history

import (
	"context"
	"database/sql"
	"fmt"
)

// Times are unix milliseconds. dismissed_at and reason stay NULL until the
// notification has been dismissed.
const schema = `
CREATE TABLE IF NOT EXISTS displays (
    id TEXT PRIMARY KEY,
    message TEXT NOT NULL,
    actions TEXT NOT NULL DEFAULT '[]',
    shown_at INTEGER NOT NULL,
    dismissed_at INTEGER,
    reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_displays_shown_at
    ON displays(shown_at);
`

func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
