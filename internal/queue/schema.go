package queue

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// initSchema ensures the conversion_jobs table and its indexes exist. The
// table is shared with the application that enqueues work, so there is no
// version marker to fight over; the schema statements are idempotent.
func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
