package persist

import (
	"context"
	"fmt"

	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Journal entry kinds.
const (
	KindRegistered   = "registered"
	KindUnregistered = "unregistered"
	KindVisibility   = "visibility"
)

// JournalEntry is one visibility subsystem event as stored for analytics.
type JournalEntry struct {
	Tick     uint64
	EntityID ecs.EntityID
	Kind     string
	Visible  bool
}

var journalColumns = []string{"run_id", "tick", "entity_id", "kind", "visible"}

// JournalRepo appends journal entries for one simulation run.
type JournalRepo struct {
	db    *DB
	runID uuid.UUID
}

func NewJournalRepo(db *DB, runID uuid.UUID) *JournalRepo {
	return &JournalRepo{db: db, runID: runID}
}

func (r *JournalRepo) RunID() uuid.UUID { return r.runID }

// Write copies a batch of entries in one round trip.
func (r *JournalRepo) Write(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	n, err := r.db.Pool.CopyFrom(ctx,
		pgx.Identifier{"visibility_journal"},
		journalColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{r.runID, int64(e.Tick), int64(e.EntityID), e.Kind, e.Visible}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("journal copy: %w", err)
	}
	if int(n) != len(entries) {
		return fmt.Errorf("journal copy: wrote %d of %d rows", n, len(entries))
	}
	return nil
}

// CountRun returns how many rows the current run has written.
func (r *JournalRepo) CountRun(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM visibility_journal WHERE run_id = $1`, r.runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
