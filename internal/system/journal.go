package system

import (
	"context"
	"time"

	"github.com/cullgate/cullgate/internal/core/event"
	coresys "github.com/cullgate/cullgate/internal/core/system"
	"github.com/cullgate/cullgate/internal/persist"
	"go.uber.org/zap"
)

// JournalWriter persists a batch of journal entries.
type JournalWriter interface {
	Write(ctx context.Context, entries []persist.JournalEntry) error
}

const maxJournalBacklog = 1 << 16

// JournalSystem records every registry and visibility event, stamped with
// the clock's current tick, and hands them to the writer every flushEvery
// ticks. A failed write keeps the batch for the next flush; beyond
// maxJournalBacklog the oldest entries are dropped. Phase Persist.
type JournalSystem struct {
	writer     JournalWriter
	clock      func() uint64
	flushEvery int
	timeout    time.Duration
	log        *zap.Logger

	since   int
	buf     []persist.JournalEntry
	dropped int
	unsub   []func()
}

func NewJournalSystem(bus *event.Bus, writer JournalWriter, clock func() uint64, flushEvery int, log *zap.Logger) *JournalSystem {
	if flushEvery <= 0 {
		flushEvery = 1
	}
	s := &JournalSystem{
		writer:     writer,
		clock:      clock,
		flushEvery: flushEvery,
		timeout:    5 * time.Second,
		log:        log,
		buf:        make([]persist.JournalEntry, 0, 256),
	}
	s.unsub = append(s.unsub,
		event.Subscribe(bus, func(e event.Registered) {
			s.record(persist.JournalEntry{EntityID: e.EntityID, Kind: persist.KindRegistered})
		}),
		event.Subscribe(bus, func(e event.Unregistered) {
			s.record(persist.JournalEntry{EntityID: e.EntityID, Kind: persist.KindUnregistered})
		}),
		event.Subscribe(bus, func(e event.VisibilityChanged) {
			s.record(persist.JournalEntry{EntityID: e.EntityID, Kind: persist.KindVisibility, Visible: e.Visible})
		}),
	)
	return s
}

func (s *JournalSystem) record(e persist.JournalEntry) {
	e.Tick = s.clock()
	s.buf = append(s.buf, e)
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) error {
	s.since++
	if s.since < s.flushEvery {
		return nil
	}
	s.since = 0
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.flush(ctx)
	return nil
}

func (s *JournalSystem) flush(ctx context.Context) {
	if len(s.buf) == 0 {
		return
	}
	if err := s.writer.Write(ctx, s.buf); err != nil {
		s.log.Warn("journal flush failed", zap.Int("entries", len(s.buf)), zap.Error(err))
		if over := len(s.buf) - maxJournalBacklog; over > 0 {
			s.buf = append(s.buf[:0], s.buf[over:]...)
			s.dropped += over
			s.log.Warn("journal backlog trimmed", zap.Int("dropped", over))
		}
		return
	}
	s.buf = s.buf[:0]
}

// Close unsubscribes and writes whatever is still buffered.
func (s *JournalSystem) Close(ctx context.Context) {
	for _, u := range s.unsub {
		u()
	}
	s.unsub = nil
	s.flush(ctx)
}

// Buffered returns how many entries await the next flush.
func (s *JournalSystem) Buffered() int { return len(s.buf) }

// Dropped returns how many entries were discarded after repeated failures.
func (s *JournalSystem) Dropped() int { return s.dropped }
