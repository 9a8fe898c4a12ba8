package uow

import (
	"context"
	"sync"
)

type memJournalKey struct{}

type journal struct {
	undo []func()
}

// Memory serializes units of work with a mutex. In-memory repositories record
// an undo step for each mutation through RecordUndo; a failing unit replays
// them in reverse order.
type Memory struct {
	mu sync.Mutex
}

// NewMemory builds an in-memory unit of work manager for tests and local development.
func NewMemory() *Memory {
	return &Memory{}
}

// Run executes fn while holding the unit of work lock.
func (m *Memory) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memJournalKey{}).(*journal); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, memJournalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}

// RecordUndo registers a compensation for a mutation applied inside a memory
// unit of work. Outside a unit of work it does nothing.
func RecordUndo(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(memJournalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}
