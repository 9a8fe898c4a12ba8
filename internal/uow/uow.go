// Package uow provides the transaction boundary that spans the ledger and the
// wallet request store. Repositories discover the active unit of work through
// the context passed to them.
package uow

import "context"

// Manager runs fn inside a single unit of work. If fn returns an error every
// mutation applied through the context handed to fn is rolled back. Calling
// Run with a context that already carries a unit of work joins it.
type Manager interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}
