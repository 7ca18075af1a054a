package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Store is the durable mapping from book id to copy counts. Copy-count
// mutations are atomic: either they commit fully or leave no trace.
type Store interface {
	Create(ctx context.Context, book *Book) error
	Get(ctx context.Context, id uuid.UUID) (*Book, error)
	List(ctx context.Context) ([]*Book, error)

	// UpdateDetails edits descriptive fields only. Copy counts are out of
	// its reach; those change through ReserveCopy/ReleaseCopy/SetTotalCopies.
	UpdateDetails(ctx context.Context, id uuid.UUID, details Details) (*Book, error)

	// Retire soft-deletes a book. Loan history keeps referencing it.
	Retire(ctx context.Context, id uuid.UUID) error

	// ReserveCopy decrements the available count by one iff a copy is
	// available, otherwise fails with ErrOutOfStock without mutating.
	ReserveCopy(ctx context.Context, id uuid.UUID) error

	// ReleaseCopy increments the available count by one iff the result
	// stays within the total, otherwise fails with ErrOverRelease.
	ReleaseCopy(ctx context.Context, id uuid.UUID) error

	// SetTotalCopies adjusts the owned copy count. The available count
	// follows so that outstanding loans are preserved; ErrInvalidAdjustment
	// when newTotal is below 1 or below the outstanding count. Retiring is
	// the removal path, not a zero total.
	SetTotalCopies(ctx context.Context, id uuid.UUID, newTotal int) (*Book, error)
}
