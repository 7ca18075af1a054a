package lending

import (
	"context"

	"github.com/google/uuid"

	"libraledger/internal/inventory"
	"libraledger/internal/ledger"
)

// Service orchestrates borrow and return transactions against the
// inventory and the ledger. Role checks happen upstream; the service
// only enforces the inventory/ledger invariants.
type Service interface {
	// Borrow reserves a copy and opens a borrow record in one serialized
	// step. Fails with inventory.ErrOutOfStock or ledger.ErrAlreadyBorrowed;
	// on the latter the reserved copy is released again.
	Borrow(ctx context.Context, bookID uuid.UUID, userID string) (*ledger.BorrowRecord, error)

	// Return closes a borrow record and releases its copy. Fails with
	// ledger.ErrNotFound or ledger.ErrAlreadyReturned.
	Return(ctx context.Context, recordID uuid.UUID) (*ledger.BorrowRecord, error)

	// SetTotalCopies adjusts a book's owned copy count through the same
	// per-book serialization as borrows and returns.
	SetTotalCopies(ctx context.Context, bookID uuid.UUID, newTotal int) (*inventory.Book, error)
}
