package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable collection of borrow records. List operations
// return snapshots; they may lag a concurrent write.
type Store interface {
	// CreateRecord opens a loan. It fails with ErrAlreadyBorrowed when an
	// outstanding BORROWED record already exists for (bookID, userID).
	CreateRecord(ctx context.Context, bookID uuid.UUID, userID string, borrowDate, dueDate time.Time) (*BorrowRecord, error)

	// MarkReturned closes a loan. A second attempt on the same record
	// fails with ErrAlreadyReturned.
	MarkReturned(ctx context.Context, recordID uuid.UUID, returnDate time.Time) (*BorrowRecord, error)

	Get(ctx context.Context, recordID uuid.UUID) (*BorrowRecord, error)
	ListByUser(ctx context.Context, userID string) ([]*BorrowRecord, error)
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]*BorrowRecord, error)
	ListAll(ctx context.Context) ([]*BorrowRecord, error)
}
