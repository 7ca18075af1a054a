package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record matches the given id.
	ErrNotFound = errors.New("borrow record not found")

	// ErrAlreadyBorrowed is returned when the user already holds an
	// outstanding loan for the same book.
	ErrAlreadyBorrowed = errors.New("book already borrowed by this user")

	// ErrAlreadyReturned is returned on a second return attempt. Returns
	// are deliberately not idempotent: a silent second success would hide
	// a double availability increment.
	ErrAlreadyReturned = errors.New("book already returned")
)

// Status of a borrow record.
type Status string

const (
	StatusBorrowed Status = "BORROWED"
	StatusReturned Status = "RETURNED"
)

// BorrowRecord is one lending transaction from creation (borrow) to
// closure (return). Records are never deleted; returned records remain
// as history.
//
// BorrowDate is nil only on rows imported from systems that did not
// track it. New records always carry it.
type BorrowRecord struct {
	ID         uuid.UUID  `json:"id"`
	BookID     uuid.UUID  `json:"book_id"`
	UserID     string     `json:"user_id"`
	BorrowDate *time.Time `json:"borrow_date,omitempty"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Status     Status     `json:"status"`
}

// Outstanding reports whether the loan is still open.
func (r *BorrowRecord) Outstanding() bool {
	return r.Status == StatusBorrowed
}
