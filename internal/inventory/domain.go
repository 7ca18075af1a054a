package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no active book matches the given id.
	ErrNotFound = errors.New("book not found")

	// ErrOutOfStock is returned when a reservation finds no available copy.
	ErrOutOfStock = errors.New("no copies available")

	// ErrOverRelease signals that a release would push the available count
	// past the total. It indicates a bookkeeping bug, never a user error.
	ErrOverRelease = errors.New("release would exceed total copies")

	// ErrInvalidAdjustment is returned when a total-copies edit would drop
	// the total below the number of outstanding loans.
	ErrInvalidAdjustment = errors.New("total copies below outstanding loans")
)

// Book statuses. Retired books stay in the store so historical loans
// keep resolving, but they cannot be borrowed.
const (
	StatusActive  = "active"
	StatusRetired = "retired"
)

// Book is one lendable title with its copy counts.
// 0 <= AvailableCopies <= TotalCopies holds after every mutation.
type Book struct {
	ID              uuid.UUID  `json:"id"`
	ISBN            string     `json:"isbn,omitempty"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	Publisher       string     `json:"publisher,omitempty"`
	PublishedDate   *time.Time `json:"published_date,omitempty"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Details are the descriptive fields an edit may touch. Copy counts are
// deliberately absent; they change only through the counting operations.
type Details struct {
	ISBN          string
	Title         string
	Author        string
	Publisher     string
	PublishedDate *time.Time
}

// Outstanding is the number of copies currently lent out.
func (b *Book) Outstanding() int {
	return b.TotalCopies - b.AvailableCopies
}
