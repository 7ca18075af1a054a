// Package query implements the read side of the borrowing ledger:
// joining records with book titles, filtering, and sorting for the
// reporting views. It never mutates state.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"libraledger/internal/inventory"
	"libraledger/internal/ledger"
)

// Status filter values. StatusAll matches every record.
const (
	StatusAll      = "ALL"
	StatusBorrowed = string(ledger.StatusBorrowed)
	StatusReturned = string(ledger.StatusReturned)
)

// Sort keys accepted by Options.SortBy.
const (
	SortByUser       = "user"
	SortByBook       = "book"
	SortByBorrowDate = "borrow_date"
	SortByDueDate    = "due_date"
	SortByReturnDate = "return_date"
	SortByStatus     = "status"
)

// Record is the view shape the reporting UI consumes.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	UserEmail  string     `json:"userEmail"`
	BookTitle  string     `json:"bookTitle"`
	BorrowDate *time.Time `json:"borrowDate,omitempty"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	Status     string     `json:"status"`
}

// Options selects and orders view records.
type Options struct {
	Status     string // ALL, BORROWED or RETURNED; empty means ALL
	Search     string // case-insensitive substring over user email and book title
	SortBy     string // one of the SortBy constants; empty leaves input order
	Descending bool
}

type Engine struct {
	records    ledger.Store
	books      inventory.Store
	loanPeriod time.Duration
}

func NewEngine(records ledger.Store, books inventory.Store, loanPeriodDays int) *Engine {
	return &Engine{
		records:    records,
		books:      books,
		loanPeriod: time.Duration(loanPeriodDays) * 24 * time.Hour,
	}
}

// DeriveBorrowDate returns the record's borrow date, reconstructing it
// from the due date for legacy rows that never stored one.
//
// Compatibility shim only: it assumes the record was created under the
// currently configured loan period. New records always carry a borrow
// date and never go through the derivation.
func (e *Engine) DeriveBorrowDate(rec *ledger.BorrowRecord) time.Time {
	if rec.BorrowDate != nil {
		return *rec.BorrowDate
	}
	return rec.DueDate.Add(-e.loanPeriod)
}

// All returns the full ledger as view records.
func (e *Engine) All(ctx context.Context, opts Options) ([]Record, error) {
	recs, err := e.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return e.render(ctx, recs, opts)
}

// ByUser returns one user's borrow history.
func (e *Engine) ByUser(ctx context.Context, userID string, opts Options) ([]Record, error) {
	recs, err := e.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.render(ctx, recs, opts)
}

// ByBook returns one book's borrow history.
func (e *Engine) ByBook(ctx context.Context, bookID uuid.UUID, opts Options) ([]Record, error) {
	recs, err := e.records.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return e.render(ctx, recs, opts)
}

func (e *Engine) render(ctx context.Context, recs []*ledger.BorrowRecord, opts Options) ([]Record, error) {
	titles := make(map[uuid.UUID]string)

	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		title, ok := titles[rec.BookID]
		if !ok {
			book, err := e.books.Get(ctx, rec.BookID)
			if err == nil {
				title = book.Title
			}
			// Retired or missing books render with an empty title rather
			// than failing the whole report.
			titles[rec.BookID] = title
		}

		view := Record{
			ID:        rec.ID,
			UserEmail: rec.UserID,
			BookTitle: title,
			DueDate:   rec.DueDate,
			Status:    string(rec.Status),
		}
		if rec.BorrowDate != nil {
			view.BorrowDate = rec.BorrowDate
		} else {
			derived := e.DeriveBorrowDate(rec)
			view.BorrowDate = &derived
		}
		view.ReturnDate = rec.ReturnDate

		out = append(out, view)
	}

	out = filter(out, opts)
	sortRecords(out, opts)
	return out, nil
}

func filter(records []Record, opts Options) []Record {
	status := opts.Status
	if status == "" {
		status = StatusAll
	}
	needle := strings.ToLower(opts.Search)

	filtered := records[:0]
	for _, rec := range records {
		if status != StatusAll && rec.Status != status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(rec.UserEmail), needle) &&
			!strings.Contains(strings.ToLower(rec.BookTitle), needle) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func sortRecords(records []Record, opts Options) {
	if opts.SortBy == "" {
		return
	}

	less := func(a, b Record) bool {
		switch opts.SortBy {
		case SortByUser:
			return a.UserEmail < b.UserEmail
		case SortByBook:
			return a.BookTitle < b.BookTitle
		case SortByBorrowDate:
			return timePtrLess(a.BorrowDate, b.BorrowDate)
		case SortByDueDate:
			return a.DueDate.Before(b.DueDate)
		case SortByReturnDate:
			return timePtrLess(a.ReturnDate, b.ReturnDate)
		case SortByStatus:
			return a.Status < b.Status
		default:
			return false
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if opts.Descending {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
}

// timePtrLess orders absent values before present ones in ascending
// order, the documented default tie-break.
func timePtrLess(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return true
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}
