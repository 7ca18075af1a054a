package inventory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"libraledger/pkg/clock"
)

// MemoryStore keeps books in a mutex-guarded map. It backs tests and
// database-less deployments.
type MemoryStore struct {
	mu    sync.Mutex
	books map[uuid.UUID]*Book
	clock clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		books: make(map[uuid.UUID]*Book),
		clock: clk,
	}
}

func (s *MemoryStore) Create(ctx context.Context, book *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	book.Status = StatusActive
	book.AvailableCopies = book.TotalCopies
	book.CreatedAt = now
	book.UpdatedAt = now

	stored := *book
	s.books[book.ID] = &stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *book
	return &snapshot, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Book, 0, len(s.books))
	for _, book := range s.books {
		if book.Status != StatusActive {
			continue
		}
		snapshot := *book
		out = append(out, &snapshot)
	}
	return out, nil
}

func (s *MemoryStore) UpdateDetails(ctx context.Context, id uuid.UUID, details Details) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok || book.Status != StatusActive {
		return nil, ErrNotFound
	}

	book.ISBN = details.ISBN
	book.Title = details.Title
	book.Author = details.Author
	book.Publisher = details.Publisher
	book.PublishedDate = details.PublishedDate
	book.UpdatedAt = s.clock.Now().UTC()

	snapshot := *book
	return &snapshot, nil
}

func (s *MemoryStore) Retire(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok || book.Status != StatusActive {
		return ErrNotFound
	}
	book.Status = StatusRetired
	book.UpdatedAt = s.clock.Now().UTC()
	return nil
}

func (s *MemoryStore) ReserveCopy(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok || book.Status != StatusActive {
		return ErrNotFound
	}
	if book.AvailableCopies <= 0 {
		return ErrOutOfStock
	}
	book.AvailableCopies--
	book.UpdatedAt = s.clock.Now().UTC()
	return nil
}

func (s *MemoryStore) ReleaseCopy(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return ErrNotFound
	}
	if book.AvailableCopies >= book.TotalCopies {
		return ErrOverRelease
	}
	book.AvailableCopies++
	book.UpdatedAt = s.clock.Now().UTC()
	return nil
}

func (s *MemoryStore) SetTotalCopies(ctx context.Context, id uuid.UUID, newTotal int) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok || book.Status != StatusActive {
		return nil, ErrNotFound
	}

	// A zero total is not a valid state; Retire removes a book.
	outstanding := book.Outstanding()
	if newTotal < 1 || newTotal < outstanding {
		return nil, ErrInvalidAdjustment
	}

	book.TotalCopies = newTotal
	book.AvailableCopies = newTotal - outstanding
	book.UpdatedAt = s.clock.Now().UTC()

	snapshot := *book
	return &snapshot, nil
}
