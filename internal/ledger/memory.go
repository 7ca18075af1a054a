package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps borrow records in a mutex-guarded map.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*BorrowRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*BorrowRecord)}
}

func (s *MemoryStore) CreateRecord(ctx context.Context, bookID uuid.UUID, userID string, borrowDate, dueDate time.Time) (*BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.BookID == bookID && rec.UserID == userID && rec.Outstanding() {
			return nil, ErrAlreadyBorrowed
		}
	}

	borrowed := borrowDate
	rec := &BorrowRecord{
		ID:         uuid.New(),
		BookID:     bookID,
		UserID:     userID,
		BorrowDate: &borrowed,
		DueDate:    dueDate,
		Status:     StatusBorrowed,
	}
	s.records[rec.ID] = rec

	snapshot := *rec
	return &snapshot, nil
}

func (s *MemoryStore) MarkReturned(ctx context.Context, recordID uuid.UUID, returnDate time.Time) (*BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status == StatusReturned {
		return nil, ErrAlreadyReturned
	}

	returned := returnDate
	rec.Status = StatusReturned
	rec.ReturnDate = &returned

	snapshot := *rec
	return &snapshot, nil
}

func (s *MemoryStore) Get(ctx context.Context, recordID uuid.UUID) (*BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *rec
	return &snapshot, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*BorrowRecord, error) {
	return s.list(func(r *BorrowRecord) bool { return r.UserID == userID })
}

func (s *MemoryStore) ListByBook(ctx context.Context, bookID uuid.UUID) ([]*BorrowRecord, error) {
	return s.list(func(r *BorrowRecord) bool { return r.BookID == bookID })
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]*BorrowRecord, error) {
	return s.list(func(*BorrowRecord) bool { return true })
}

func (s *MemoryStore) list(match func(*BorrowRecord) bool) ([]*BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*BorrowRecord
	for _, rec := range s.records {
		if match(rec) {
			snapshot := *rec
			out = append(out, &snapshot)
		}
	}
	return out, nil
}
