package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	borrowedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	dueAt      = borrowedAt.AddDate(0, 0, 7)
)

func TestMemoryStore_CreateRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	bookID := uuid.New()

	rec, err := store.CreateRecord(ctx, bookID, "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)

	assert.Equal(t, StatusBorrowed, rec.Status)
	require.NotNil(t, rec.BorrowDate)
	assert.Equal(t, borrowedAt, *rec.BorrowDate)
	assert.Equal(t, dueAt, rec.DueDate)
	assert.Nil(t, rec.ReturnDate)
}

func TestMemoryStore_CreateRecordRejectsDoubleBorrow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	bookID := uuid.New()

	_, err := store.CreateRecord(ctx, bookID, "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)

	_, err = store.CreateRecord(ctx, bookID, "alice@example.com", borrowedAt, dueAt)
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)

	// A different user may borrow the same title.
	_, err = store.CreateRecord(ctx, bookID, "bob@example.com", borrowedAt, dueAt)
	assert.NoError(t, err)

	// The same user may borrow a different title.
	_, err = store.CreateRecord(ctx, uuid.New(), "alice@example.com", borrowedAt, dueAt)
	assert.NoError(t, err)
}

func TestMemoryStore_ReborrowAfterReturn(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	bookID := uuid.New()

	rec, err := store.CreateRecord(ctx, bookID, "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)

	_, err = store.MarkReturned(ctx, rec.ID, borrowedAt.Add(24*time.Hour))
	require.NoError(t, err)

	// Once the loan is closed the pair is borrowable again; the returned
	// record stays as history.
	_, err = store.CreateRecord(ctx, bookID, "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStore_MarkReturned(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, err := store.CreateRecord(ctx, uuid.New(), "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)

	returnedAt := borrowedAt.Add(48 * time.Hour)
	closed, err := store.MarkReturned(ctx, rec.ID, returnedAt)
	require.NoError(t, err)

	assert.Equal(t, StatusReturned, closed.Status)
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, returnedAt, *closed.ReturnDate)

	t.Run("second return fails", func(t *testing.T) {
		_, err := store.MarkReturned(ctx, rec.ID, returnedAt.Add(time.Hour))
		assert.ErrorIs(t, err, ErrAlreadyReturned)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := store.MarkReturned(ctx, uuid.New(), returnedAt)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore_Listings(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	book1, book2 := uuid.New(), uuid.New()
	_, err := store.CreateRecord(ctx, book1, "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)
	_, err = store.CreateRecord(ctx, book2, "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)
	_, err = store.CreateRecord(ctx, book1, "bob@example.com", borrowedAt, dueAt)
	require.NoError(t, err)

	byUser, err := store.ListByUser(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byBook, err := store.ListByBook(ctx, book1)
	require.NoError(t, err)
	assert.Len(t, byBook, 2)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_ListReturnsSnapshots(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, err := store.CreateRecord(ctx, uuid.New(), "alice@example.com", borrowedAt, dueAt)
	require.NoError(t, err)

	snapshot, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	snapshot.Status = StatusReturned

	stored, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, stored.Status, "caller mutations must not leak into the store")
}
