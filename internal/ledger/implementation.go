package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresStore persists borrow records. A partial unique index on
// (book_id, user_id) WHERE status = 'BORROWED' makes the no-double-borrow
// rule hold even against racing inserts.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("libraledger/ledger"),
	}
}

// Migrate creates the borrow_records table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS borrow_records (
			id UUID PRIMARY KEY,
			book_id UUID NOT NULL,
			user_id TEXT NOT NULL,
			borrow_date TIMESTAMPTZ,
			due_date TIMESTAMPTZ NOT NULL,
			return_date TIMESTAMPTZ,
			status TEXT NOT NULL,
			CHECK (status IN ('BORROWED', 'RETURNED'))
		);
		CREATE UNIQUE INDEX IF NOT EXISTS borrow_records_outstanding
			ON borrow_records (book_id, user_id) WHERE status = 'BORROWED';
		CREATE INDEX IF NOT EXISTS borrow_records_user ON borrow_records (user_id);
		CREATE INDEX IF NOT EXISTS borrow_records_book ON borrow_records (book_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate borrow_records: %w", err)
	}
	return nil
}

const recordColumns = `id, book_id, user_id, borrow_date, due_date, return_date, status`

func (s *PostgresStore) CreateRecord(ctx context.Context, bookID uuid.UUID, userID string, borrowDate, dueDate time.Time) (*BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.create_record",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO borrow_records (id, book_id, user_id, borrow_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, bookID, userID, borrowDate, dueDate, StatusBorrowed)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			span.SetAttributes(attribute.Bool("already_borrowed", true))
			return nil, ErrAlreadyBorrowed
		}
		return nil, fmt.Errorf("insert borrow record: %w", err)
	}

	borrowed := borrowDate
	return &BorrowRecord{
		ID:         id,
		BookID:     bookID,
		UserID:     userID,
		BorrowDate: &borrowed,
		DueDate:    dueDate,
		Status:     StatusBorrowed,
	}, nil
}

func (s *PostgresStore) MarkReturned(ctx context.Context, recordID uuid.UUID, returnDate time.Time) (*BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.mark_returned",
		trace.WithAttributes(attribute.String("record.id", recordID.String())),
	)
	defer span.End()

	row := s.db.QueryRowContext(ctx, `
		UPDATE borrow_records
		SET status = $2, return_date = $3
		WHERE id = $1 AND status = $4
		RETURNING `+recordColumns+`
	`, recordID, StatusReturned, returnDate, StatusBorrowed)

	rec, err := scanRecord(row)
	if err == ErrNotFound {
		// The record exists but is already closed, or does not exist at all.
		if _, getErr := s.Get(ctx, recordID); getErr != nil {
			return nil, getErr
		}
		span.SetAttributes(attribute.Bool("already_returned", true))
		return nil, ErrAlreadyReturned
	}
	return rec, err
}

func (s *PostgresStore) Get(ctx context.Context, recordID uuid.UUID) (*BorrowRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM borrow_records WHERE id = $1
	`, recordID)
	return scanRecord(row)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*BorrowRecord, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM borrow_records WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ListByBook(ctx context.Context, bookID uuid.UUID) ([]*BorrowRecord, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM borrow_records WHERE book_id = $1`, bookID)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*BorrowRecord, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM borrow_records`)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]*BorrowRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query borrow records: %w", err)
	}
	defer rows.Close()

	var records []*BorrowRecord
	for rows.Next() {
		rec := &BorrowRecord{}
		var borrowDate, returnDate sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.BookID, &rec.UserID, &borrowDate, &rec.DueDate, &returnDate, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan borrow record: %w", err)
		}
		if borrowDate.Valid {
			rec.BorrowDate = &borrowDate.Time
		}
		if returnDate.Valid {
			rec.ReturnDate = &returnDate.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate borrow records: %w", err)
	}
	return records, nil
}

func scanRecord(row *sql.Row) (*BorrowRecord, error) {
	rec := &BorrowRecord{}
	var borrowDate, returnDate sql.NullTime
	err := row.Scan(&rec.ID, &rec.BookID, &rec.UserID, &borrowDate, &rec.DueDate, &returnDate, &rec.Status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan borrow record: %w", err)
	}
	if borrowDate.Valid {
		rec.BorrowDate = &borrowDate.Time
	}
	if returnDate.Valid {
		rec.ReturnDate = &returnDate.Time
	}
	return rec, nil
}
