package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libraledger/pkg/clock"
)

// PostgresStore persists books in the books table. Copy-count mutations
// are single conditional UPDATE statements, so the database row is the
// atomic unit and partial state is never visible.
type PostgresStore struct {
	db     *sql.DB
	clock  clock.Clock
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB, clk clock.Clock) *PostgresStore {
	return &PostgresStore{
		db:     db,
		clock:  clk,
		tracer: otel.Tracer("libraledger/inventory"),
	}
}

// Migrate creates the books table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS books (
			id UUID PRIMARY KEY,
			isbn TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			publisher TEXT NOT NULL DEFAULT '',
			published_date DATE,
			total_copies INT NOT NULL CHECK (total_copies >= 0),
			available_copies INT NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate books: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, book *Book) error {
	ctx, span := s.tracer.Start(ctx, "inventory.create")
	defer span.End()

	now := s.clock.Now().UTC()
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	book.Status = StatusActive
	book.AvailableCopies = book.TotalCopies
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, isbn, title, author, publisher, published_date, total_copies, available_copies, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, book.ID, book.ISBN, book.Title, book.Author, book.Publisher, book.PublishedDate,
		book.TotalCopies, book.AvailableCopies, book.Status, book.CreatedAt, book.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}

	span.SetAttributes(attribute.String("book.id", book.ID.String()))
	return nil
}

const bookColumns = `id, isbn, title, author, publisher, published_date, total_copies, available_copies, status, created_at, updated_at`

func (s *PostgresStore) scanBook(row *sql.Row) (*Book, error) {
	book := &Book{}
	var published sql.NullTime
	err := row.Scan(
		&book.ID, &book.ISBN, &book.Title, &book.Author, &book.Publisher, &published,
		&book.TotalCopies, &book.AvailableCopies, &book.Status,
		&book.CreatedAt, &book.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan book: %w", err)
	}
	if published.Valid {
		book.PublishedDate = &published.Time
	}
	return book, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	return s.scanBook(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books WHERE status = 'active' ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book := &Book{}
		var published sql.NullTime
		if err := rows.Scan(
			&book.ID, &book.ISBN, &book.Title, &book.Author, &book.Publisher, &published,
			&book.TotalCopies, &book.AvailableCopies, &book.Status,
			&book.CreatedAt, &book.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		if published.Valid {
			book.PublishedDate = &published.Time
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) UpdateDetails(ctx context.Context, id uuid.UUID, details Details) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.update_details",
		trace.WithAttributes(attribute.String("book.id", id.String())),
	)
	defer span.End()

	row := s.db.QueryRowContext(ctx, `
		UPDATE books
		SET isbn = $2, title = $3, author = $4, publisher = $5, published_date = $6, updated_at = $7
		WHERE id = $1 AND status = 'active'
		RETURNING `+bookColumns+`
	`, id, details.ISBN, details.Title, details.Author, details.Publisher, details.PublishedDate, s.clock.Now().UTC())
	return s.scanBook(row)
}

func (s *PostgresStore) Retire(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "inventory.retire",
		trace.WithAttributes(attribute.String("book.id", id.String())),
	)
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET status = 'retired', updated_at = $2
		WHERE id = $1 AND status = 'active'
	`, id, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("retire book: %w", err)
	}
	return s.requireRow(res)
}

func (s *PostgresStore) ReserveCopy(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "inventory.reserve_copy",
		trace.WithAttributes(attribute.String("book.id", id.String())),
	)
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies - 1, updated_at = $2
		WHERE id = $1 AND status = 'active' AND available_copies > 0
	`, id, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("reserve copy: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve copy: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing book from an empty shelf.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		span.SetAttributes(attribute.Bool("out_of_stock", true))
		return ErrOutOfStock
	}
	return nil
}

func (s *PostgresStore) ReleaseCopy(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "inventory.release_copy",
		trace.WithAttributes(attribute.String("book.id", id.String())),
	)
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies + 1, updated_at = $2
		WHERE id = $1 AND available_copies < total_copies
	`, id, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		span.SetAttributes(attribute.Bool("over_release", true))
		return ErrOverRelease
	}
	return nil
}

func (s *PostgresStore) SetTotalCopies(ctx context.Context, id uuid.UUID, newTotal int) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.set_total_copies",
		trace.WithAttributes(
			attribute.String("book.id", id.String()),
			attribute.Int("new_total", newTotal),
		),
	)
	defer span.End()

	// Outstanding loans (total - available) carry over unchanged. A zero
	// total is rejected; Retire removes a book.
	row := s.db.QueryRowContext(ctx, `
		UPDATE books
		SET available_copies = $2 - (total_copies - available_copies),
		    total_copies = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'active' AND $2 >= 1 AND total_copies - available_copies <= $2
		RETURNING `+bookColumns+`
	`, id, newTotal, s.clock.Now().UTC())

	book, err := s.scanBook(row)
	if err == ErrNotFound {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidAdjustment
	}
	return book, err
}

func (s *PostgresStore) requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
