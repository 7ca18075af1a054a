package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"libraledger/internal/inventory"
	"libraledger/internal/ledger"
	"libraledger/internal/locks"
	"libraledger/pkg/clock"
)

// service implements the Service interface.
//
// The pair (available copies of a book, set of its outstanding records)
// must change atomically as a whole. The two stores are not one atomic
// unit, so every mutation for a book runs under that book's lock, and
// the one failure window between the stores — record creation after a
// successful reservation — is closed by compensating with a release.
type service struct {
	inventory inventory.Store
	records   ledger.Store
	policy    Policy
	locks     *locks.Keyed
	clock     clock.Clock
	log       *zap.Logger
	tracer    trace.Tracer

	retryAttempts  int
	retryBaseDelay time.Duration
}

// Config tunes the serialization and retry behavior.
type Config struct {
	LockWaitTimeout time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
}

// NewService creates a new lending service instance.
func NewService(inv inventory.Store, records ledger.Store, policy Policy, clk clock.Clock, cfg Config, log *zap.Logger) Service {
	timeout := cfg.LockWaitTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &service{
		inventory:      inv,
		records:        records,
		policy:         policy,
		locks:          locks.NewKeyed(timeout),
		clock:          clk,
		log:            log,
		tracer:         otel.Tracer("libraledger/lending"),
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

func (s *service) Borrow(ctx context.Context, bookID uuid.UUID, userID string) (*ledger.BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.borrow",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	var record *ledger.BorrowRecord
	err := retryBusy(ctx, s.retryAttempts, s.retryBaseDelay, func(ctx context.Context) error {
		release, err := s.locks.Acquire(ctx, bookID)
		if err != nil {
			return err
		}
		defer release()

		if err := s.inventory.ReserveCopy(ctx, bookID); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		rec, err := s.records.CreateRecord(ctx, bookID, userID, now, s.policy.DueDate(now))
		if err != nil {
			// The reservation committed but no record backs it; undo it so
			// the availability count matches the outstanding records again.
			if relErr := s.inventory.ReleaseCopy(ctx, bookID); relErr != nil {
				s.log.Error("failed to compensate reservation",
					zap.String("book_id", bookID.String()),
					zap.String("user_id", userID),
					zap.Error(relErr),
				)
				return fmt.Errorf("compensate reservation: %w", relErr)
			}
			return err
		}

		record = rec
		return nil
	})
	if err != nil {
		span.SetAttributes(attribute.String("outcome", "failed"))
		return nil, err
	}

	span.SetAttributes(attribute.String("record.id", record.ID.String()))
	return record, nil
}

func (s *service) Return(ctx context.Context, recordID uuid.UUID) (*ledger.BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(attribute.String("record.id", recordID.String())),
	)
	defer span.End()

	// Validate outside the lock; the store re-checks under it.
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status == ledger.StatusReturned {
		return nil, ledger.ErrAlreadyReturned
	}

	var updated *ledger.BorrowRecord
	err = retryBusy(ctx, s.retryAttempts, s.retryBaseDelay, func(ctx context.Context) error {
		release, err := s.locks.Acquire(ctx, rec.BookID)
		if err != nil {
			return err
		}
		defer release()

		closed, err := s.records.MarkReturned(ctx, recordID, s.clock.Now().UTC())
		if err != nil {
			return err
		}

		if err := s.inventory.ReleaseCopy(ctx, rec.BookID); err != nil {
			if errors.Is(err, inventory.ErrOverRelease) {
				// Availability already equals the total while a record just
				// closed: the books don't balance. Never clamped silently.
				s.log.Error("over-release detected, ledger and inventory disagree",
					zap.String("book_id", rec.BookID.String()),
					zap.String("record_id", recordID.String()),
					zap.Error(err),
				)
			}
			return err
		}

		updated = closed
		return nil
	})
	if err != nil {
		span.SetAttributes(attribute.String("outcome", "failed"))
		return nil, err
	}

	span.SetAttributes(attribute.String("outcome", "returned"))
	return updated, nil
}

func (s *service) SetTotalCopies(ctx context.Context, bookID uuid.UUID, newTotal int) (*inventory.Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.set_total_copies",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.Int("new_total", newTotal),
		),
	)
	defer span.End()

	var book *inventory.Book
	err := retryBusy(ctx, s.retryAttempts, s.retryBaseDelay, func(ctx context.Context) error {
		release, err := s.locks.Acquire(ctx, bookID)
		if err != nil {
			return err
		}
		defer release()

		adjusted, err := s.inventory.SetTotalCopies(ctx, bookID, newTotal)
		if err != nil {
			return err
		}
		book = adjusted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}
