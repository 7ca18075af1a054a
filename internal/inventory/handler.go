package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"libraledger/internal/httpx"
	"libraledger/internal/locks"
)

// CopyAdjuster is the serialized path for total-copies edits. It is
// implemented by the lending service so copy adjustments contend with
// borrows and returns on the same book.
type CopyAdjuster interface {
	SetTotalCopies(ctx context.Context, bookID uuid.UUID, newTotal int) (*Book, error)
}

type Handler struct {
	store    Store
	adjuster CopyAdjuster
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewHandler builds the book endpoints. mutationsPerMinute bounds
// admin writes to the catalog.
func NewHandler(store Store, adjuster CopyAdjuster, mutationsPerMinute int, log *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		adjuster: adjuster,
		limiter:  rate.NewLimiter(rate.Limit(float64(mutationsPerMinute)/60.0), mutationsPerMinute),
		log:      log,
	}
}

// Routes mounts the book endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{bookID}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRole(httpx.RoleAdmin, httpx.RoleLibrarian))
		r.Post("/", h.handleCreate)
		r.Put("/{bookID}", h.handleUpdate)
		r.Delete("/{bookID}", h.handleDelete)
	})
}

// bookRequest carries TotalCopies as a pointer so an update that omits
// the field reads as "leave the copy count alone", not as zero.
type bookRequest struct {
	ISBN          string     `json:"isbn"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Publisher     string     `json:"publisher"`
	PublishedDate *time.Time `json:"published_date"`
	TotalCopies   *int       `json:"total_copies"`
}

func (r bookRequest) details() Details {
	return Details{
		ISBN:          r.ISBN,
		Title:         r.Title,
		Author:        r.Author,
		Publisher:     r.Publisher,
		PublishedDate: r.PublishedDate,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.allowMutation(w) {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	if req.Title == "" || req.TotalCopies == nil || *req.TotalCopies < 1 {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", "title and a positive total_copies are required")
		return
	}

	book := &Book{
		ISBN:          req.ISBN,
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedDate: req.PublishedDate,
		TotalCopies:   *req.TotalCopies,
	}
	if err := h.store.Create(r.Context(), book); err != nil {
		h.log.Error("create book failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Internal", "failed to create book")
		return
	}

	httpx.JSON(w, http.StatusCreated, book)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	books, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("list books failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Internal", "failed to list books")
		return
	}
	httpx.JSON(w, http.StatusOK, books)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	book, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

// handleUpdate edits descriptive fields directly and routes copy-count
// changes through the serialized adjuster, never through raw field writes.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !h.allowMutation(w) {
		return
	}
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	// Validate the copy count before touching anything so a bad request
	// cannot leave a half-applied update behind.
	if req.TotalCopies != nil && *req.TotalCopies < 1 {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", "total_copies must be positive")
		return
	}

	book, err := h.store.UpdateDetails(r.Context(), id, req.details())
	if err != nil {
		h.writeError(w, err)
		return
	}

	if req.TotalCopies != nil && *req.TotalCopies != book.TotalCopies {
		book, err = h.adjuster.SetTotalCopies(r.Context(), id, *req.TotalCopies)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.allowMutation(w) {
		return
	}
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	if err := h.store.Retire(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) allowMutation(w http.ResponseWriter) bool {
	if !h.limiter.Allow() {
		httpx.Error(w, http.StatusTooManyRequests, "RateLimited", "too many catalog mutations")
		return false
	}
	return true
}

func (h *Handler) bookID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", "invalid book id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "NotFound", "book not found")
	case errors.Is(err, ErrInvalidAdjustment):
		httpx.Error(w, http.StatusConflict, "InvalidAdjustment", "total copies cannot drop below outstanding loans")
	case errors.Is(err, locks.ErrBusy):
		httpx.Error(w, http.StatusConflict, "Conflict", "book is busy, try again")
	default:
		h.log.Error("inventory operation failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Internal", "inventory operation failed")
	}
}
