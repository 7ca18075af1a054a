package lending

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"libraledger/internal/httpx"
	"libraledger/internal/inventory"
	"libraledger/internal/ledger"
	"libraledger/internal/locks"
	"libraledger/internal/query"
)

type Handler struct {
	service Service
	queries *query.Engine
	log     *zap.Logger
}

func NewHandler(service Service, queries *query.Engine, log *zap.Logger) *Handler {
	return &Handler{service: service, queries: queries, log: log}
}

// Routes mounts the borrow endpoints on r. Literal segments (all,
// return, book) are registered before the email wildcard, so chi routes
// them first.
func (h *Handler) Routes(r chi.Router) {
	r.With(httpx.RequireRole(httpx.RoleAdmin, httpx.RoleLibrarian)).Get("/all", h.handleListAll)
	r.With(httpx.RequireRole(httpx.RoleAdmin, httpx.RoleLibrarian)).Get("/book/{bookID}", h.handleListByBook)
	r.With(httpx.RequireRole(httpx.RoleAdmin, httpx.RoleLibrarian)).Put("/return/{recordID}", h.handleReturn)
	r.With(httpx.RequireRole(httpx.RoleMember)).Post("/{bookID}", h.handleBorrow)
	r.Get("/{email}", h.handleListByUser)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", "invalid book id")
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		email = httpx.CallerEmail(r.Context())
	}
	// Members borrow for themselves only.
	if email != httpx.CallerEmail(r.Context()) {
		httpx.Error(w, http.StatusForbidden, "Forbidden", "cannot borrow on behalf of another user")
		return
	}

	record, err := h.service.Borrow(r.Context(), bookID, email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", "invalid record id")
		return
	}

	record, err := h.service.Return(r.Context(), recordID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.queries.All(r.Context(), queryOptions(r))
	if err != nil {
		h.log.Error("list all borrows failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Internal", "failed to list borrow records")
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleListByBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "BadRequest", "invalid book id")
		return
	}

	records, err := h.queries.ByBook(r.Context(), bookID, queryOptions(r))
	if err != nil {
		h.log.Error("list borrows by book failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Internal", "failed to list borrow records")
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleListByUser(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	// Members see their own history; staff see anyone's.
	role := httpx.CallerRole(r.Context())
	if role == httpx.RoleMember && email != httpx.CallerEmail(r.Context()) {
		httpx.Error(w, http.StatusForbidden, "Forbidden", "cannot view another user's borrow history")
		return
	}

	records, err := h.queries.ByUser(r.Context(), email, queryOptions(r))
	if err != nil {
		h.log.Error("list borrows by user failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Internal", "failed to list borrow records")
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func queryOptions(r *http.Request) query.Options {
	q := r.URL.Query()
	return query.Options{
		Status:     q.Get("status"),
		Search:     q.Get("q"),
		SortBy:     q.Get("sort"),
		Descending: q.Get("order") == "desc",
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, inventory.ErrOutOfStock):
		httpx.Error(w, http.StatusConflict, "OutOfStock", "book is not available currently")
	case errors.Is(err, ledger.ErrAlreadyBorrowed):
		httpx.Error(w, http.StatusConflict, "AlreadyBorrowed", "you have already borrowed this book, return it first")
	case errors.Is(err, ledger.ErrAlreadyReturned):
		httpx.Error(w, http.StatusConflict, "AlreadyReturned", "book already returned")
	case errors.Is(err, locks.ErrBusy):
		httpx.Error(w, http.StatusConflict, "Conflict", "book is busy, try again")
	default:
		h.log.Error("lending operation failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Internal", "lending operation failed")
	}
}
