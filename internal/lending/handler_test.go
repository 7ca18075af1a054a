package lending

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"libraledger/internal/httpx"
	"libraledger/internal/ledger"
	"libraledger/internal/query"
)

type testServer struct {
	*fixture
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	f := newFixture(t)
	queries := query.NewEngine(f.records, f.inv, 7)
	handler := NewHandler(f.svc, queries, zap.NewNop())

	router := chi.NewRouter()
	router.Use(httpx.Identity)
	router.Route("/api/borrow", handler.Routes)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{fixture: f, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, email, role string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.srv.URL+path, nil)
	require.NoError(t, err)
	if email != "" {
		req.Header.Set("X-User-Email", email)
		req.Header.Set("X-User-Role", role)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) httpx.ErrorBody {
	t.Helper()
	defer resp.Body.Close()

	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandler_BorrowHappyPath(t *testing.T) {
	ts := newTestServer(t)
	bookID := ts.addBook(t, 2)

	resp := ts.do(t, http.MethodPost,
		fmt.Sprintf("/api/borrow/%s?email=alice@example.com", bookID),
		"alice@example.com", httpx.RoleMember)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec ledger.BorrowRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, bookID, rec.BookID)
	assert.Equal(t, "alice@example.com", rec.UserID)
	assert.Equal(t, ledger.StatusBorrowed, rec.Status)
}

func TestHandler_BorrowRequiresIdentity(t *testing.T) {
	ts := newTestServer(t)
	bookID := ts.addBook(t, 1)

	resp := ts.do(t, http.MethodPost, "/api/borrow/"+bookID.String(), "", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_BorrowRequiresMemberRole(t *testing.T) {
	ts := newTestServer(t)
	bookID := ts.addBook(t, 1)

	resp := ts.do(t, http.MethodPost, "/api/borrow/"+bookID.String(),
		"staff@example.com", httpx.RoleLibrarian)
	body := decodeError(t, resp)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Forbidden", body.Error.Kind)
}

func TestHandler_BorrowForAnotherUserForbidden(t *testing.T) {
	ts := newTestServer(t)
	bookID := ts.addBook(t, 1)

	resp := ts.do(t, http.MethodPost,
		fmt.Sprintf("/api/borrow/%s?email=bob@example.com", bookID),
		"alice@example.com", httpx.RoleMember)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandler_BorrowErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	bookID := ts.addBook(t, 1)

	// Drain the single copy.
	resp := ts.do(t, http.MethodPost, "/api/borrow/"+bookID.String(),
		"alice@example.com", httpx.RoleMember)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("out of stock", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/borrow/"+bookID.String(),
			"bob@example.com", httpx.RoleMember)
		body := decodeError(t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "OutOfStock", body.Error.Kind)
	})

	t.Run("already borrowed", func(t *testing.T) {
		_, err := ts.svc.SetTotalCopies(context.Background(), bookID, 3)
		require.NoError(t, err)

		resp := ts.do(t, http.MethodPost, "/api/borrow/"+bookID.String(),
			"alice@example.com", httpx.RoleMember)
		body := decodeError(t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "AlreadyBorrowed", body.Error.Kind)
	})

	t.Run("unknown book", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/borrow/"+uuid.NewString(),
			"bob@example.com", httpx.RoleMember)
		body := decodeError(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NotFound", body.Error.Kind)
	})

	t.Run("malformed book id", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/borrow/not-a-uuid",
			"bob@example.com", httpx.RoleMember)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandler_ReturnFlow(t *testing.T) {
	ts := newTestServer(t)
	bookID := ts.addBook(t, 1)

	rec, err := ts.svc.Borrow(context.Background(), bookID, "alice@example.com")
	require.NoError(t, err)

	t.Run("members cannot mark returns", func(t *testing.T) {
		resp := ts.do(t, http.MethodPut, "/api/borrow/return/"+rec.ID.String(),
			"alice@example.com", httpx.RoleMember)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("librarian marks return", func(t *testing.T) {
		resp := ts.do(t, http.MethodPut, "/api/borrow/return/"+rec.ID.String(),
			"staff@example.com", httpx.RoleLibrarian)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated ledger.BorrowRecord
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
		assert.Equal(t, ledger.StatusReturned, updated.Status)
		assert.NotNil(t, updated.ReturnDate)
	})

	t.Run("second return conflicts", func(t *testing.T) {
		resp := ts.do(t, http.MethodPut, "/api/borrow/return/"+rec.ID.String(),
			"staff@example.com", httpx.RoleLibrarian)
		body := decodeError(t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "AlreadyReturned", body.Error.Kind)
	})

	t.Run("unknown record", func(t *testing.T) {
		resp := ts.do(t, http.MethodPut, "/api/borrow/return/"+uuid.NewString(),
			"staff@example.com", httpx.RoleLibrarian)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHandler_ListEndpoints(t *testing.T) {
	ts := newTestServer(t)
	bookID := ts.addBook(t, 3)

	_, err := ts.svc.Borrow(context.Background(), bookID, "alice@example.com")
	require.NoError(t, err)
	rec, err := ts.svc.Borrow(context.Background(), bookID, "bob@example.com")
	require.NoError(t, err)
	_, err = ts.svc.Return(context.Background(), rec.ID)
	require.NoError(t, err)

	t.Run("all requires staff role", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/borrow/all",
			"alice@example.com", httpx.RoleMember)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("all with status filter", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/borrow/all?status=BORROWED",
			"admin@example.com", httpx.RoleAdmin)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []query.Record
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "alice@example.com", rows[0].UserEmail)
	})

	t.Run("by book", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/borrow/book/"+bookID.String(),
			"staff@example.com", httpx.RoleLibrarian)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []query.Record
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
		assert.Len(t, rows, 2)
	})

	t.Run("member reads own history", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/borrow/alice@example.com",
			"alice@example.com", httpx.RoleMember)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []query.Record
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
		require.Len(t, rows, 1)
		assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), *rows[0].BorrowDate)
	})

	t.Run("member cannot read another user's history", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/borrow/bob@example.com",
			"alice@example.com", httpx.RoleMember)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
