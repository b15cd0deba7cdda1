package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefmate/internal/docs"
	"chefmate/pkg/requestcontext"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := docs.NewService(docs.NewInMemoryStore(), logger)
	h := New(service, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

func TestPutThenGetDocument(t *testing.T) {
	router := newTestRouter(t)

	put := asUser(httptest.NewRequest(http.MethodPut, "/users/me/documents/profile",
		strings.NewReader(`{"diet":"vegan"}`)), "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, put)
	require.Equal(t, http.StatusOK, w.Code)

	get := asUser(httptest.NewRequest(http.MethodGet, "/users/me/documents/profile", nil), "u1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, get)
	require.Equal(t, http.StatusOK, w.Code)

	var doc docs.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, docs.DocProfile, doc.Type)
	assert.JSONEq(t, `{"diet":"vegan"}`, string(doc.Body))
}

func TestGetMissingDocument(t *testing.T) {
	router := newTestRouter(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/users/me/documents/history", nil), "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownDocType(t *testing.T) {
	router := newTestRouter(t)

	req := asUser(httptest.NewRequest(http.MethodPut, "/users/me/documents/recipes",
		strings.NewReader(`{}`)), "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnauthenticatedRequest(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users/me/documents/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentsAreScopedPerUser(t *testing.T) {
	router := newTestRouter(t)

	put := asUser(httptest.NewRequest(http.MethodPut, "/users/me/documents/ingredients",
		strings.NewReader(`["rice"]`)), "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, put)
	require.Equal(t, http.StatusOK, w.Code)

	get := asUser(httptest.NewRequest(http.MethodGet, "/users/me/documents/ingredients", nil), "u2")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, get)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	router := newTestRouter(t)

	put := asUser(httptest.NewRequest(http.MethodPut, "/users/me/documents/profile",
		strings.NewReader(`{}`)), "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, put)
	require.Equal(t, http.StatusOK, w.Code)

	del := asUser(httptest.NewRequest(http.MethodDelete, "/users/me/documents/profile", nil), "u1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, del)
	assert.Equal(t, http.StatusNoContent, w.Code)

	get := asUser(httptest.NewRequest(http.MethodGet, "/users/me/documents/profile", nil), "u1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, get)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
