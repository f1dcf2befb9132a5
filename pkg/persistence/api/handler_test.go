package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/container"
)

// setupHandlerTest creates a router backed by an in-memory manager
func setupHandlerTest(t *testing.T) http.Handler {
	t.Helper()
	mgr, err := container.NewManager()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return NewHandler(mgr, nil).Routes()
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_ParseURI(t *testing.T) {
	router := setupHandlerTest(t)

	w := do(t, router, http.MethodGet, "/uris?uri=basic:///root/ddf/x/y/MyDDF.dat", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp URIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "basic", resp.Engine)
	assert.Equal(t, "/root/ddf/x/y/MyDDF", resp.Path)
	assert.Equal(t, "y", resp.Namespace)
	assert.Equal(t, "MyDDF", resp.Name)
	assert.Equal(t, "persistence_uri://y/MyDDF", resp.GlobalURI)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandler_ParseURI_Empty(t *testing.T) {
	router := setupHandlerTest(t)

	w := do(t, router, http.MethodGet, "/uris", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, persistence.ErrEmptyURI.Error(), resp.Error)
	assert.NotEmpty(t, resp.RequestID)
}

func TestHandler_ObjectLifecycle(t *testing.T) {
	router := setupHandlerTest(t)

	// Create
	w := do(t, router, http.MethodPost, "/objects/reports", PersistRequest{
		Name: "q3",
		Body: json.RawMessage(`{"total":42}`),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created ObjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "reports", created.Namespace)
	assert.Equal(t, "q3", created.Name)
	assert.Equal(t, "document", created.ObjectType)
	assert.Equal(t, "basic:///ddf/reports/q3", created.URI)
	assert.Equal(t, "document://reports/q3", created.GlobalURI)
	assert.Equal(t, "application/json", created.ContentType)

	// Conflict without overwrite
	w = do(t, router, http.MethodPost, "/objects/reports", PersistRequest{Name: "q3", Body: json.RawMessage(`1`)})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Overwrite
	w = do(t, router, http.MethodPost, "/objects/reports?overwrite=true", PersistRequest{Name: "q3", Body: json.RawMessage(`{"total":43}`)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Get
	w = do(t, router, http.MethodGet, "/objects/reports/q3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got ObjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.JSONEq(t, `{"total":43}`, string(got.Body))
	assert.Equal(t, "q3", got.Name)

	// List
	w = do(t, router, http.MethodGet, "/objects?namespace=reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	// Delete
	w = do(t, router, http.MethodDelete, "/objects/reports/q3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/objects/reports/q3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, router, http.MethodDelete, "/objects/reports/q3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_PersistGeneratesName(t *testing.T) {
	router := setupHandlerTest(t)

	w := do(t, router, http.MethodPost, "/objects/scratch", PersistRequest{Body: json.RawMessage(`[]`)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created ObjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.Name, "document_"))
}

func TestHandler_PersistBadRequests(t *testing.T) {
	router := setupHandlerTest(t)

	w := do(t, router, http.MethodPost, "/objects/reports?overwrite=maybe", PersistRequest{Name: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/objects/reports", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListEmpty(t *testing.T) {
	router := setupHandlerTest(t)

	w := do(t, router, http.MethodGet, "/objects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"records":[],"count":0}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(&persistence.StorageError{Err: persistence.ErrObjectNotFound}))
	assert.Equal(t, http.StatusNotFound, statusFor(persistence.ErrEngineNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(persistence.ErrNameRequired))
	assert.Equal(t, http.StatusBadRequest, statusFor(persistence.ErrInvalidName))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RequestIDMiddleware(RecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "request_id")
}

func TestHandler_PersistRejectsDotSegments(t *testing.T) {
	router := setupHandlerTest(t)

	w := do(t, router, http.MethodPost, "/objects/..", PersistRequest{Name: "escaped", Body: json.RawMessage(`1`)})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/objects/%2E%2E", PersistRequest{Name: "escaped", Body: json.RawMessage(`1`)})
	assert.NotEqual(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/objects/reports", PersistRequest{Name: "..", Body: json.RawMessage(`1`)})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, persistence.ErrInvalidName.Error())

	w = do(t, router, http.MethodGet, "/objects", nil)
	assert.JSONEq(t, `{"records":[],"count":0}`, w.Body.String())
}
