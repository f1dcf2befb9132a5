// Package api exposes persistence URIs and persisted documents over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/container"
	"github.com/tendant/simple-persist/pkg/persistence/document"
)

// Handler serves the persistence endpoints
type Handler struct {
	mgr    *container.Manager
	logger *slog.Logger
}

func NewHandler(mgr *container.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mgr: mgr, logger: logger}
}

// Routes returns the router for the persistence endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware, LoggingMiddleware(h.logger), RecoveryMiddleware(h.logger))

	r.Get("/uris", h.ParseURI)
	r.Get("/objects", h.ListObjects)
	r.Post("/objects/{namespace}", h.PersistObject)
	r.Get("/objects/{namespace}/{name}", h.GetObject)
	r.Delete("/objects/{namespace}/{name}", h.DeleteObject)
	return r
}

// URIResponse is the parsed view of a persistence URI
type URIResponse struct {
	Engine    string `json:"engine"`
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	URI       string `json:"uri"`
	GlobalURI string `json:"global_uri"`
}

// PersistRequest is the body of POST /objects/{namespace}
type PersistRequest struct {
	Name        string          `json:"name,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Body        json.RawMessage `json:"body"`
}

// ObjectResponse describes a persisted document
type ObjectResponse struct {
	ID          string          `json:"id"`
	Namespace   string          `json:"namespace"`
	Name        string          `json:"name"`
	ObjectType  string          `json:"object_type"`
	URI         string          `json:"uri"`
	GlobalURI   string          `json:"global_uri"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// ListResponse wraps catalog records
type ListResponse struct {
	Records []*persistence.Record `json:"records"`
	Count   int                   `json:"count"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ParseURI handles GET /uris?uri=...
func (h *Handler) ParseURI(w http.ResponseWriter, r *http.Request) {
	uri, err := persistence.Parse(r.URL.Query().Get("uri"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, URIResponse{
		Engine:    uri.Engine(),
		Path:      uri.Path(),
		Namespace: uri.Namespace(),
		Name:      uri.Name(),
		URI:       uri.String(),
		GlobalURI: uri.URI(),
	})
}

// ListObjects handles GET /objects?namespace=...
func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	records, err := h.mgr.List(r.Context(), r.URL.Query().Get("namespace"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*persistence.Record{}
	}

	render.JSON(w, r, ListResponse{Records: records, Count: len(records)})
}

// PersistObject handles POST /objects/{namespace}. The name is generated when
// the request carries none. An existing document is replaced only with
// ?overwrite=true.
func (h *Handler) PersistObject(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	overwrite := false
	if raw := r.URL.Query().Get("overwrite"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeStatus(w, r, http.StatusBadRequest, "invalid overwrite flag")
			return
		}
		overwrite = parsed
	}

	var req PersistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request", "err", err)
		h.writeStatus(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := document.New(h.mgr, namespace, req.Name)
	doc.ContentType = req.ContentType
	doc.Body = req.Body

	start := time.Now()
	uri, err := doc.Persist(r.Context(), overwrite)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Document persisted",
		"uri", uri.String(), "overwrite", overwrite, "duration", time.Since(start))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, objectResponse(doc, uri.String(), false))
}

// GetObject handles GET /objects/{namespace}/{name}
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	name := chi.URLParam(r, "name")

	record, err := h.mgr.Lookup(r.Context(), "", namespace, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	uri, err := persistence.Parse(record.URI)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	doc := document.New(h.mgr, "", "")
	if _, err := h.mgr.Load(r.Context(), uri, doc); err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, objectResponse(doc, uri.String(), true))
}

// DeleteObject handles DELETE /objects/{namespace}/{name}
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	doc := document.New(h.mgr, chi.URLParam(r, "namespace"), chi.URLParam(r, "name"))
	if err := doc.Unpersist(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func objectResponse(doc *document.Document, uri string, withBody bool) ObjectResponse {
	resp := ObjectResponse{
		ID:          doc.GlobalID().String(),
		Namespace:   doc.Namespace(),
		Name:        doc.Name(),
		ObjectType:  doc.ObjectType(),
		URI:         uri,
		GlobalURI:   doc.URI(),
		ContentType: doc.ContentType,
	}
	if withBody {
		resp.Body = doc.Body
	}
	return resp
}

// statusFor maps persistence errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, persistence.ErrEmptyURI),
		errors.Is(err, persistence.ErrNameRequired),
		errors.Is(err, persistence.ErrInvalidName),
		errors.Is(err, document.ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, persistence.ErrRecordNotFound),
		errors.Is(err, persistence.ErrObjectNotFound),
		errors.Is(err, persistence.ErrEngineNotFound):
		return http.StatusNotFound
	case errors.Is(err, persistence.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "err", err)
	}
	h.writeStatus(w, r, status, err.Error())
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message, RequestID: RequestID(r.Context())})
}
