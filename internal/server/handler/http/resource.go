// Package http provides the HTTP handlers of the catalog resource API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/atinyakov/moviecatalog/internal/repository"
	"github.com/atinyakov/moviecatalog/internal/service"
	"github.com/go-chi/chi/v5"
)

// ResourceService defines the operations required by the ResourceHandler.
type ResourceService interface {
	List(ctx context.Context, collection string, filter map[string]string) ([]models.Record, error)
	Get(ctx context.Context, collection string, id models.ID) (models.Record, error)
	Create(ctx context.Context, collection string, rec models.Record) (models.Record, error)
	Replace(ctx context.Context, collection string, id models.ID, rec models.Record) (models.Record, error)
	Delete(ctx context.Context, collection string, id models.ID) error
}

// ResourceHandler serves CRUD requests for every collection.
type ResourceHandler struct {
	ResourceService ResourceService
}

// List handles GET /{collection}. Query parameters become equality filters;
// parameters starting with an underscore are ignored.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := make(map[string]string)
	for k, v := range r.URL.Query() {
		if strings.HasPrefix(k, "_") || len(v) == 0 {
			continue
		}
		filter[k] = v[0]
	}

	records, err := h.ResourceService.List(r.Context(), chi.URLParam(r, "collection"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Get handles GET /{collection}/{id}.
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ResourceService.Get(r.Context(), chi.URLParam(r, "collection"), models.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create handles POST /{collection} and responds 201 with the stored record.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec == nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	created, err := h.ResourceService.Create(r.Context(), chi.URLParam(r, "collection"), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Replace handles PUT /{collection}/{id}: the body replaces the whole record.
func (h *ResourceHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec == nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	updated, err := h.ResourceService.Replace(r.Context(), chi.URLParam(r, "collection"), models.ID(chi.URLParam(r, "id")), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /{collection}/{id} and responds with an empty object.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ResourceService.Delete(r.Context(), chi.URLParam(r, "collection"), models.ID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// Health handles GET /healthz.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownCollection), errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrDuplicateReview), errors.Is(err, repository.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
