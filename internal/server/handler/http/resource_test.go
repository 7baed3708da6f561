package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/atinyakov/moviecatalog/internal/repository"
	handler "github.com/atinyakov/moviecatalog/internal/server/handler/http"
	"github.com/atinyakov/moviecatalog/internal/service"
	"go.uber.org/zap"
)

// fakeResourceService records calls and returns preconfigured results.
type fakeResourceService struct {
	collection string
	id         models.ID
	filter     map[string]string
	received   models.Record

	records []models.Record
	record  models.Record
	err     error
}

func (f *fakeResourceService) List(_ context.Context, collection string, filter map[string]string) ([]models.Record, error) {
	f.collection, f.filter = collection, filter
	return f.records, f.err
}

func (f *fakeResourceService) Get(_ context.Context, collection string, id models.ID) (models.Record, error) {
	f.collection, f.id = collection, id
	return f.record, f.err
}

func (f *fakeResourceService) Create(_ context.Context, collection string, rec models.Record) (models.Record, error) {
	f.collection, f.received = collection, rec
	return f.record, f.err
}

func (f *fakeResourceService) Replace(_ context.Context, collection string, id models.ID, rec models.Record) (models.Record, error) {
	f.collection, f.id, f.received = collection, id, rec
	return f.record, f.err
}

func (f *fakeResourceService) Delete(_ context.Context, collection string, id models.ID) error {
	f.collection, f.id = collection, id
	return f.err
}

func serve(fake *fakeResourceService, method, target, body string) *httptest.ResponseRecorder {
	router := handler.NewRouter(&handler.ResourceHandler{ResourceService: fake}, zap.NewNop())
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestResourceHandler_ListFilters(t *testing.T) {
	fake := &fakeResourceService{records: []models.Record{{"id": float64(1), "userId": float64(2)}}}
	w := serve(fake, http.MethodGet, "/favorites?userId=2&movieId=5&_sort=id", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusOK)
	}
	if fake.collection != "favorites" {
		t.Errorf("collection = %q", fake.collection)
	}
	if len(fake.filter) != 2 || fake.filter["userId"] != "2" || fake.filter["movieId"] != "5" {
		t.Errorf("filter = %v", fake.filter)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `[{"id":1,"userId":2}]` {
		t.Errorf("body = %s", got)
	}
}

func TestResourceHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown collection", service.ErrUnknownCollection, http.StatusNotFound},
		{"not found", repository.ErrNotFound, http.StatusNotFound},
		{"invalid", service.ErrInvalidRecord, http.StatusBadRequest},
		{"duplicate review", service.ErrDuplicateReview, http.StatusConflict},
		{"duplicate id", repository.ErrDuplicateID, http.StatusConflict},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(&fakeResourceService{err: tc.err}, http.MethodGet, "/movies/1", "")
			if w.Code != tc.want {
				t.Errorf("status = %d; want %d", w.Code, tc.want)
			}
		})
	}
}

func TestResourceHandler_CreateBadBody(t *testing.T) {
	fake := &fakeResourceService{}
	w := serve(fake, http.MethodPost, "/comments", "not-a-json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want %d", w.Code, http.StatusBadRequest)
	}
	if body := w.Body.String(); body != "invalid body\n" {
		t.Errorf("body = %q; want %q", body, "invalid body\n")
	}
}

func TestResourceHandler_RejectsNonJSON(t *testing.T) {
	router := handler.NewRouter(&handler.ResourceHandler{ResourceService: &fakeResourceService{}}, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader("comment=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d; want %d", w.Code, http.StatusUnsupportedMediaType)
	}
}

func TestResourceHandler_CreateAndReplace(t *testing.T) {
	fake := &fakeResourceService{record: models.Record{"id": float64(3), "comment": "hi"}}

	w := serve(fake, http.MethodPost, "/comments", `{"comment":"hi","movieId":1,"userId":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusCreated)
	}
	if fake.received["comment"] != "hi" {
		t.Errorf("received = %v", fake.received)
	}

	w = serve(fake, http.MethodPut, "/movies/7", `{"title":"Chaves","watched":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusOK)
	}
	if fake.id != "7" || fake.received["watched"] != true {
		t.Errorf("id = %q, received = %v", fake.id, fake.received)
	}
}

func TestResourceHandler_Delete(t *testing.T) {
	fake := &fakeResourceService{}
	w := serve(fake, http.MethodDelete, "/comments/4", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusOK)
	}
	if fake.collection != "comments" || fake.id != "4" {
		t.Errorf("deleted %s/%s", fake.collection, fake.id)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "{}" {
		t.Errorf("body = %q; want {}", got)
	}
}

func TestHealth(t *testing.T) {
	w := serve(&fakeResourceService{}, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d; want %d", w.Code, http.StatusOK)
	}
}
