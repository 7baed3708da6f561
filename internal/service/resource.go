// Package service provides the business rules of the resource API,
// delegating persistence to a RecordRepository.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrUnknownCollection is returned for collection names the API does not serve.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrInvalidRecord is returned when a payload fails validation.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrDuplicateReview is returned when a user reviews the same item twice.
	ErrDuplicateReview = errors.New("review already exists for this user and item")
)

// RecordRepository defines the persistence operations needed by the ResourceService.
type RecordRepository interface {
	// List returns the records of a collection matching every filter field.
	List(ctx context.Context, collection string, filter map[string]string) ([]models.Record, error)
	// Get returns a single record or repository.ErrNotFound.
	Get(ctx context.Context, collection string, id models.ID) (models.Record, error)
	// Create stores a record, assigning an id when it has none.
	Create(ctx context.Context, collection string, rec models.Record) (models.Record, error)
	// Replace overwrites a record, keeping its id.
	Replace(ctx context.Context, collection string, id models.ID, rec models.Record) (models.Record, error)
	// Delete removes a record or returns repository.ErrNotFound.
	Delete(ctx context.Context, collection string, id models.ID) error
	// DeleteMany removes records by id and reports how many were removed.
	DeleteMany(ctx context.Context, collection string, ids []models.ID) (int64, error)
	// Reset replaces the whole store with snapshot.
	Reset(ctx context.Context, snapshot models.Snapshot) error
}

const listCacheTTL = 5 * time.Minute

// ResourceService validates payloads, keeps related collections consistent
// and caches list queries.
type ResourceService struct {
	repo     RecordRepository
	validate *validator.Validate
	lists    *cache.Cache

	// mu orders cache fills against flushes; generations counts flushes
	// per collection.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewResourceService constructs a ResourceService over repo.
func NewResourceService(repo RecordRepository) *ResourceService {
	return &ResourceService{
		repo:     repo,
		validate: models.NewValidator(),
		lists:    cache.New(listCacheTTL, 2*listCacheTTL),

		generations: make(map[string]uint64),
	}
}

// List returns the records of collection matching filter.
func (s *ResourceService) List(ctx context.Context, collection string, filter map[string]string) ([]models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	key := cacheKey(collection, filter)
	if cached, ok := s.lists.Get(key); ok {
		return cloneAll(cached.([]models.Record)), nil
	}

	gen := s.generation(collection)
	records, err := s.repo.List(ctx, collection, filter)
	if err != nil {
		return nil, err
	}

	// A write that finished while the repository was read makes the result
	// possibly stale, so it is returned but not cached.
	s.mu.Lock()
	if s.generations[collection] == gen {
		s.lists.SetDefault(key, cloneAll(records))
	}
	s.mu.Unlock()
	return records, nil
}

// Get returns one record by id.
func (s *ResourceService) Get(ctx context.Context, collection string, id models.ID) (models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, collection, id)
}

// Create validates and stores a new record. A second review for the same
// (movie, user) pair is rejected with ErrDuplicateReview.
func (s *ResourceService) Create(ctx context.Context, collection string, rec models.Record) (models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := s.check(collection, rec); err != nil {
		return nil, err
	}

	if collection == models.CollectionReviews {
		existing, err := s.repo.List(ctx, collection, map[string]string{
			"movieId": rec.Field("movieId"),
			"userId":  rec.Field("userId"),
		})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, ErrDuplicateReview
		}
	}

	defer s.flush(collection)
	return s.repo.Create(ctx, collection, rec)
}

// Replace validates rec and stores it in place of the record with id.
func (s *ResourceService) Replace(ctx context.Context, collection string, id models.ID, rec models.Record) (models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := s.check(collection, rec); err != nil {
		return nil, err
	}

	defer s.flush(collection)
	return s.repo.Replace(ctx, collection, id, rec)
}

// Delete removes a record. Deleting a movie also deletes its favorites,
// reviews and comments.
func (s *ResourceService) Delete(ctx context.Context, collection string, id models.ID) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	defer s.flush(collection)
	if err := s.repo.Delete(ctx, collection, id); err != nil {
		return err
	}
	if collection != models.CollectionMovies {
		return nil
	}

	for _, dependent := range []string{models.CollectionFavorites, models.CollectionReviews, models.CollectionComments} {
		rows, err := s.repo.List(ctx, dependent, map[string]string{"movieId": id.String()})
		if err != nil {
			return fmt.Errorf("cascade %s: %w", dependent, err)
		}
		if len(rows) == 0 {
			continue
		}
		ids := make([]models.ID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID())
		}
		if _, err := s.repo.DeleteMany(ctx, dependent, ids); err != nil {
			return fmt.Errorf("cascade %s: %w", dependent, err)
		}
		s.flush(dependent)
	}
	return nil
}

// DeleteMany removes records of collection by id and reports how many
// were removed.
func (s *ResourceService) DeleteMany(ctx context.Context, collection string, ids []models.ID) (int64, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}

	defer s.flush(collection)
	return s.repo.DeleteMany(ctx, collection, ids)
}

// Seed loads snapshot into the store when force is set or the store holds
// no records at all. It reports whether the snapshot was applied.
func (s *ResourceService) Seed(ctx context.Context, snapshot models.Snapshot, force bool) (bool, error) {
	if !force {
		for _, collection := range models.Collections {
			records, err := s.repo.List(ctx, collection, nil)
			if err != nil {
				return false, err
			}
			if len(records) > 0 {
				return false, nil
			}
		}
	}

	defer func() {
		for _, collection := range models.Collections {
			s.flush(collection)
		}
	}()
	if err := s.repo.Reset(ctx, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

// check decodes rec into the typed model of collection and validates it.
func (s *ResourceService) check(collection string, rec models.Record) error {
	var target any
	switch collection {
	case models.CollectionUsers:
		target = &models.User{}
	case models.CollectionMovies:
		target = &models.Movie{}
	case models.CollectionFavorites:
		target = &models.Favorite{}
	case models.CollectionReviews:
		target = &models.Review{}
	case models.CollectionComments:
		target = &models.Comment{}
	}

	if err := models.Decode(rec, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := s.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

func (s *ResourceService) generation(collection string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[collection]
}

// flush drops every cached list of collection and invalidates list reads
// still in flight.
func (s *ResourceService) flush(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations[collection]++
	prefix := collection + "?"
	for key := range s.lists.Items() {
		if strings.HasPrefix(key, prefix) {
			s.lists.Delete(key)
		}
	}
}

func checkCollection(collection string) error {
	if !slices.Contains(models.Collections, collection) {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return nil
}

func cacheKey(collection string, filter map[string]string) string {
	q := url.Values{}
	for k, v := range filter {
		q.Set(k, models.Canonical(v))
	}
	return collection + "?" + q.Encode()
}

func cloneAll(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Clone())
	}
	return out
}
