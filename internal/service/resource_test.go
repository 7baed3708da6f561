package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/atinyakov/moviecatalog/internal/db"
	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/atinyakov/moviecatalog/internal/repository"
	"github.com/atinyakov/moviecatalog/internal/service"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo counts List calls that reach the underlying repository.
type countingRepo struct {
	*repository.FileRecordRepository
	lists int
}

func (c *countingRepo) List(ctx context.Context, collection string, filter map[string]string) ([]models.Record, error) {
	c.lists++
	return c.FileRecordRepository.List(ctx, collection, filter)
}

func newService(t *testing.T) (*service.ResourceService, *countingRepo) {
	t.Helper()
	file, err := repository.NewFileRecordRepository(afero.NewMemMapFs(), "/db.json")
	require.NoError(t, err)
	repo := &countingRepo{FileRecordRepository: file}
	require.NoError(t, repo.Reset(context.Background(), models.Snapshot{
		models.CollectionMovies: {
			{"id": float64(1), "title": "Friends", "type": "series", "releaseYear": float64(1994)},
			{"id": float64(2), "title": "Chaves", "type": "series", "releaseYear": float64(1971)},
		},
		models.CollectionFavorites: {
			{"id": float64(1), "userId": float64(2), "movieId": float64(1)},
			{"id": float64(2), "userId": float64(2), "movieId": float64(2)},
		},
		models.CollectionReviews: {
			{"id": float64(1), "userId": float64(2), "movieId": float64(1), "rating": float64(5)},
		},
		models.CollectionComments: {
			{"id": float64(1), "userId": float64(3), "movieId": float64(1), "comment": "top"},
		},
	}))
	return service.NewResourceService(repo), repo
}

func TestResourceService_UnknownCollection(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, "secrets", nil)
	assert.ErrorIs(t, err, service.ErrUnknownCollection)
	_, err = svc.Get(ctx, "secrets", "1")
	assert.ErrorIs(t, err, service.ErrUnknownCollection)
	_, err = svc.Create(ctx, "secrets", models.Record{})
	assert.ErrorIs(t, err, service.ErrUnknownCollection)
	assert.ErrorIs(t, svc.Delete(ctx, "secrets", "1"), service.ErrUnknownCollection)
}

func TestResourceService_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		collection string
		rec        models.Record
		wantErr    bool
	}{
		{"blank comment", models.CollectionComments, models.Record{"movieId": float64(1), "userId": float64(2), "comment": "  "}, true},
		{"comment", models.CollectionComments, models.Record{"movieId": float64(1), "userId": float64(2), "comment": "legal"}, false},
		{"rating out of range", models.CollectionReviews, models.Record{"movieId": float64(2), "userId": float64(2), "rating": float64(9)}, true},
		{"favorite without user", models.CollectionFavorites, models.Record{"movieId": float64(1)}, true},
		{"movie with bad year type", models.CollectionMovies, models.Record{"title": "X", "type": "movie", "releaseYear": "1994"}, true},
		{"movie", models.CollectionMovies, models.Record{"title": "Os Goonies", "type": "movie", "releaseYear": float64(1985)}, false},
		{"user with bad role", models.CollectionUsers, models.Record{"email": "x@test.com", "role": "root"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.collection, tc.rec)
			if tc.wantErr {
				assert.ErrorIs(t, err, service.ErrInvalidRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResourceService_DuplicateReview(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CollectionReviews, models.Record{"movieId": "1", "userId": "2", "rating": float64(3)})
	assert.ErrorIs(t, err, service.ErrDuplicateReview)

	created, err := svc.Create(ctx, models.CollectionReviews, models.Record{"movieId": float64(1), "userId": float64(3), "rating": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, models.ID("2"), created.ID())

	updated, err := svc.Replace(ctx, models.CollectionReviews, "1", models.Record{"movieId": float64(1), "userId": float64(2), "rating": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, float64(2), updated["rating"])
}

func TestResourceService_DeleteMovieCascades(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, models.CollectionMovies, "1"))

	favs, err := svc.List(ctx, models.CollectionFavorites, nil)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "2", favs[0].Field("movieId"))

	reviews, err := svc.List(ctx, models.CollectionReviews, nil)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	comments, err := svc.List(ctx, models.CollectionComments, nil)
	require.NoError(t, err)
	assert.Empty(t, comments)

	err = svc.Delete(ctx, models.CollectionMovies, "1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestResourceService_ListCache(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	filter := map[string]string{"userId": "2"}

	first, err := svc.List(ctx, models.CollectionFavorites, filter)
	require.NoError(t, err)
	require.Len(t, first, 2)
	first[0]["movieId"] = "mutated"

	second, err := svc.List(ctx, models.CollectionFavorites, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists, "second list must be served from cache")
	assert.Equal(t, "1", second[0].Field("movieId"), "cached records must not be shared with callers")

	require.NoError(t, svc.Delete(ctx, models.CollectionFavorites, "1"))

	third, err := svc.List(ctx, models.CollectionFavorites, filter)
	require.NoError(t, err)
	assert.Len(t, third, 1)
	assert.Equal(t, 2, repo.lists, "write must flush the collection's cache")
}

func TestResourceService_CascadeFlushesDependentCache(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	comments, err := svc.List(ctx, models.CollectionComments, map[string]string{"movieId": "1"})
	require.NoError(t, err)
	require.Len(t, comments, 1)

	require.NoError(t, svc.Delete(ctx, models.CollectionMovies, "1"))

	comments, err = svc.List(ctx, models.CollectionComments, map[string]string{"movieId": "1"})
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestResourceService_Seed(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	snapshot := models.Snapshot{
		models.CollectionMovies: {{"id": float64(1), "title": "Forrest Gump", "type": "movie", "releaseYear": float64(1994)}},
	}

	applied, err := svc.Seed(ctx, snapshot, false)
	require.NoError(t, err)
	assert.False(t, applied, "non-empty store must not be reseeded")

	applied, err = svc.Seed(ctx, snapshot, true)
	require.NoError(t, err)
	assert.True(t, applied)

	movies, err := svc.List(ctx, models.CollectionMovies, nil)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Forrest Gump", movies[0]["title"])
}

func TestResourceService_SeedEmptyStore(t *testing.T) {
	file, err := repository.NewFileRecordRepository(afero.NewMemMapFs(), "/empty.json")
	require.NoError(t, err)
	svc := service.NewResourceService(file)

	applied, err := svc.Seed(context.Background(), models.Snapshot{
		models.CollectionUsers: {{"id": float64(1), "email": "admin@test.com", "role": "admin"}},
	}, false)
	require.NoError(t, err)
	assert.True(t, applied)
}

// pausingRepo holds the first List of a collection until released.
type pausingRepo struct {
	*repository.FileRecordRepository
	collection string
	reading    chan struct{}
	release    chan struct{}
	once       sync.Once
}

func (p *pausingRepo) List(ctx context.Context, collection string, filter map[string]string) ([]models.Record, error) {
	records, err := p.FileRecordRepository.List(ctx, collection, filter)
	if collection == p.collection {
		p.once.Do(func() {
			close(p.reading)
			<-p.release
		})
	}
	return records, err
}

func TestResourceService_ListRacingWriteIsNotCached(t *testing.T) {
	file, err := repository.NewFileRecordRepository(afero.NewMemMapFs(), "/db.json")
	require.NoError(t, err)
	repo := &pausingRepo{
		FileRecordRepository: file,
		collection:           models.CollectionComments,
		reading:              make(chan struct{}),
		release:              make(chan struct{}),
	}
	svc := service.NewResourceService(repo)
	ctx := context.Background()

	done := make(chan struct{})
	var stale []models.Record
	go func() {
		defer close(done)
		stale, _ = svc.List(ctx, models.CollectionComments, nil)
	}()

	<-repo.reading
	_, err = svc.Create(ctx, models.CollectionComments, models.Record{"movieId": float64(1), "userId": float64(2), "comment": "muito bom"})
	require.NoError(t, err)
	close(repo.release)
	<-done
	assert.Empty(t, stale)

	comments, err := svc.List(ctx, models.CollectionComments, nil)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestResourceService_SweepFlushesCache(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, models.CollectionMovies, "2"))
	_, err := svc.Create(ctx, models.CollectionFavorites, models.Record{"userId": float64(2), "movieId": float64(99)})
	require.NoError(t, err)

	before, err := svc.List(ctx, models.CollectionFavorites, map[string]string{"userId": "2"})
	require.NoError(t, err)
	require.Len(t, before, 2)

	swept, err := db.SweepOrphans(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{models.CollectionFavorites: 1}, swept)

	after, err := svc.List(ctx, models.CollectionFavorites, map[string]string{"userId": "2"})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "1", after[0].Field("movieId"))
}

func TestResourceService_DeleteManyUnknownCollection(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.DeleteMany(context.Background(), "secrets", []models.ID{"1"})
	assert.ErrorIs(t, err, service.ErrUnknownCollection)
}
