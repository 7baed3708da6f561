package db

import (
	"context"
	"fmt"
	"time"

	"github.com/atinyakov/moviecatalog/internal/models"
	"go.uber.org/zap"
)

// RecordStore is the part of the record repository the sweeper needs.
type RecordStore interface {
	List(ctx context.Context, collection string, filter map[string]string) ([]models.Record, error)
	DeleteMany(ctx context.Context, collection string, ids []models.ID) (int64, error)
}

// dependents are the collections whose rows point at a movie.
var dependents = []string{
	models.CollectionFavorites,
	models.CollectionReviews,
	models.CollectionComments,
}

// StartOrphanSweeper periodically deletes favorites, reviews and comments
// that reference a movie which no longer exists.
func StartOrphanSweeper(
	ctx context.Context,
	store RecordStore,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := SweepOrphans(ctx, store)
				if err != nil {
					log.Error("failed to sweep orphaned records", zap.Error(err))
					continue
				}
				for collection, n := range removed {
					log.Info("swept orphaned records",
						zap.String("collection", collection),
						zap.Int64("removed", n))
				}
			}
		}
	}()
}

// SweepOrphans runs one sweep and reports the number of removed records per
// collection. Collections with nothing removed are omitted.
func SweepOrphans(ctx context.Context, store RecordStore) (map[string]int64, error) {
	movies, err := store.List(ctx, models.CollectionMovies, nil)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	known := make(map[string]struct{}, len(movies))
	for _, m := range movies {
		known[m.ID().String()] = struct{}{}
	}

	removed := make(map[string]int64)
	for _, collection := range dependents {
		records, err := store.List(ctx, collection, nil)
		if err != nil {
			return removed, fmt.Errorf("list %s: %w", collection, err)
		}

		var orphans []models.ID
		for _, rec := range records {
			if _, ok := known[rec.Field("movieId")]; !ok {
				orphans = append(orphans, rec.ID())
			}
		}
		if len(orphans) == 0 {
			continue
		}

		n, err := store.DeleteMany(ctx, collection, orphans)
		if err != nil {
			return removed, fmt.Errorf("delete orphaned %s: %w", collection, err)
		}
		if n > 0 {
			removed[collection] = n
		}
	}
	return removed, nil
}
