// Package favorites is the view model of the "my favorites" page.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/atinyakov/moviecatalog/internal/client/api"
	"github.com/atinyakov/moviecatalog/internal/client/authz"
	"github.com/atinyakov/moviecatalog/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotFavorite is returned when an item is not on the page.
var ErrNotFavorite = errors.New("item is not a favorite")

// API is the part of the REST client the page uses.
type API interface {
	Movie(ctx context.Context, id models.ID) (models.Movie, error)
	ReplaceMovie(ctx context.Context, m models.Movie) (models.Movie, error)
	Favorites(ctx context.Context, filter api.FavoriteFilter) ([]models.Favorite, error)
	DeleteFavorite(ctx context.Context, id models.ID) error
}

// Page lists the items the signed-in user favorited.
type Page struct {
	api     API
	session authz.Identity
	log     *zap.Logger

	mu     sync.RWMutex
	links  []models.Favorite
	movies []models.Movie
}

// New returns an empty favorites page.
func New(client API, session authz.Identity, log *zap.Logger) *Page {
	return &Page{api: client, session: session, log: log}
}

// Load fetches the user's favorite links and then every referenced item in
// parallel. The items are only replaced when all of them were fetched.
func (p *Page) Load(ctx context.Context) error {
	user, ok := p.session.Current()
	if !ok {
		p.mu.Lock()
		p.links, p.movies = nil, nil
		p.mu.Unlock()
		return authz.ErrUnauthenticated
	}

	links, err := p.api.Favorites(ctx, api.FavoriteFilter{UserID: user.ID})
	if err != nil {
		p.log.Error("failed to load favorites", zap.Error(err))
		return err
	}
	p.mu.Lock()
	p.links = links
	p.mu.Unlock()

	movies := make([]models.Movie, len(links))
	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		g.Go(func() error {
			m, err := p.api.Movie(gctx, link.MovieID)
			if err != nil {
				return fmt.Errorf("movie %s: %w", link.MovieID, err)
			}
			movies[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Error("failed to load favorite items", zap.Error(err))
		return err
	}

	p.mu.Lock()
	p.movies = movies
	p.mu.Unlock()
	return nil
}

// Movies returns the favorited items in link order.
func (p *Page) Movies() []models.Movie {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.movies)
}

// Remove deletes the favorite link to movieID and drops the item from the page.
func (p *Page) Remove(ctx context.Context, movieID models.ID) error {
	if err := authz.Authorize(authz.ActionFavorite, nil, p.session); err != nil {
		return err
	}

	p.mu.RLock()
	i := slices.IndexFunc(p.links, func(f models.Favorite) bool { return f.MovieID.Equal(movieID) })
	var link models.Favorite
	if i >= 0 {
		link = p.links[i]
	}
	p.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFavorite, movieID)
	}

	if err := p.api.DeleteFavorite(ctx, link.ID); err != nil {
		p.log.Error("failed to remove favorite", zap.String("movie", movieID.String()), zap.Error(err))
		return err
	}

	p.mu.Lock()
	p.links = slices.DeleteFunc(p.links, func(f models.Favorite) bool { return f.ID.Equal(link.ID) })
	p.movies = slices.DeleteFunc(p.movies, func(m models.Movie) bool { return m.ID.Equal(movieID) })
	p.mu.Unlock()
	return nil
}

// ToggleWatched inverts the watched flag of a favorited item.
func (p *Page) ToggleWatched(ctx context.Context, movieID models.ID) error {
	if err := authz.Authorize(authz.ActionWatch, nil, p.session); err != nil {
		return err
	}

	p.mu.RLock()
	i := slices.IndexFunc(p.movies, func(m models.Movie) bool { return m.ID.Equal(movieID) })
	var movie models.Movie
	if i >= 0 {
		movie = p.movies[i]
	}
	p.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFavorite, movieID)
	}

	movie.Watched = !movie.Watched
	if _, err := p.api.ReplaceMovie(ctx, movie); err != nil {
		p.log.Error("failed to toggle watched", zap.String("movie", movieID.String()), zap.Error(err))
		return err
	}

	p.mu.Lock()
	for j := range p.movies {
		if p.movies[j].ID.Equal(movieID) {
			p.movies[j].Watched = movie.Watched
		}
	}
	p.mu.Unlock()
	return nil
}
