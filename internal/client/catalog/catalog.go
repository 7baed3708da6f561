// Package catalog is the view model of the catalog page: the full list of
// items, the signed-in user's favorites and the filtered view over them.
package catalog

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
)

var (
	// ErrBusy is returned when a toggle on the same item is still in flight.
	ErrBusy = errors.New("a change to this item is already in progress")
	// ErrUnknownItem is returned for ids that are not in the loaded catalog.
	ErrUnknownItem = errors.New("item is not in the catalog")
)

// API is the part of the REST client the catalog uses.
type API interface {
	Movies(ctx context.Context) ([]models.Movie, error)
	ReplaceMovie(ctx context.Context, m models.Movie) (models.Movie, error)
	Favorites(ctx context.Context, filter api.FavoriteFilter) ([]models.Favorite, error)
	CreateFavorite(ctx context.Context, f models.Favorite) (models.Favorite, error)
	DeleteFavorite(ctx context.Context, id models.ID) error
}

// Catalog holds the catalog page state. Local state only changes after the
// backend confirmed a mutation.
type Catalog struct {
	api     API
	session authz.Identity
	log     *zap.Logger

	mu        sync.RWMutex
	movies    []models.Movie
	favorites []models.Favorite
	filter    Filter
	inflight  map[string]struct{}
}

// New returns an empty catalog view model.
func New(client API, session authz.Identity, log *zap.Logger) *Catalog {
	return &Catalog{
		api:      client,
		session:  session,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// LoadCatalog replaces the local catalog with the backend's.
func (c *Catalog) LoadCatalog(ctx context.Context) error {
	movies, err := c.api.Movies(ctx)
	if err != nil {
		c.log.Error("failed to load catalog", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.movies = movies
	c.mu.Unlock()
	return nil
}

// LoadFavorites replaces the local favorites with the signed-in user's.
// Without a session the favorites are cleared.
func (c *Catalog) LoadFavorites(ctx context.Context) error {
	user, ok := c.session.Current()
	if !ok {
		c.mu.Lock()
		c.favorites = nil
		c.mu.Unlock()
		return nil
	}

	favorites, err := c.api.Favorites(ctx, api.FavoriteFilter{UserID: user.ID})
	if err != nil {
		c.log.Error("failed to load favorites", zap.String("user", user.ID.String()), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.favorites = favorites
	c.mu.Unlock()
	return nil
}

// SetQuery sets the text search.
func (c *Catalog) SetQuery(q string) { c.updateFilter(func(f *Filter) { f.Query = q }) }

// SetKind sets the kind filter.
func (c *Catalog) SetKind(kind string) { c.updateFilter(func(f *Filter) { f.Kind = kind }) }

// SetGenre sets the genre filter.
func (c *Catalog) SetGenre(genre string) { c.updateFilter(func(f *Filter) { f.Genre = genre }) }

// SetYear sets the release year filter.
func (c *Catalog) SetYear(year string) { c.updateFilter(func(f *Filter) { f.Year = year }) }

// ClearFilters resets every predicate to All.
func (c *Catalog) ClearFilters() {
	c.updateFilter(func(f *Filter) { *f = Filter{Kind: All, Genre: All, Year: All} })
}

// Filter returns the active filter.
func (c *Catalog) Filter() Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

func (c *Catalog) updateFilter(fn func(*Filter)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.filter)
}

// Movies returns the full local catalog.
func (c *Catalog) Movies() []models.Movie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.movies)
}

// View returns the catalog items matching the active filter, in catalog order.
func (c *Catalog) View() []models.Movie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.Apply(c.movies)
}

// Genres returns the distinct genres of the catalog, sorted.
func (c *Catalog) Genres() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for _, m := range c.movies {
		if m.Genre != "" && !slices.Contains(out, m.Genre) {
			out = append(out, m.Genre)
		}
	}
	slices.Sort(out)
	return out
}

// Years returns the distinct release years of the catalog, newest first.
func (c *Catalog) Years() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []int
	for _, m := range c.movies {
		if !slices.Contains(out, m.ReleaseYear) {
			out = append(out, m.ReleaseYear)
		}
	}
	slices.Sort(out)
	slices.Reverse(out)
	return out
}

// IsFavorite reports whether the signed-in user has a favorite link to id.
func (c *Catalog) IsFavorite(id models.ID) bool {
	user, ok := c.session.Current()
	if !ok {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, found := findFavorite(c.favorites, user.ID, id)
	return found
}

// ToggleFavorite removes the signed-in user's favorite link to id, or
// creates one. Without a session it does nothing.
func (c *Catalog) ToggleFavorite(ctx context.Context, id models.ID) error {
	if err := authz.Authorize(authz.ActionFavorite, nil, c.session); err != nil {
		if errors.Is(err, authz.ErrUnauthenticated) {
			return nil
		}
		return err
	}
	user, _ := c.session.Current()

	release, err := c.acquire("favorite", id)
	if err != nil {
		return err
	}
	defer release()

	c.mu.RLock()
	existing, found := findFavorite(c.favorites, user.ID, id)
	c.mu.RUnlock()

	if found {
		if err := c.api.DeleteFavorite(ctx, existing.ID); err != nil {
			c.log.Error("failed to remove favorite", zap.String("movie", id.String()), zap.Error(err))
			return err
		}
		c.mu.Lock()
		c.favorites = slices.DeleteFunc(c.favorites, func(f models.Favorite) bool {
			return f.ID.Equal(existing.ID)
		})
		c.mu.Unlock()
		return nil
	}

	created, err := c.api.CreateFavorite(ctx, models.Favorite{UserID: user.ID, MovieID: id})
	if err != nil {
		c.log.Error("failed to add favorite", zap.String("movie", id.String()), zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.favorites = append(c.favorites, created)
	c.mu.Unlock()
	return nil
}

// ToggleWatched sends the complete local record of id with the watched flag
// inverted and applies the flag locally once the backend accepted it.
func (c *Catalog) ToggleWatched(ctx context.Context, id models.ID) error {
	if err := authz.Authorize(authz.ActionWatch, nil, c.session); err != nil {
		return err
	}

	release, err := c.acquire("watched", id)
	if err != nil {
		return err
	}
	defer release()

	c.mu.RLock()
	i := slices.IndexFunc(c.movies, func(m models.Movie) bool { return m.ID.Equal(id) })
	var movie models.Movie
	if i >= 0 {
		movie = c.movies[i]
	}
	c.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	movie.Watched = !movie.Watched
	if _, err := c.api.ReplaceMovie(ctx, movie); err != nil {
		c.log.Error("failed to toggle watched", zap.String("movie", id.String()), zap.Error(err))
		return err
	}

	c.mu.Lock()
	for j := range c.movies {
		if c.movies[j].ID.Equal(id) {
			c.movies[j].Watched = movie.Watched
		}
	}
	c.mu.Unlock()
	return nil
}

// acquire marks a toggle of id as in flight.
func (c *Catalog) acquire(kind string, id models.ID) (func(), error) {
	key := kind + ":" + id.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return nil, ErrBusy
	}
	c.inflight[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}, nil
}

func findFavorite(favorites []models.Favorite, userID, movieID models.ID) (models.Favorite, bool) {
	for _, f := range favorites {
		if f.UserID.Equal(userID) && f.MovieID.Equal(movieID) {
			return f, true
		}
	}
	return models.Favorite{}, false
}
