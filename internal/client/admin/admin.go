// Package admin is the view model of the catalog administration panel.
package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/atinyakov/moviecatalog/internal/client/authz"
	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrUnknownItem is returned when editing or deleting an item the panel has not loaded.
var ErrUnknownItem = errors.New("unknown catalog item")

// API is the part of the REST client the panel uses.
type API interface {
	Movies(ctx context.Context) ([]models.Movie, error)
	CreateMovie(ctx context.Context, m models.Movie) (models.Movie, error)
	ReplaceMovie(ctx context.Context, m models.Movie) (models.Movie, error)
	DeleteMovie(ctx context.Context, id models.ID) error
}

// Form holds the editable fields of a catalog item.
type Form struct {
	Title       string      `validate:"notblank"`
	Type        models.Kind `validate:"oneof=movie series"`
	Genre       string
	ReleaseYear int `validate:"gt=0"`
	Watched     bool
	Description string
	CoverImage  string
}

// FormOf returns the form prefilled from m.
func FormOf(m models.Movie) Form {
	return Form{
		Title:       m.Title,
		Type:        m.Type,
		Genre:       m.Genre,
		ReleaseYear: m.ReleaseYear,
		Watched:     m.Watched,
		Description: m.Description,
		CoverImage:  m.CoverImage,
	}
}

// apply copies the form onto m. An empty cover keeps the existing one.
func (f Form) apply(m models.Movie) models.Movie {
	m.Title = f.Title
	m.Type = f.Type
	m.Genre = f.Genre
	m.ReleaseYear = f.ReleaseYear
	m.Watched = f.Watched
	m.Description = f.Description
	if f.CoverImage != "" {
		m.CoverImage = f.CoverImage
	}
	return m
}

// Panel lists and edits catalog items. Every operation requires an
// administrator session.
type Panel struct {
	api      API
	session  authz.Identity
	log      *zap.Logger
	validate *validator.Validate

	mu     sync.RWMutex
	movies []models.Movie
}

// New returns an empty panel.
func New(client API, session authz.Identity, log *zap.Logger) *Panel {
	return &Panel{
		api:      client,
		session:  session,
		log:      log,
		validate: models.NewValidator(),
	}
}

// Load refreshes the item list.
func (p *Panel) Load(ctx context.Context) error {
	if err := authz.Authorize(authz.ActionAdmin, nil, p.session); err != nil {
		return err
	}
	movies, err := p.api.Movies(ctx)
	if err != nil {
		p.log.Error("failed to load catalog", zap.Error(err))
		return err
	}
	p.mu.Lock()
	p.movies = movies
	p.mu.Unlock()
	return nil
}

// Movies returns the loaded items.
func (p *Panel) Movies() []models.Movie {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.movies)
}

// Find returns the loaded item with the given id.
func (p *Panel) Find(id models.ID) (models.Movie, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i := slices.IndexFunc(p.movies, func(m models.Movie) bool { return m.ID.Equal(id) })
	if i < 0 {
		return models.Movie{}, false
	}
	return p.movies[i], true
}

// Create adds a new item and reloads the list.
func (p *Panel) Create(ctx context.Context, form Form) (models.Movie, error) {
	if err := p.check(form); err != nil {
		return models.Movie{}, err
	}
	created, err := p.api.CreateMovie(ctx, form.apply(models.Movie{}))
	if err != nil {
		p.log.Error("failed to create item", zap.String("title", form.Title), zap.Error(err))
		return models.Movie{}, err
	}
	return created, p.Load(ctx)
}

// Update replaces the item with the form merged onto its current record.
// Fields the form does not cover are sent back unchanged.
func (p *Panel) Update(ctx context.Context, id models.ID, form Form) (models.Movie, error) {
	if err := p.check(form); err != nil {
		return models.Movie{}, err
	}
	current, ok := p.Find(id)
	if !ok {
		return models.Movie{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	updated, err := p.api.ReplaceMovie(ctx, form.apply(current))
	if err != nil {
		p.log.Error("failed to update item", zap.String("id", id.String()), zap.Error(err))
		return models.Movie{}, err
	}
	return updated, p.Load(ctx)
}

// Delete removes an item and reloads the list.
func (p *Panel) Delete(ctx context.Context, id models.ID) error {
	if err := authz.Authorize(authz.ActionAdmin, nil, p.session); err != nil {
		return err
	}
	if _, ok := p.Find(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if err := p.api.DeleteMovie(ctx, id); err != nil {
		p.log.Error("failed to delete item", zap.String("id", id.String()), zap.Error(err))
		return err
	}
	return p.Load(ctx)
}

func (p *Panel) check(form Form) error {
	if err := authz.Authorize(authz.ActionAdmin, nil, p.session); err != nil {
		return err
	}
	if err := p.validate.Struct(form); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}
	return nil
}
