// Package detail is the view model of a single catalog item: the item, its
// reviews and comments, and the signed-in user's favorite and review.
package detail

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/moviecatalog/internal/client/api"
	"github.com/atinyakov/moviecatalog/internal/client/authz"
	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var (
	// ErrNoSelection is returned when no item has been loaded yet.
	ErrNoSelection = errors.New("no item selected")
	// ErrEmptyComment is returned for comments that are blank after trimming.
	ErrEmptyComment = errors.New("comment is empty")
	// ErrRatingGate is returned when the item may not be rated.
	ErrRatingGate = errors.New("rating is not available")
	// ErrInvalidRating is returned for ratings outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// API is the part of the REST client the detail view uses.
type API interface {
	Movie(ctx context.Context, id models.ID) (models.Movie, error)
	ReplaceMovie(ctx context.Context, m models.Movie) (models.Movie, error)
	Reviews(ctx context.Context, movieID models.ID) ([]models.Review, error)
	CreateReview(ctx context.Context, r models.Review) (models.Review, error)
	ReplaceReview(ctx context.Context, r models.Review) (models.Review, error)
	Comments(ctx context.Context, movieID models.ID) ([]models.Comment, error)
	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	DeleteComment(ctx context.Context, id models.ID) error
	Favorites(ctx context.Context, filter api.FavoriteFilter) ([]models.Favorite, error)
	CreateFavorite(ctx context.Context, f models.Favorite) (models.Favorite, error)
	DeleteFavorite(ctx context.Context, id models.ID) error
}

// ReviewInput is the review form.
type ReviewInput struct {
	Rating  int `validate:"min=1,max=5"`
	Comment string
}

// Detail holds the state of the item page. Each slice is filled by its own
// fetch; results for an item that is no longer selected are dropped.
type Detail struct {
	api      API
	session  authz.Identity
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	mu           sync.RWMutex
	selected     models.ID
	generation   uint64
	pending      *conc.WaitGroup
	movie        *models.Movie
	reviews      []models.Review
	comments     []models.Comment
	favorite     *models.Favorite
	commentInput string
}

// New returns a detail view model with nothing selected.
func New(client API, session authz.Identity, log *zap.Logger) *Detail {
	return &Detail{
		api:      client,
		session:  session,
		log:      log,
		validate: models.NewValidator(),
		now:      time.Now,
	}
}

// Select clears the page and fetches the item, its reviews, its comments
// and, with a session, the user's favorite link in parallel. It returns
// without waiting; use Wait to block until the fetches finish.
func (d *Detail) Select(ctx context.Context, id models.ID) {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.selected = id
	d.movie = nil
	d.reviews = nil
	d.comments = nil
	d.favorite = nil
	d.commentInput = ""
	wg := &conc.WaitGroup{}
	d.pending = wg
	d.mu.Unlock()

	wg.Go(func() { d.fetchMovie(ctx, gen, id) })
	wg.Go(func() { d.refreshReviews(ctx, gen, id) })
	wg.Go(func() { d.refreshComments(ctx, gen, id) })
	if user, ok := d.session.Current(); ok {
		wg.Go(func() { d.fetchFavorite(ctx, gen, id, user.ID) })
	}
}

// Wait blocks until the fetches of the latest selection are done.
func (d *Detail) Wait() {
	d.mu.RLock()
	wg := d.pending
	d.mu.RUnlock()
	if wg != nil {
		wg.Wait()
	}
}

// Selected returns the id of the selected item.
func (d *Detail) Selected() models.ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

// apply runs fn under the lock if gen is still the current selection.
func (d *Detail) apply(gen uint64, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return false
	}
	fn()
	return true
}

func (d *Detail) fetchMovie(ctx context.Context, gen uint64, id models.ID) {
	movie, err := d.api.Movie(ctx, id)
	if err != nil {
		d.log.Error("failed to load item", zap.String("movie", id.String()), zap.Error(err))
		return
	}
	d.apply(gen, func() { d.movie = &movie })
}

func (d *Detail) refreshReviews(ctx context.Context, gen uint64, id models.ID) {
	reviews, err := d.api.Reviews(ctx, id)
	if err != nil {
		d.log.Error("failed to load reviews", zap.String("movie", id.String()), zap.Error(err))
		return
	}
	d.apply(gen, func() { d.reviews = reviews })
}

func (d *Detail) refreshComments(ctx context.Context, gen uint64, id models.ID) {
	comments, err := d.api.Comments(ctx, id)
	if err != nil {
		d.log.Error("failed to load comments", zap.String("movie", id.String()), zap.Error(err))
		return
	}
	d.apply(gen, func() { d.comments = comments })
}

func (d *Detail) fetchFavorite(ctx context.Context, gen uint64, id, userID models.ID) {
	links, err := d.api.Favorites(ctx, api.FavoriteFilter{UserID: userID, MovieID: id})
	if err != nil {
		d.log.Error("failed to load favorite", zap.String("movie", id.String()), zap.Error(err))
		return
	}
	d.apply(gen, func() {
		d.favorite = nil
		for _, l := range links {
			if l.UserID.Equal(userID) && l.MovieID.Equal(id) {
				d.favorite = &l
				return
			}
		}
	})
}

// Movie returns the loaded item.
func (d *Detail) Movie() (models.Movie, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.movie == nil {
		return models.Movie{}, false
	}
	return *d.movie, true
}

// Reviews returns the loaded reviews.
func (d *Detail) Reviews() []models.Review {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.reviews)
}

// Comments returns the loaded comments.
func (d *Detail) Comments() []models.Comment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.comments)
}

// IsFavorite reports whether the signed-in user favorited the item.
func (d *Detail) IsFavorite() bool {
	user, ok := d.session.Current()
	if !ok {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ownFavorite(user.ID) != nil
}

// ownFavorite returns the loaded link when it belongs to userID. A link
// loaded for a previous session user does not count. d.mu must be held.
func (d *Detail) ownFavorite(userID models.ID) *models.Favorite {
	if d.favorite == nil || !d.favorite.UserID.Equal(userID) {
		return nil
	}
	return d.favorite
}

// AverageRating returns the mean rating. ok is false when there are no
// reviews.
func (d *Detail) AverageRating() (avg float64, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.reviews) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range d.reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(d.reviews)), true
}

// CanRate reports whether the rate action is available: a session exists
// and the item is marked watched.
func (d *Detail) CanRate() bool {
	movie, ok := d.Movie()
	return ok && authz.Authorize(authz.ActionRate, movie, d.session) == nil
}

// YourReview returns the signed-in user's review of the item.
func (d *Detail) YourReview() (models.Review, bool) {
	user, ok := d.session.Current()
	if !ok {
		return models.Review{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.reviews {
		if r.UserID.Equal(user.ID) {
			return r, true
		}
	}
	return models.Review{}, false
}

// SubmitReview updates the user's review in place when one exists and
// creates it otherwise, then reloads the reviews.
func (d *Detail) SubmitReview(ctx context.Context, input ReviewInput) error {
	movie, ok := d.Movie()
	if !ok {
		return ErrNoSelection
	}
	if err := authz.Authorize(authz.ActionRate, movie, d.session); err != nil {
		return fmt.Errorf("%w: %w", ErrRatingGate, err)
	}
	if err := d.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRating, err)
	}
	user, _ := d.session.Current()
	gen := d.currentGeneration()

	var err error
	if existing, found := d.YourReview(); found {
		existing.Rating = input.Rating
		existing.Comment = input.Comment
		_, err = d.api.ReplaceReview(ctx, existing)
	} else {
		_, err = d.api.CreateReview(ctx, models.Review{
			MovieID: movie.ID,
			UserID:  user.ID,
			Rating:  input.Rating,
			Comment: input.Comment,
			Date:    d.now().UTC(),
		})
	}
	if err != nil {
		d.log.Error("failed to submit review", zap.String("movie", movie.ID.String()), zap.Error(err))
		return err
	}

	d.refreshReviews(ctx, gen, movie.ID)
	return nil
}

// SetCommentInput sets the comment form text.
func (d *Detail) SetCommentInput(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commentInput = text
}

// CommentInput returns the comment form text.
func (d *Detail) CommentInput() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.commentInput
}

// SubmitComment posts the comment form. Blank input is rejected without a
// request. On success the input is cleared and the comments are reloaded.
func (d *Detail) SubmitComment(ctx context.Context) error {
	text := d.CommentInput()
	if strings.TrimSpace(text) == "" {
		return ErrEmptyComment
	}
	if err := authz.Authorize(authz.ActionComment, nil, d.session); err != nil {
		return err
	}
	user, _ := d.session.Current()

	d.mu.RLock()
	movieID, gen := d.selected, d.generation
	d.mu.RUnlock()
	if movieID.IsZero() {
		return ErrNoSelection
	}

	if _, err := d.api.CreateComment(ctx, models.Comment{
		MovieID: movieID,
		UserID:  user.ID,
		Comment: text,
		Date:    d.now().UTC(),
	}); err != nil {
		d.log.Error("failed to add comment", zap.String("movie", movieID.String()), zap.Error(err))
		return err
	}

	d.apply(gen, func() { d.commentInput = "" })
	d.refreshComments(ctx, gen, movieID)
	return nil
}

// CanDeleteComment reports whether the signed-in user wrote c.
func (d *Detail) CanDeleteComment(c models.Comment) bool {
	return authz.Authorize(authz.ActionDeleteComment, c, d.session) == nil
}

// DeleteComment deletes one of the user's own comments and reloads the
// comments.
func (d *Detail) DeleteComment(ctx context.Context, id models.ID) error {
	d.mu.RLock()
	movieID, gen := d.selected, d.generation
	i := slices.IndexFunc(d.comments, func(c models.Comment) bool { return c.ID.Equal(id) })
	var comment models.Comment
	if i >= 0 {
		comment = d.comments[i]
	}
	d.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("comment %s is not on this page", id)
	}

	if err := authz.Authorize(authz.ActionDeleteComment, comment, d.session); err != nil {
		return err
	}
	if err := d.api.DeleteComment(ctx, id); err != nil {
		d.log.Error("failed to delete comment", zap.String("comment", id.String()), zap.Error(err))
		return err
	}

	d.refreshComments(ctx, gen, movieID)
	return nil
}

// ToggleWatched sends the complete item with the watched flag inverted and
// applies it locally once accepted. CanRate follows immediately.
func (d *Detail) ToggleWatched(ctx context.Context) error {
	if err := authz.Authorize(authz.ActionWatch, nil, d.session); err != nil {
		return err
	}
	movie, ok := d.Movie()
	if !ok {
		return ErrNoSelection
	}
	gen := d.currentGeneration()

	movie.Watched = !movie.Watched
	if _, err := d.api.ReplaceMovie(ctx, movie); err != nil {
		d.log.Error("failed to toggle watched", zap.String("movie", movie.ID.String()), zap.Error(err))
		return err
	}

	d.apply(gen, func() {
		if d.movie != nil {
			d.movie.Watched = movie.Watched
		}
	})
	return nil
}

// ToggleFavorite removes or creates the user's favorite link to the item.
// Without a session it does nothing.
func (d *Detail) ToggleFavorite(ctx context.Context) error {
	if err := authz.Authorize(authz.ActionFavorite, nil, d.session); err != nil {
		if errors.Is(err, authz.ErrUnauthenticated) {
			return nil
		}
		return err
	}
	user, _ := d.session.Current()

	d.mu.RLock()
	movieID, gen, existing := d.selected, d.generation, d.ownFavorite(user.ID)
	d.mu.RUnlock()
	if movieID.IsZero() {
		return ErrNoSelection
	}

	if existing != nil {
		if err := d.api.DeleteFavorite(ctx, existing.ID); err != nil {
			d.log.Error("failed to remove favorite", zap.String("movie", movieID.String()), zap.Error(err))
			return err
		}
		d.apply(gen, func() { d.favorite = nil })
		return nil
	}

	created, err := d.api.CreateFavorite(ctx, models.Favorite{UserID: user.ID, MovieID: movieID})
	if err != nil {
		d.log.Error("failed to add favorite", zap.String("movie", movieID.String()), zap.Error(err))
		return err
	}
	d.apply(gen, func() { d.favorite = &created })
	return nil
}

func (d *Detail) currentGeneration() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}
