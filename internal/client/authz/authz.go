// Package authz decides which catalog actions the current user may take.
// Every permission check of the client goes through Authorize.
package authz

import (
	"errors"
	"fmt"

	"github.com/atinyakov/moviecatalog/internal/models"
)

var (
	// ErrUnauthenticated is returned when an action needs a signed-in user.
	ErrUnauthenticated = errors.New("sign in required")
	// ErrForbidden is returned when the signed-in user may not take the action.
	ErrForbidden = errors.New("forbidden")
)

// Action names something a user can do.
type Action string

const (
	// ActionRate rates a catalog item. Subject: models.Movie.
	ActionRate Action = "rate"
	// ActionComment comments on a catalog item.
	ActionComment Action = "comment"
	// ActionDeleteComment deletes a comment. Subject: models.Comment.
	ActionDeleteComment Action = "delete-comment"
	// ActionFavorite adds or removes a favorite.
	ActionFavorite Action = "favorite"
	// ActionWatch toggles the watched flag of a catalog item.
	ActionWatch Action = "watch"
	// ActionAdmin manages the catalog.
	ActionAdmin Action = "admin"
)

// Identity exposes the signed-in user.
type Identity interface {
	Current() (models.User, bool)
}

// Authorize returns nil when the session may perform action on subject.
func Authorize(action Action, subject any, session Identity) error {
	user, ok := session.Current()
	if !ok {
		return ErrUnauthenticated
	}

	switch action {
	case ActionComment, ActionFavorite, ActionWatch:
		return nil
	case ActionRate:
		movie, ok := subject.(models.Movie)
		if !ok || !movie.Watched {
			return fmt.Errorf("%w: mark the item as watched to rate it", ErrForbidden)
		}
		return nil
	case ActionDeleteComment:
		comment, ok := subject.(models.Comment)
		if !ok || !comment.UserID.Equal(user.ID) {
			return fmt.Errorf("%w: only the author may delete a comment", ErrForbidden)
		}
		return nil
	case ActionAdmin:
		if user.Role != models.RoleAdmin {
			return fmt.Errorf("%w: administrators only", ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrForbidden, action)
	}
}
