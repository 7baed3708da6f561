package authz

import (
	"testing"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/stretchr/testify/assert"
)

type identity struct {
	user *models.User
}

func (i identity) Current() (models.User, bool) {
	if i.user == nil {
		return models.User{}, false
	}
	return *i.user, true
}

func TestAuthorize(t *testing.T) {
	admin := identity{&models.User{ID: "1", Role: models.RoleAdmin}}
	user := identity{&models.User{ID: "2", Role: models.RoleUser}}
	anon := identity{}

	watched := models.Movie{ID: "1", Watched: true}
	unwatched := models.Movie{ID: "1"}
	own := models.Comment{ID: "1", UserID: "2"}
	ownNumeric := models.Comment{ID: "2", UserID: models.NewID(2)}
	other := models.Comment{ID: "3", UserID: "3"}

	tests := []struct {
		name    string
		action  Action
		subject any
		session Identity
		wantErr error
	}{
		{"rate watched", ActionRate, watched, user, nil},
		{"rate unwatched", ActionRate, unwatched, user, ErrForbidden},
		{"rate anonymous", ActionRate, watched, anon, ErrUnauthenticated},
		{"delete own comment", ActionDeleteComment, own, user, nil},
		{"delete own comment lenient id", ActionDeleteComment, ownNumeric, user, nil},
		{"delete other's comment", ActionDeleteComment, other, user, ErrForbidden},
		{"admin cannot delete other's comment", ActionDeleteComment, other, admin, ErrForbidden},
		{"favorite", ActionFavorite, nil, user, nil},
		{"favorite anonymous", ActionFavorite, nil, anon, ErrUnauthenticated},
		{"comment", ActionComment, nil, user, nil},
		{"watch", ActionWatch, nil, user, nil},
		{"admin as admin", ActionAdmin, nil, admin, nil},
		{"admin as user", ActionAdmin, nil, user, ErrForbidden},
		{"unknown action", Action("launch"), nil, admin, ErrForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.action, tc.subject, tc.session)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}
