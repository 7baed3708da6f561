package session

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/moviecatalog/internal/client/storage"
	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	users []models.User
	err   error
	calls int
}

func (f *fakeUsers) Users(context.Context) ([]models.User, error) {
	f.calls++
	return f.users, f.err
}

var testUsers = []models.User{
	{ID: "1", Name: "Admin User", Email: "admin@test.com", Role: models.RoleAdmin},
	{ID: "2", Name: "Regular User", Email: "user@test.com", Role: models.RoleUser},
}

func testSecrets(t *testing.T) Secrets {
	t.Helper()
	s, err := HashSecrets(map[models.Role]string{
		models.RoleAdmin: "admin123",
		models.RoleUser:  "user123",
	}, bcrypt.MinCost)
	require.NoError(t, err)
	return s
}

func newStore(t *testing.T) (*storage.LocalStorage, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return storage.NewLocalStorage(fs, "/storage.json"), fs
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		secret    string
		wantOK    bool
		wantAdmin bool
	}{
		{"admin with admin secret", "admin@test.com", "admin123", true, true},
		{"user with user secret", "user@test.com", "user123", true, false},
		{"user with admin secret", "user@test.com", "admin123", false, false},
		{"wrong secret", "user@test.com", "wrongpassword", false, false},
		{"unknown email", "invalid@test.com", "user123", false, false},
		{"email is case sensitive", "USER@test.com", "user123", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newStore(t)
			s := New(&fakeUsers{users: testUsers}, store, testSecrets(t), zap.NewNop())

			assert.Equal(t, tc.wantOK, s.Authenticate(context.Background(), tc.email, tc.secret))
			assert.Equal(t, tc.wantAdmin, s.IsAdministrator())

			_, signedIn := s.Current()
			assert.Equal(t, tc.wantOK, signedIn)
			_, persisted := store.GetItem(StorageKey)
			assert.Equal(t, tc.wantOK, persisted)
		})
	}
}

func TestAuthenticate_FailureKeepsSession(t *testing.T) {
	store, _ := newStore(t)
	s := New(&fakeUsers{users: testUsers}, store, testSecrets(t), zap.NewNop())
	require.True(t, s.Authenticate(context.Background(), "user@test.com", "user123"))

	assert.False(t, s.Authenticate(context.Background(), "admin@test.com", "nope"))
	u, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "user@test.com", u.Email)
}

func TestLogin_LookupFailure(t *testing.T) {
	store, _ := newStore(t)
	s := New(&fakeUsers{err: errors.New("connection refused")}, store, testSecrets(t), zap.NewNop())

	err := s.Login(context.Background(), "admin@test.com", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestRehydrateAndEnd(t *testing.T) {
	store, fs := newStore(t)
	users := &fakeUsers{users: testUsers}
	s := New(users, store, testSecrets(t), zap.NewNop())
	require.True(t, s.Authenticate(context.Background(), "admin@test.com", "admin123"))

	reopened := storage.NewLocalStorage(fs, "/storage.json")
	require.NoError(t, reopened.Load())
	restored := New(users, reopened, testSecrets(t), zap.NewNop())

	u, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, models.ID("1"), u.ID)
	assert.True(t, restored.IsAdministrator())
	assert.Equal(t, 1, users.calls, "restoring must not contact the backend")

	restored.End()
	_, ok = restored.Current()
	assert.False(t, ok)
	assert.False(t, restored.IsAdministrator())

	again := storage.NewLocalStorage(fs, "/storage.json")
	require.NoError(t, again.Load())
	_, ok = again.GetItem(StorageKey)
	assert.False(t, ok)
}

func TestRehydrate_TrustsStoredRecord(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.SetItem(StorageKey, `{"id":99,"name":"Ghost","email":"ghost@test.com","role":"admin"}`))

	s := New(&fakeUsers{}, store, testSecrets(t), zap.NewNop())
	assert.True(t, s.IsAdministrator())
}

func TestRehydrate_IgnoresGarbage(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.SetItem(StorageKey, `not json`))

	s := New(&fakeUsers{}, store, testSecrets(t), zap.NewNop())
	_, ok := s.Current()
	assert.False(t, ok)
}
