// Package session tracks who is using the client. The current user is
// persisted in local storage and restored when the process starts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/atinyakov/moviecatalog/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// StorageKey is the local storage key holding the serialized current user.
const StorageKey = "currentUser"

// ErrInvalidCredentials is returned when no user matches the email or the
// secret does not unlock the user's role.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserLister fetches the user collection.
type UserLister interface {
	Users(ctx context.Context) ([]models.User, error)
}

// Store persists string values.
type Store interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Secrets maps a role to the bcrypt hash of the secret shared by every
// account of that role.
type Secrets map[models.Role][]byte

// HashSecrets hashes plain role secrets with bcrypt at the given cost.
func HashSecrets(plain map[models.Role]string, cost int) (Secrets, error) {
	out := make(Secrets, len(plain))
	for role, secret := range plain {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
		if err != nil {
			return nil, fmt.Errorf("hash %s secret: %w", role, err)
		}
		out[role] = hash
	}
	return out, nil
}

// DefaultSecrets returns the hashes of the stock role secrets.
func DefaultSecrets() (Secrets, error) {
	return HashSecrets(map[models.Role]string{
		models.RoleAdmin: "admin123",
		models.RoleUser:  "user123",
	}, bcrypt.DefaultCost)
}

// Session holds the current user. It is passed explicitly to the view
// models and safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	current *models.User

	users   UserLister
	store   Store
	secrets Secrets
	log     *zap.Logger
}

// New builds a Session and restores the persisted user, if any. The stored
// record is trusted as is.
func New(users UserLister, store Store, secrets Secrets, log *zap.Logger) *Session {
	s := &Session{
		users:   users,
		store:   store,
		secrets: secrets,
		log:     log,
	}

	if raw, ok := store.GetItem(StorageKey); ok {
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			log.Warn("ignoring unreadable stored session", zap.Error(err))
		} else {
			s.current = &u
		}
	}
	return s
}

// Authenticate signs in the first user whose email equals email when secret
// is the shared secret of that user's role. Lookup failures count as a
// failed sign-in.
func (s *Session) Authenticate(ctx context.Context, email, secret string) bool {
	return s.Login(ctx, email, secret) == nil
}

// Login is Authenticate with the reason for a failure.
func (s *Session) Login(ctx context.Context, email, secret string) error {
	users, err := s.users.Users(ctx)
	if err != nil {
		s.log.Error("failed to fetch users for login", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	var found *models.User
	for i := range users {
		if users[i].Email == email {
			found = &users[i]
			break
		}
	}
	if found == nil {
		return ErrInvalidCredentials
	}

	hash, ok := s.secrets[found.Role]
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(secret)) != nil {
		return ErrInvalidCredentials
	}

	u := *found
	s.mu.Lock()
	s.current = &u
	s.mu.Unlock()

	data, err := json.Marshal(u)
	if err == nil {
		err = s.store.SetItem(StorageKey, string(data))
	}
	if err != nil {
		s.log.Warn("failed to persist session", zap.Error(err))
	}
	s.log.Info("signed in", zap.String("email", u.Email), zap.String("role", string(u.Role)))
	return nil
}

// End signs out and removes the persisted copy.
func (s *Session) End() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.store.RemoveItem(StorageKey); err != nil {
		s.log.Warn("failed to remove stored session", zap.Error(err))
	}
}

// Current returns the signed-in user.
func (s *Session) Current() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.User{}, false
	}
	return *s.current, true
}

// IsAdministrator reports whether the signed-in user has the admin role.
func (s *Session) IsAdministrator() bool {
	u, ok := s.Current()
	return ok && u.Role == models.RoleAdmin
}
