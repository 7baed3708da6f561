// Package models defines the core data structures of the catalog: users,
// catalog items, favorite links, reviews and comments.
package models

import (
	"encoding/json"
	"time"
)

// Role is the authorization role of a user account.
type Role string

const (
	// RoleAdmin may create, edit and delete catalog items.
	RoleAdmin Role = "admin"
	// RoleUser is a regular catalog user.
	RoleUser Role = "user"
)

// Kind distinguishes movies from series.
type Kind string

const (
	// KindMovie is a feature film.
	KindMovie Kind = "movie"
	// KindSeries is a TV series.
	KindSeries Kind = "series"
)

// User represents an application user. Users are read-only for the client.
type User struct {
	// ID is the unique identifier for the user.
	ID ID `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Email is used as the login identifier.
	Email string `json:"email" validate:"required"`
	// Role is either "admin" or "user".
	Role Role `json:"role" validate:"oneof=admin user"`
}

// Movie is a catalog item: either a movie or a series.
//
// Fields the server returns that are not part of the struct are kept in
// Extra and sent back unchanged on full-record replacement.
type Movie struct {
	ID          ID     `json:"id"`
	Title       string `json:"title" validate:"required"`
	Type        Kind   `json:"type" validate:"oneof=movie series"`
	Genre       string `json:"genre"`
	ReleaseYear int    `json:"releaseYear" validate:"gt=0"`
	Watched     bool   `json:"watched"`
	Description string `json:"description"`
	CoverImage  string `json:"coverImage"`

	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a movie and keeps unknown fields in Extra.
func (m *Movie) UnmarshalJSON(data []byte) error {
	type plain Movie
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*m = Movie(p)
	return nil
}

// MarshalJSON encodes a movie together with its unknown fields.
func (m Movie) MarshalJSON() ([]byte, error) {
	type plain Movie
	return mergeExtra(plain(m), m.Extra)
}

// Favorite links a user to a catalog item they marked as favorite.
type Favorite struct {
	ID      ID `json:"id"`
	UserID  ID `json:"userId" validate:"required"`
	MovieID ID `json:"movieId" validate:"required"`
}

// Review is a user's 1-5 rating of a catalog item with an optional comment.
type Review struct {
	ID      ID        `json:"id"`
	MovieID ID        `json:"movieId" validate:"required"`
	UserID  ID        `json:"userId" validate:"required"`
	Rating  int       `json:"rating" validate:"min=1,max=5"`
	Comment string    `json:"comment"`
	Date    time.Time `json:"date"`

	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a review and keeps unknown fields in Extra.
func (r *Review) UnmarshalJSON(data []byte) error {
	type plain Review
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*r = Review(p)
	return nil
}

// MarshalJSON encodes a review together with its unknown fields.
func (r Review) MarshalJSON() ([]byte, error) {
	type plain Review
	return mergeExtra(plain(r), r.Extra)
}

// Comment is a free-text remark on a catalog item, deletable by its author.
type Comment struct {
	ID      ID        `json:"id"`
	MovieID ID        `json:"movieId" validate:"required"`
	UserID  ID        `json:"userId" validate:"required"`
	Comment string    `json:"comment" validate:"notblank"`
	Date    time.Time `json:"date"`
}

// splitExtra returns the top-level keys of data that known does not encode.
func splitExtra(data []byte, known any) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	base, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k := range fields {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeExtra encodes v and adds the extra keys it does not already have.
func mergeExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return base, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(base, &all); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := all[k]; !ok {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}
