package models

import (
	"encoding/json"
	"maps"
)

// Collection names served by the resource API.
const (
	CollectionUsers     = "users"
	CollectionMovies    = "movies"
	CollectionFavorites = "favorites"
	CollectionReviews   = "reviews"
	CollectionComments  = "comments"
)

// Collections lists every collection the API knows about.
var Collections = []string{
	CollectionUsers,
	CollectionMovies,
	CollectionFavorites,
	CollectionReviews,
	CollectionComments,
}

// Record is an untyped JSON document stored in a collection.
type Record map[string]any

// ID returns the record identifier.
func (r Record) ID() ID {
	return ID(Canonical(r["id"]))
}

// Field returns the canonical string form of a top-level field.
func (r Record) Field(name string) string {
	return Canonical(r[name])
}

// Matches reports whether every filter field equals the record's field.
func (r Record) Matches(filter map[string]string) bool {
	for k, v := range filter {
		if r.Field(k) != Canonical(v) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Snapshot is a full database image keyed by collection name.
type Snapshot map[string][]Record

// Decode converts a record into a typed model.
func Decode(rec Record, v any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ToRecord converts a typed model into a record.
func ToRecord(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
