package catalog

import (
	"strconv"
	"strings"

	"github.com/atinyakov/moviecatalog/internal/models"
	"golang.org/x/text/cases"
)

// All is the filter value that matches every item. An empty value does too.
const All = "all"

// Filter holds the four catalog predicates. They are ANDed.
type Filter struct {
	// Query is matched case-insensitively, as typed, against title and
	// description.
	Query string
	// Kind is "movie" or "series".
	Kind string
	// Genre must equal the item genre exactly.
	Genre string
	// Year is compared with the release year's decimal form.
	Year string
}

// Match reports whether m satisfies every active predicate.
func (f Filter) Match(m models.Movie) bool {
	return f.match(cases.Fold(), m)
}

// IsZero reports whether no predicate is active.
func (f Filter) IsZero() bool {
	return f.Query == "" && isAll(f.Kind) && isAll(f.Genre) && isAll(f.Year)
}

func (f Filter) match(fold cases.Caser, m models.Movie) bool {
	if f.Query != "" {
		needle := fold.String(f.Query)
		if !strings.Contains(fold.String(m.Title), needle) &&
			!strings.Contains(fold.String(m.Description), needle) {
			return false
		}
	}
	if !isAll(f.Kind) && f.Kind != string(m.Type) {
		return false
	}
	if !isAll(f.Genre) && f.Genre != m.Genre {
		return false
	}
	if !isAll(f.Year) && strings.TrimSpace(f.Year) != strconv.Itoa(m.ReleaseYear) {
		return false
	}
	return true
}

// Apply returns the items of movies matching f, keeping their order.
func (f Filter) Apply(movies []models.Movie) []models.Movie {
	fold := cases.Fold()
	out := make([]models.Movie, 0, len(movies))
	for _, m := range movies {
		if f.match(fold, m) {
			out = append(out, m)
		}
	}
	return out
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == All
}
