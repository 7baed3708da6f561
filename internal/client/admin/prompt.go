package admin

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atinyakov/moviecatalog/internal/models"
)

// PromptForm asks for every form field on w and reads one answer line per
// field from sc. An empty answer keeps the value from base.
func PromptForm(sc *bufio.Scanner, w io.Writer, base Form) (Form, error) {
	form := base

	ask := func(label, current string) (string, error) {
		fmt.Fprintf(w, "%s [%s]: ", label, current)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		answer := strings.TrimSpace(sc.Text())
		if answer == "" {
			return current, nil
		}
		return answer, nil
	}

	var err error
	if form.Title, err = ask("Title", form.Title); err != nil {
		return base, err
	}
	kind, err := ask("Type (movie/series)", string(form.Type))
	if err != nil {
		return base, err
	}
	form.Type = models.Kind(kind)
	if form.Genre, err = ask("Genre", form.Genre); err != nil {
		return base, err
	}

	year, err := ask("Release year", strconv.Itoa(form.ReleaseYear))
	if err != nil {
		return base, err
	}
	if form.ReleaseYear, err = strconv.Atoi(year); err != nil {
		return base, fmt.Errorf("release year %q: %w", year, err)
	}

	watched, err := ask("Watched (y/n)", yesNo(form.Watched))
	if err != nil {
		return base, err
	}
	form.Watched = strings.HasPrefix(strings.ToLower(watched), "y")

	if form.Description, err = ask("Description", form.Description); err != nil {
		return base, err
	}
	if form.CoverImage, err = ask("Cover image URL", form.CoverImage); err != nil {
		return base, err
	}
	return form, nil
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
