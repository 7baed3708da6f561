package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atinyakov/moviecatalog/internal/client/admin"
	"github.com/atinyakov/moviecatalog/internal/client/api"
	"github.com/atinyakov/moviecatalog/internal/client/catalog"
	"github.com/atinyakov/moviecatalog/internal/client/detail"
	"github.com/atinyakov/moviecatalog/internal/client/favorites"
	"github.com/atinyakov/moviecatalog/internal/client/session"
	"github.com/atinyakov/moviecatalog/internal/models"
	"go.uber.org/zap"
)

const helpText = `Commands:
  login <email> <secret>   sign in            logout      sign out
  whoami                   current user
  list                     reload and show the catalog
  search <text>            filter by title or description
  type <all|movie|series>  genre <name|all>   year <yyyy|all>   clear
  genres | years           filter choices
  fav [id] | watch [id]    toggle on an item (the shown item without id)
  show <id>                item details, reviews and comments
  rate <1-5> [text]        review the shown item
  comment <text>           comment on the shown item
  delcomment <id>          delete your comment
  favorites | unfav <id>   your favorites page
  admin list|add|edit <id>|delete <id>
  log | errors             request log
  exit`

// shell is the line-oriented front end over the view models.
type shell struct {
	client  *api.Client
	session *session.Session
	log     *zap.Logger

	catalog   *catalog.Catalog
	detail    *detail.Detail
	favorites *favorites.Page
	admin     *admin.Panel

	in  *bufio.Scanner
	out io.Writer
}

func newShell(client *api.Client, sess *session.Session, log *zap.Logger, in io.Reader, out io.Writer) *shell {
	return &shell{
		client:    client,
		session:   sess,
		log:       log,
		catalog:   catalog.New(client, sess, log),
		detail:    detail.New(client, sess, log),
		favorites: favorites.New(client, sess, log),
		admin:     admin.New(client, sess, log),
		in:        bufio.NewScanner(in),
		out:       out,
	}
}

// run loads the catalog and reads commands until exit or end of input.
func (s *shell) run(ctx context.Context) {
	if err := s.catalog.LoadCatalog(ctx); err != nil {
		s.printf("cannot load catalog: %v\n", err)
	}
	if err := s.catalog.LoadFavorites(ctx); err != nil {
		s.printf("cannot load favorites: %v\n", err)
	}
	if u, ok := s.session.Current(); ok {
		s.printf("Signed in as %s\n", u.Email)
	}

	for {
		s.printf("catalog> ")
		if !s.in.Scan() {
			return
		}
		args := strings.Fields(s.in.Text())
		if len(args) == 0 {
			continue
		}
		if !s.exec(ctx, args[0], args[1:]) {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// exec runs one command and reports whether the shell should keep going.
func (s *shell) exec(ctx context.Context, cmd string, args []string) bool {
	var err error
	switch cmd {
	case "help":
		s.printf("%s\n", helpText)
	case "login":
		if len(args) != 2 {
			s.printf("Usage: login <email> <secret>\n")
			return true
		}
		if err = s.session.Login(ctx, args[0], args[1]); err == nil {
			u, _ := s.session.Current()
			s.printf("Welcome, %s\n", u.Name)
			err = s.catalog.LoadFavorites(ctx)
			s.reselect(ctx)
		}
	case "logout":
		s.session.End()
		err = s.catalog.LoadFavorites(ctx)
		s.reselect(ctx)
		s.printf("Signed out\n")
	case "whoami":
		if u, ok := s.session.Current(); ok {
			s.printf("%s <%s> (%s)\n", u.Name, u.Email, u.Role)
		} else {
			s.printf("not signed in\n")
		}
	case "list":
		if err = s.catalog.LoadCatalog(ctx); err == nil {
			err = s.catalog.LoadFavorites(ctx)
		}
		s.printCatalog()
	case "search":
		s.catalog.SetQuery(strings.Join(args, " "))
		s.printCatalog()
	case "type", "genre", "year":
		value := catalog.All
		if len(args) > 0 {
			value = strings.Join(args, " ")
		}
		s.setFilter(cmd, value)
		s.printCatalog()
	case "clear":
		s.catalog.ClearFilters()
		s.printCatalog()
	case "genres":
		s.printf("%s\n", strings.Join(s.catalog.Genres(), ", "))
	case "years":
		for _, y := range s.catalog.Years() {
			s.printf("%d ", y)
		}
		s.printf("\n")
	case "fav":
		err = s.toggle(ctx, args, s.catalog.ToggleFavorite, s.detail.ToggleFavorite)
	case "watch":
		err = s.toggle(ctx, args, s.catalog.ToggleWatched, s.detail.ToggleWatched)
	case "show":
		if len(args) != 1 {
			s.printf("Usage: show <id>\n")
			return true
		}
		s.detail.Select(ctx, models.ID(args[0]))
		s.detail.Wait()
		s.printDetail()
	case "rate":
		err = s.rate(ctx, args)
	case "comment":
		s.detail.SetCommentInput(strings.Join(args, " "))
		if err = s.detail.SubmitComment(ctx); err == nil {
			s.printf("Comment posted\n")
		}
	case "delcomment":
		if len(args) != 1 {
			s.printf("Usage: delcomment <id>\n")
			return true
		}
		if err = s.detail.DeleteComment(ctx, models.ID(args[0])); err == nil {
			s.printf("Comment deleted\n")
		}
	case "favorites":
		if err = s.favorites.Load(ctx); err == nil {
			s.printMovies(s.favorites.Movies())
		}
	case "unfav":
		if len(args) != 1 {
			s.printf("Usage: unfav <id>\n")
			return true
		}
		if err = s.favorites.Remove(ctx, models.ID(args[0])); err == nil {
			s.printMovies(s.favorites.Movies())
		}
	case "admin":
		err = s.runAdmin(ctx, args)
	case "log":
		s.printEntries(s.client.Audit().Entries())
	case "errors":
		s.printEntries(s.client.Audit().Errors())
	case "exit", "quit":
		s.printf("Bye\n")
		return false
	default:
		s.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	if err != nil {
		s.printf("error: %v\n", err)
	}
	return true
}

// reselect reloads the shown item so its per-user state follows the session.
func (s *shell) reselect(ctx context.Context) {
	if id := s.detail.Selected(); !id.IsZero() {
		s.detail.Select(ctx, id)
		s.detail.Wait()
	}
}

func (s *shell) setFilter(kind, value string) {
	switch kind {
	case "type":
		s.catalog.SetKind(value)
	case "genre":
		s.catalog.SetGenre(value)
	case "year":
		s.catalog.SetYear(value)
	}
}

// toggle applies onItem to the given id, or onShown to the item on display.
func (s *shell) toggle(
	ctx context.Context,
	args []string,
	onItem func(context.Context, models.ID) error,
	onShown func(context.Context) error,
) error {
	if _, ok := s.session.Current(); !ok {
		return errors.New("sign in first")
	}
	if len(args) == 0 {
		if err := onShown(ctx); err != nil {
			return err
		}
		s.printDetail()
		return nil
	}
	if err := onItem(ctx, models.ID(args[0])); err != nil {
		return err
	}
	s.printCatalog()
	return nil
}

func (s *shell) rate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: rate <1-5> [comment]")
	}
	rating, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("rating %q: %w", args[0], err)
	}
	input := detail.ReviewInput{Rating: rating, Comment: strings.Join(args[1:], " ")}
	if err := s.detail.SubmitReview(ctx, input); err != nil {
		return err
	}
	s.printf("Review saved\n")
	return nil
}

func (s *shell) runAdmin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: admin list|add|edit <id>|delete <id>")
	}
	if err := s.admin.Load(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "list":
	case "add":
		form, err := admin.PromptForm(s.in, s.out, admin.Form{Type: models.KindMovie})
		if err != nil {
			return err
		}
		created, err := s.admin.Create(ctx, form)
		if err != nil {
			return err
		}
		s.printf("Created %s\n", created.ID)
	case "edit", "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin %s <id>", args[0])
		}
		id := models.ID(args[1])
		if args[0] == "delete" {
			if err := s.admin.Delete(ctx, id); err != nil {
				return err
			}
			break
		}
		current, ok := s.admin.Find(id)
		if !ok {
			return fmt.Errorf("%w: %s", admin.ErrUnknownItem, id)
		}
		form, err := admin.PromptForm(s.in, s.out, admin.FormOf(current))
		if err != nil {
			return err
		}
		if _, err := s.admin.Update(ctx, id, form); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown admin command %q", args[0])
	}

	s.printMovies(s.admin.Movies())
	if err := s.catalog.LoadCatalog(ctx); err != nil {
		s.log.Warn("catalog reload after admin change failed", zap.Error(err))
	}
	return nil
}

func (s *shell) printCatalog() {
	movies := s.catalog.View()
	if len(movies) == 0 {
		s.printf("No items match the filters.\n")
		return
	}
	s.printMovies(movies)
}

func (s *shell) printMovies(movies []models.Movie) {
	for _, m := range movies {
		fav := " "
		if s.catalog.IsFavorite(m.ID) {
			fav = "*"
		}
		watched := ""
		if m.Watched {
			watched = " [watched]"
		}
		s.printf("%s %3s  %-28s %-6s %-18s %d%s\n", fav, m.ID, m.Title, m.Type, m.Genre, m.ReleaseYear, watched)
	}
}

func (s *shell) printDetail() {
	m, ok := s.detail.Movie()
	if !ok {
		s.printf("Item not found\n")
		return
	}
	s.printf("%s (%d) - %s, %s\n", m.Title, m.ReleaseYear, m.Type, m.Genre)
	if m.Description != "" {
		s.printf("%s\n", m.Description)
	}
	s.printf("watched: %t  favorite: %t\n", m.Watched, s.detail.IsFavorite())

	if avg, ok := s.detail.AverageRating(); ok {
		s.printf("rating: %.1f (%d reviews)\n", avg, len(s.detail.Reviews()))
	} else {
		s.printf("no reviews yet\n")
	}
	for _, r := range s.detail.Reviews() {
		s.printf("  [%d/5] user %s: %s\n", r.Rating, r.UserID, r.Comment)
	}
	if mine, ok := s.detail.YourReview(); ok {
		s.printf("your review: %d/5\n", mine.Rating)
	} else if _, signedIn := s.session.Current(); signedIn && !s.detail.CanRate() {
		s.printf("mark as watched to rate\n")
	}

	comments := s.detail.Comments()
	s.printf("comments: %d\n", len(comments))
	for _, c := range comments {
		own := ""
		if s.detail.CanDeleteComment(c) {
			own = " (yours)"
		}
		s.printf("  #%s user %s%s: %s\n", c.ID, c.UserID, own, c.Comment)
	}
}

func (s *shell) printEntries(entries []api.Entry) {
	if len(entries) == 0 {
		s.printf("no requests\n")
		return
	}
	for _, e := range entries {
		s.printf("%s %-6s %s %d %s", e.Time.Format("15:04:05"), e.Method, e.URL, e.Status, e.Duration)
		if e.Err != "" {
			s.printf(" error=%s", e.Err)
		}
		s.printf("\n")
	}
}

func (s *shell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}
