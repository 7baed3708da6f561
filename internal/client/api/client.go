// Package api is the typed client of the catalog REST API. Every request it
// makes is recorded in an AuditLog.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/google/uuid"
)

// ErrStatus is wrapped by errors for responses outside the 2xx range.
var ErrStatus = errors.New("unexpected status")

// StatusError carries the status code of a failed response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

// Unwrap lets errors.Is match ErrStatus.
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client calls the REST API rooted at a base URL.
type Client struct {
	base  string
	http  *http.Client
	audit *AuditLog
}

// New returns a client for baseURL. A nil httpClient uses a client with a
// 15 second timeout; a nil audit log gets a default one.
func New(baseURL string, httpClient *http.Client, audit *AuditLog) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if audit == nil {
		audit = NewAuditLog(DefaultAuditLimit)
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  httpClient,
		audit: audit,
	}
}

// Audit returns the log of requests made by the client.
func (c *Client) Audit() *AuditLog {
	return c.audit
}

// Users fetches every user.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := c.do(ctx, http.MethodGet, "/"+models.CollectionUsers, nil, nil, &out)
	return out, err
}

// Movies fetches the whole catalog.
func (c *Client) Movies(ctx context.Context) ([]models.Movie, error) {
	var out []models.Movie
	err := c.do(ctx, http.MethodGet, "/"+models.CollectionMovies, nil, nil, &out)
	return out, err
}

// Movie fetches one catalog item.
func (c *Client) Movie(ctx context.Context, id models.ID) (models.Movie, error) {
	var out models.Movie
	err := c.do(ctx, http.MethodGet, itemPath(models.CollectionMovies, id), nil, nil, &out)
	return out, err
}

// CreateMovie stores a new catalog item.
func (c *Client) CreateMovie(ctx context.Context, m models.Movie) (models.Movie, error) {
	var out models.Movie
	err := c.do(ctx, http.MethodPost, "/"+models.CollectionMovies, nil, m, &out)
	return out, err
}

// ReplaceMovie sends the complete record of m, replacing the stored one.
func (c *Client) ReplaceMovie(ctx context.Context, m models.Movie) (models.Movie, error) {
	var out models.Movie
	err := c.do(ctx, http.MethodPut, itemPath(models.CollectionMovies, m.ID), nil, m, &out)
	return out, err
}

// DeleteMovie removes a catalog item.
func (c *Client) DeleteMovie(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, itemPath(models.CollectionMovies, id), nil, nil, nil)
}

// FavoriteFilter narrows a favorites query. Zero fields are not sent.
type FavoriteFilter struct {
	UserID  models.ID
	MovieID models.ID
}

// Favorites fetches favorite links matching filter.
func (c *Client) Favorites(ctx context.Context, filter FavoriteFilter) ([]models.Favorite, error) {
	q := url.Values{}
	if !filter.UserID.IsZero() {
		q.Set("userId", filter.UserID.String())
	}
	if !filter.MovieID.IsZero() {
		q.Set("movieId", filter.MovieID.String())
	}
	var out []models.Favorite
	err := c.do(ctx, http.MethodGet, "/"+models.CollectionFavorites, q, nil, &out)
	return out, err
}

// CreateFavorite stores a favorite link and returns it with its assigned id.
func (c *Client) CreateFavorite(ctx context.Context, f models.Favorite) (models.Favorite, error) {
	var out models.Favorite
	err := c.do(ctx, http.MethodPost, "/"+models.CollectionFavorites, nil, f, &out)
	return out, err
}

// DeleteFavorite removes a favorite link.
func (c *Client) DeleteFavorite(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, itemPath(models.CollectionFavorites, id), nil, nil, nil)
}

// Reviews fetches the reviews of a catalog item.
func (c *Client) Reviews(ctx context.Context, movieID models.ID) ([]models.Review, error) {
	var out []models.Review
	err := c.do(ctx, http.MethodGet, "/"+models.CollectionReviews, url.Values{"movieId": {movieID.String()}}, nil, &out)
	return out, err
}

// CreateReview stores a new review.
func (c *Client) CreateReview(ctx context.Context, r models.Review) (models.Review, error) {
	var out models.Review
	err := c.do(ctx, http.MethodPost, "/"+models.CollectionReviews, nil, r, &out)
	return out, err
}

// ReplaceReview sends the complete review, replacing the stored one.
func (c *Client) ReplaceReview(ctx context.Context, r models.Review) (models.Review, error) {
	var out models.Review
	err := c.do(ctx, http.MethodPut, itemPath(models.CollectionReviews, r.ID), nil, r, &out)
	return out, err
}

// Comments fetches the comments of a catalog item.
func (c *Client) Comments(ctx context.Context, movieID models.ID) ([]models.Comment, error) {
	var out []models.Comment
	err := c.do(ctx, http.MethodGet, "/"+models.CollectionComments, url.Values{"movieId": {movieID.String()}}, nil, &out)
	return out, err
}

// CreateComment stores a new comment.
func (c *Client) CreateComment(ctx context.Context, cm models.Comment) (models.Comment, error) {
	var out models.Comment
	err := c.do(ctx, http.MethodPost, "/"+models.CollectionComments, nil, cm, &out)
	return out, err
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, itemPath(models.CollectionComments, id), nil, nil, nil)
}

func itemPath(collection string, id models.ID) string {
	return "/" + collection + "/" + url.PathEscape(id.String())
}

// do sends one request, decodes a successful JSON answer into out and
// records the exchange in the audit log.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	entry := Entry{
		ID:     uuid.NewString(),
		Time:   time.Now(),
		Method: method,
		URL:    endpoint,
	}
	defer func() {
		entry.Duration = time.Since(entry.Time)
		c.audit.Record(entry)
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			entry.Err = err.Error()
			return fmt.Errorf("encode request: %w", err)
		}
		entry.Request = payload
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		entry.Err = err.Error()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		entry.Err = err.Error()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	entry.Status = resp.StatusCode
	if err != nil {
		entry.Err = err.Error()
		return fmt.Errorf("read response: %w", err)
	}
	entry.Response = asJSON(data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		entry.Err = se.Error()
		return fmt.Errorf("%s %s: %w", method, path, se)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			entry.Err = err.Error()
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// asJSON keeps valid JSON as is and quotes anything else.
func asJSON(data []byte) json.RawMessage {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
