// Package metadata looks up canonical titles from TMDB. The resolution core
// consumes only the lookup output; no provider logic leaks past this package.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey means no TMDB credential was configured. Checked before
// any network call.
var ErrMissingAPIKey = errors.New("TMDB_API_KEY is not configured")

const tmdbBaseURL = "https://api.themoviedb.org/3"

// Lookup is the canonical identity of one title.
type Lookup struct {
	Title         string
	OriginalTitle string
	Year          int
}

// Client is a minimal TMDB v3 client (movie and TV detail endpoints only).
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

// NewClient constructs a TMDB client. httpc may be nil.
func NewClient(apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: tmdbBaseURL,
		httpc:   httpc,
	}
}

// Movie returns the canonical title for a TMDB movie ID.
func (c *Client) Movie(ctx context.Context, tmdbID int) (Lookup, error) {
	var payload struct {
		Title         string `json:"title"`
		OriginalTitle string `json:"original_title"`
		ReleaseDate   string `json:"release_date"`
	}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", tmdbID), &payload); err != nil {
		return Lookup{}, err
	}
	return Lookup{
		Title:         strings.TrimSpace(payload.Title),
		OriginalTitle: strings.TrimSpace(payload.OriginalTitle),
		Year:          yearOf(payload.ReleaseDate),
	}, nil
}

// Show returns the canonical title for a TMDB TV series ID.
func (c *Client) Show(ctx context.Context, tmdbID int) (Lookup, error) {
	var payload struct {
		Name         string `json:"name"`
		OriginalName string `json:"original_name"`
		FirstAirDate string `json:"first_air_date"`
	}
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", tmdbID), &payload); err != nil {
		return Lookup{}, err
	}
	return Lookup{
		Title:         strings.TrimSpace(payload.Name),
		OriginalTitle: strings.TrimSpace(payload.OriginalName),
		Year:          yearOf(payload.FirstAirDate),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("language", "en-US")
	endpoint := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tmdb %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
