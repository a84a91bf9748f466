// Package resolve maps canonical catalog titles to playable stream URLs on
// the mirror network: search, fuzzy candidate selection, the gate redirect
// chain, and stream page extraction.
package resolve

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"streambd/internal/fetch"
	"streambd/internal/memcache"
	"streambd/models"
	"streambd/services/metadata"
)

// Config carries the resolution tunables, normally derived from
// config.Settings.
type Config struct {
	Mirrors       []string
	SearchTimeout time.Duration
	StreamTimeout time.Duration
	SearchCache   *memcache.Cache
	StreamCache   *memcache.Cache
}

// Service resolves reference titles against the mirror network. Safe for
// concurrent use; all mutable state lives in the injected caches.
type Service struct {
	fetcher       fetch.Fetcher
	mirrors       []string
	searchTimeout time.Duration
	streamTimeout time.Duration
	searchCache   *memcache.Cache
	streamCache   *memcache.Cache
}

func NewService(fetcher fetch.Fetcher, cfg Config) *Service {
	return &Service{
		fetcher:       fetcher,
		mirrors:       cfg.Mirrors,
		searchTimeout: cfg.SearchTimeout,
		streamTimeout: cfg.StreamTimeout,
		searchCache:   cfg.SearchCache,
		streamCache:   cfg.StreamCache,
	}
}

// BuildReference derives the normalized reference forms for a catalog lookup.
// A record with no localized title still resolves via its original title.
func BuildReference(lookup metadata.Lookup, season, episode int) models.ReferenceTitle {
	title := lookup.Title
	if title == "" {
		title = lookup.OriginalTitle
	}
	base := BaseTitle(title)
	return models.ReferenceTitle{
		Title:          title,
		OriginalTitle:  lookup.OriginalTitle,
		BaseTitle:      base,
		NormalizedFull: NormalizeTitle(title),
		NormalizedBase: NormalizeTitle(base),
		Year:           lookup.Year,
		Season:         season,
		Episode:        episode,
	}
}

// ResolveEpisode resolves a series reference to the stream descriptor for one
// episode.
func (s *Service) ResolveEpisode(ctx context.Context, ref models.ReferenceTitle, season, episode int) (models.StreamDescriptor, error) {
	ref.Season = season
	ref.Episode = episode

	cacheKey := memcache.Key("tv", ref.Title, strconv.Itoa(ref.Year), strconv.Itoa(season), strconv.Itoa(episode))
	if cached, ok := s.streamCache.Get(cacheKey); ok {
		return cached.(models.StreamDescriptor), nil
	}

	sel, err := s.selectSeriesCandidate(ctx, ref)
	if err != nil {
		return models.StreamDescriptor{}, err
	}
	log.Printf("[resolve] selected %q (score %.2f, low confidence %v) for %s S%dE%d",
		sel.Candidate.Title, sel.Candidate.Score, sel.LowConfidence, ref.Title, season, episode)

	watchURL, err := s.resolveSeriesLanding(ctx, sel.Candidate.Link, season, episode)
	if err != nil {
		return models.StreamDescriptor{}, err
	}

	desc, err := s.fetchDescriptor(ctx, watchURL)
	if err != nil {
		return models.StreamDescriptor{}, err
	}
	desc.LowConfidence = sel.LowConfidence

	s.streamCache.Put(cacheKey, desc)
	return desc, nil
}

// ResolveMovie resolves a movie reference to its stream descriptor. The query
// omits the year first; a year-qualified retry runs only when the bare query
// misses or lands on a series entry.
func (s *Service) ResolveMovie(ctx context.Context, ref models.ReferenceTitle) (models.StreamDescriptor, error) {
	cacheKey := memcache.Key("movie", ref.Title, strconv.Itoa(ref.Year))
	if cached, ok := s.streamCache.Get(cacheKey); ok {
		return cached.(models.StreamDescriptor), nil
	}

	landing, err := s.findMovieLanding(ctx, ref)
	if err != nil {
		return models.StreamDescriptor{}, err
	}
	log.Printf("[resolve] movie landing for %q: %s", ref.Title, landing)

	watchURL, err := s.resolveMovieLanding(ctx, landing)
	if err != nil {
		return models.StreamDescriptor{}, err
	}

	desc, err := s.fetchDescriptor(ctx, watchURL)
	if err != nil {
		return models.StreamDescriptor{}, err
	}

	s.streamCache.Put(cacheKey, desc)
	return desc, nil
}

// SearchVersions lists up to limit raw search hits across all mirrors, for
// callers that want the alternatives rather than a single pick.
func (s *Service) SearchVersions(ctx context.Context, query string, limit int) ([]models.Version, error) {
	var versions []models.Version
	for _, mirror := range s.mirrors {
		cands, err := s.searchListing(ctx, query, mirror)
		if err != nil {
			log.Printf("[resolve] version search on %s failed: %v", mirror, err)
			continue
		}
		for i, c := range cands {
			if i >= limit {
				break
			}
			typeTag := c.TypeTag
			if typeTag == "" {
				typeTag = "Unknown"
			}
			versions = append(versions, models.Version{
				Title:    c.Title,
				URL:      c.Link,
				Type:     typeTag,
				Quality:  c.Quality,
				Language: c.Language,
				Host:     c.Mirror,
			})
		}
	}
	if len(versions) > limit {
		versions = versions[:limit]
	}
	return versions, nil
}

// findMovieLanding implements the movie search path: bare title query, then
// a year-qualified retry preferring a movie entry, then an explicit scan for
// any movie link when the search keeps surfacing the series edition.
func (s *Service) findMovieLanding(ctx context.Context, ref models.ReferenceTitle) (string, error) {
	landing := s.firstSearchLink(ctx, ref.Title)

	if (landing == "" || isSeriesLink(landing)) && ref.Year > 0 {
		withYear := s.firstSearchLink(ctx, fmt.Sprintf("%s %d", ref.Title, ref.Year))
		if withYear != "" && strings.Contains(withYear, "/movie/") {
			landing = withYear
		}
	}

	if landing == "" {
		return "", ErrNoCandidates
	}

	if isSeriesLink(landing) {
		for _, mirror := range s.mirrors {
			cands, err := s.searchListing(ctx, ref.Title, mirror)
			if err != nil {
				continue
			}
			for _, c := range cands {
				if strings.Contains(c.Link, "/movie/") {
					return c.Link, nil
				}
			}
		}
	}

	return landing, nil
}

// selectSeriesCandidate runs the query variants across every mirror in order,
// scoring each listing and short-circuiting on a confident series match.
func (s *Service) selectSeriesCandidate(ctx context.Context, ref models.ReferenceTitle) (models.SelectionResult, error) {
	var (
		best  models.ScoredCandidate
		found bool
	)

	for _, query := range queryVariants(ref) {
		for _, mirror := range s.mirrors {
			cands, err := s.searchListing(ctx, query, mirror)
			if err != nil {
				log.Printf("[resolve] search %q on %s failed: %v", query, mirror, err)
				continue
			}
			if len(cands) == 0 {
				continue
			}

			scored := make([]models.ScoredCandidate, 0, len(cands))
			for _, c := range cands {
				scored = append(scored, ScoreCandidate(c, ref))
			}
			RankCandidates(scored)

			top := scored[0]
			if ShouldAcceptImmediately(top) {
				return FinalizeSelection(top, true), nil
			}
			if !found || BetterOverall(top, best) {
				best = top
				found = true
			}
		}
	}

	if !found {
		return models.SelectionResult{}, ErrNoCandidates
	}
	return FinalizeSelection(best, found), nil
}

// firstSearchLink returns the first search hit's landing URL across the
// mirrors, or "" when every mirror comes up empty.
func (s *Service) firstSearchLink(ctx context.Context, query string) string {
	for _, mirror := range s.mirrors {
		cands, err := s.searchListing(ctx, query, mirror)
		if err != nil || len(cands) == 0 {
			continue
		}
		return cands[0].Link
	}
	return ""
}

// firstSearchHit is the chain fallback's view of firstSearchLink.
func (s *Service) firstSearchHit(ctx context.Context, query string) (string, error) {
	if link := s.firstSearchLink(ctx, query); link != "" {
		return link, nil
	}
	return "", ErrNoCandidates
}

// searchListing fetches and parses one mirror's search page, with a
// per-(query, mirror) cache in front. Non-200 responses count as an empty
// listing rather than a failure.
func (s *Service) searchListing(ctx context.Context, query, mirror string) ([]models.Candidate, error) {
	cacheKey := memcache.Key(query, mirror)
	if cached, ok := s.searchCache.Get(cacheKey); ok {
		return cached.([]models.Candidate), nil
	}

	searchURL := mirror + "/search?q=" + url.QueryEscape(query)
	resp, err := s.fetcher.Fetch(ctx, searchURL, fetch.Options{
		Timeout: s.searchTimeout,
		Referer: mirror,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	if resp.Status != http.StatusOK {
		log.Printf("[resolve] search on %s returned %d", mirror, resp.Status)
		return nil, nil
	}

	cands, err := ExtractCandidates(resp.Body, mirror)
	if err != nil {
		return nil, err
	}

	s.searchCache.Put(cacheKey, cands)
	return cands, nil
}

// fetchDescriptor loads the terminal stream page and extracts its playback
// descriptor. This is the one hop where a bad response is a hard failure.
func (s *Service) fetchDescriptor(ctx context.Context, watchURL string) (models.StreamDescriptor, error) {
	resp, err := s.fetcher.Fetch(ctx, watchURL, fetch.Options{
		Timeout: s.streamTimeout,
		Referer: baseHost(watchURL),
	})
	if err != nil {
		return models.StreamDescriptor{}, fmt.Errorf("%w: stream page: %v", ErrUpstreamFetch, err)
	}
	if resp.Status != http.StatusOK {
		return models.StreamDescriptor{}, fmt.Errorf("%w: stream page returned %d", ErrUpstreamFetch, resp.Status)
	}

	// Some gates redirect straight to the media file.
	if mt := mimetype.Detect([]byte(resp.Body)); !mt.Is("text/html") && !strings.HasPrefix(mt.String(), "text/") {
		log.Printf("[resolve] stream page is %s, treating URL as the stream itself", mt.String())
		return models.StreamDescriptor{
			StreamURL:  resp.FinalURL,
			PlayerType: "direct",
		}, nil
	}

	return ExtractDescriptor(resp.Body), nil
}

// queryVariants returns the full and base title queries, deduplicated
// case-insensitively.
func queryVariants(ref models.ReferenceTitle) []string {
	var variants []string
	seen := make(map[string]bool)
	for _, q := range []string{ref.Title, ref.BaseTitle} {
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		variants = append(variants, q)
	}
	return variants
}

func isSeriesLink(link string) bool {
	return strings.Contains(link, seriesPathMarker)
}
