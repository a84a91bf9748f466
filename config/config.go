package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds everything the process reads from its environment. Populated
// once at startup and passed by value into constructors; nothing reads the
// environment after Load returns.
type Settings struct {
	// TMDBAPIKey authenticates the metadata lookups. Required.
	TMDBAPIKey string

	// Mirrors are the catalog hosts tried in order for every search.
	Mirrors []string

	// ProxySourceURL serves a newline-separated proxy list used as the
	// fallback when direct requests are blocked.
	ProxySourceURL string

	// Addr is the HTTP listen address.
	Addr string

	// LogFile enables rotating file logging when set.
	LogFile string

	SearchTimeout time.Duration // listing/landing hops
	StreamTimeout time.Duration // gate/stream hops

	SearchCacheTTL time.Duration
	StreamCacheTTL time.Duration
}

const (
	defaultAddr           = ":8900"
	defaultSearchTimeout  = 8 * time.Second
	defaultStreamTimeout  = 30 * time.Second
	defaultSearchCacheTTL = 30 * time.Minute
	defaultStreamCacheTTL = 2 * time.Hour
	defaultProxySource    = "https://api.proxyscrape.com/v4/free-proxy-list/get?request=display_proxies&proxy_format=protocolipport&format=text"
)

var defaultMirrors = []string{
	"https://moviexp.movielinkbd.sbs",
	"https://movielinkbd.shop",
}

// Load reads settings from the environment and applies defaults.
func Load() Settings {
	s := Settings{
		TMDBAPIKey:     strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		ProxySourceURL: envOr("STREAMBD_PROXY_SOURCE", defaultProxySource),
		Addr:           envOr("STREAMBD_ADDR", defaultAddr),
		LogFile:        strings.TrimSpace(os.Getenv("STREAMBD_LOG_FILE")),
		SearchTimeout:  envDuration("STREAMBD_SEARCH_TIMEOUT", defaultSearchTimeout),
		StreamTimeout:  envDuration("STREAMBD_STREAM_TIMEOUT", defaultStreamTimeout),
		SearchCacheTTL: envDuration("STREAMBD_SEARCH_CACHE_TTL", defaultSearchCacheTTL),
		StreamCacheTTL: envDuration("STREAMBD_STREAM_CACHE_TTL", defaultStreamCacheTTL),
	}

	if raw := strings.TrimSpace(os.Getenv("STREAMBD_MIRRORS")); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			m = strings.TrimRight(strings.TrimSpace(m), "/")
			if m != "" {
				s.Mirrors = append(s.Mirrors, m)
			}
		}
	}
	if len(s.Mirrors) == 0 {
		s.Mirrors = append(s.Mirrors, defaultMirrors...)
	}

	return s
}

// Validate reports configuration problems that must fail the process before
// any network call is made.
func (s Settings) Validate() error {
	if s.TMDBAPIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is not configured")
	}
	if len(s.Mirrors) == 0 {
		return fmt.Errorf("no catalog mirrors configured")
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// Bare numbers are seconds, matching how deployments configured the
	// previous generation of this service.
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
