package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"streambd/models"
	"streambd/services/metadata"
	"streambd/services/resolve"
)

const versionsLimit = 5

// MetadataClient is the catalog lookup surface the handler needs.
type MetadataClient interface {
	Movie(ctx context.Context, tmdbID int) (metadata.Lookup, error)
	Show(ctx context.Context, tmdbID int) (metadata.Lookup, error)
}

// Resolver is the resolution surface the handler needs.
type Resolver interface {
	ResolveMovie(ctx context.Context, ref models.ReferenceTitle) (models.StreamDescriptor, error)
	ResolveEpisode(ctx context.Context, ref models.ReferenceTitle, season, episode int) (models.StreamDescriptor, error)
	SearchVersions(ctx context.Context, query string, limit int) ([]models.Version, error)
}

// ResolveHandler serves the stream resolution endpoints.
type ResolveHandler struct {
	metadata MetadataClient
	resolver Resolver
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(metadataClient MetadataClient, resolver Resolver) *ResolveHandler {
	return &ResolveHandler{
		metadata: metadataClient,
		resolver: resolver,
	}
}

// ResolveResponse is the success envelope for the resolution endpoints.
type ResolveResponse struct {
	Success   bool                    `json:"success"`
	VideoInfo models.StreamDescriptor `json:"video_info"`
	Versions  []models.Version        `json:"versions"`
}

// SearchResponse is the success envelope for the search endpoint.
type SearchResponse struct {
	Success  bool             `json:"success"`
	Versions []models.Version `json:"versions"`
}

// Movie resolves a TMDB movie id to a stream descriptor.
// GET /api/movie/{tmdbID}
func (h *ResolveHandler) Movie(w http.ResponseWriter, r *http.Request) {
	tmdbID, ok := intVar(w, r, "tmdbID")
	if !ok {
		return
	}

	lookup, err := h.metadata.Movie(r.Context(), tmdbID)
	if err != nil {
		h.respondResolveError(w, err)
		return
	}

	ref := resolve.BuildReference(lookup, 0, 0)
	desc, err := h.resolver.ResolveMovie(r.Context(), ref)
	if err != nil {
		h.respondResolveError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ResolveResponse{
		Success:   true,
		VideoInfo: desc,
		Versions:  []models.Version{},
	})
}

// TV resolves a TMDB series id plus season/episode to a stream descriptor.
// GET /api/tv/{tmdbID}/{season}/{episode}
func (h *ResolveHandler) TV(w http.ResponseWriter, r *http.Request) {
	tmdbID, ok := intVar(w, r, "tmdbID")
	if !ok {
		return
	}
	season, ok := intVar(w, r, "season")
	if !ok {
		return
	}
	episode, ok := intVar(w, r, "episode")
	if !ok {
		return
	}
	if season < 1 || episode < 1 {
		respondError(w, "season and episode must be positive", http.StatusBadRequest)
		return
	}

	lookup, err := h.metadata.Show(r.Context(), tmdbID)
	if err != nil {
		h.respondResolveError(w, err)
		return
	}

	ref := resolve.BuildReference(lookup, season, episode)
	desc, err := h.resolver.ResolveEpisode(r.Context(), ref, season, episode)
	if err != nil {
		h.respondResolveError(w, err)
		return
	}

	versions, err := h.resolver.SearchVersions(r.Context(), lookup.Title, versionsLimit)
	if err != nil {
		log.Printf("[handlers] version listing for %q failed: %v", lookup.Title, err)
		versions = nil
	}
	if versions == nil {
		versions = []models.Version{}
	}

	respondJSON(w, http.StatusOK, ResolveResponse{
		Success:   true,
		VideoInfo: desc,
		Versions:  versions,
	})
}

// Search lists raw catalog search hits for a free-text query.
// GET /api/search?q=...&limit=...
func (h *ResolveHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, "q parameter is required", http.StatusBadRequest)
		return
	}

	limit := versionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	versions, err := h.resolver.SearchVersions(r.Context(), query, limit)
	if err != nil {
		h.respondResolveError(w, err)
		return
	}
	if versions == nil {
		versions = []models.Version{}
	}

	respondJSON(w, http.StatusOK, SearchResponse{Success: true, Versions: versions})
}

// Register wires the handler's routes onto the router.
func (h *ResolveHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/movie/{tmdbID}", h.Movie).Methods(http.MethodGet)
	r.HandleFunc("/api/tv/{tmdbID}/{season}/{episode}", h.TV).Methods(http.MethodGet)
	r.HandleFunc("/api/search", h.Search).Methods(http.MethodGet)
}

// respondResolveError maps resolution failures onto HTTP statuses: missing
// catalog entries are 404, upstream trouble is 502, configuration and
// anything unclassified is 500.
func (h *ResolveHandler) respondResolveError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, resolve.ErrNoCandidates),
		errors.Is(err, resolve.ErrNoWatchTrigger):
		status = http.StatusNotFound
	case errors.Is(err, resolve.ErrGateUnresolved),
		errors.Is(err, resolve.ErrUpstreamFetch):
		status = http.StatusBadGateway
	case errors.Is(err, metadata.ErrMissingAPIKey):
		status = http.StatusInternalServerError
	}
	respondError(w, err.Error(), status)
}

func intVar(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		respondError(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
