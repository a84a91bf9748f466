package resolve

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streambd/internal/fetch"
	"streambd/internal/memcache"
	"streambd/models"
	"streambd/services/metadata"
)

// stubFetcher serves canned pages by URL and records every request. URLs
// with no page respond 404.
type stubFetcher struct {
	pages map[string]*fetch.Response
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string, _ fetch.Options) (*fetch.Response, error) {
	f.calls = append(f.calls, rawURL)
	if resp, ok := f.pages[rawURL]; ok {
		if resp.FinalURL == "" {
			resp.FinalURL = rawURL
		}
		return resp, nil
	}
	return &fetch.Response{Status: http.StatusNotFound, FinalURL: rawURL}, nil
}

func htmlPage(body string) *fetch.Response {
	return &fetch.Response{Status: http.StatusOK, Body: body}
}

func newTestService(f fetch.Fetcher, mirrors ...string) *Service {
	return NewService(f, Config{
		Mirrors:       mirrors,
		SearchTimeout: 8 * time.Second,
		StreamTimeout: 30 * time.Second,
		SearchCache:   memcache.New(30 * time.Minute),
		StreamCache:   memcache.New(2 * time.Hour),
	})
}

func searchURLFor(mirror, query string) string {
	return mirror + "/search?q=" + url.QueryEscape(query)
}

func listingHTML(entries ...string) string {
	return "<html><body>" + strings.Join(entries, "\n") + "</body></html>"
}

func cardHTML(title, href, typeTag string) string {
	return `<div class="movie-card"><a class="title" href="` + href + `">` + title +
		`</a><span class="type">` + typeTag + `</span></div>`
}

const mirrorA = "https://mirror-a.test"
const mirrorB = "https://mirror-b.test"

func TestResolveEpisodeEndToEnd(t *testing.T) {
	ref := seriesRef("Breaking Bad", 1)

	f := &stubFetcher{pages: map[string]*fetch.Response{
		searchURLFor(mirrorA, "Breaking Bad"): htmlPage(listingHTML(
			cardHTML("Breaking Bad Season 1 Bangla Dubbed", "/series/bb-s1", "Series"),
		)),
		mirrorA + "/series/bb-s1": htmlPage(`<html><body>
			<div><h3>Season 1</h3>
				<a href="/getWatch/ep1-bangla">S1 E1 Bangla</a>
			</div>
		</body></html>`),
		mirrorA + "/getWatch/ep1-bangla": htmlPage(
			`<html><head><meta http-equiv="refresh" content="0;url=` + mirrorA + `/episode/bb-s1e1"></head></html>`),
		mirrorA + "/episode/bb-s1e1": htmlPage(`<html><head><title>Breaking Bad S1 E1</title></head><body>
			<script>const SRC = "https://cdn.example/video.m3u8";</script>
		</body></html>`),
	}}
	svc := newTestService(f, mirrorA)

	desc, err := svc.ResolveEpisode(context.Background(), ref, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/video.m3u8", desc.StreamURL)
	assert.Equal(t, "Breaking Bad S1 E1", desc.Title)
	assert.False(t, desc.LowConfidence)

	// A second call answers from the stream cache without touching upstream.
	before := len(f.calls)
	again, err := svc.ResolveEpisode(context.Background(), ref, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, desc, again)
	assert.Equal(t, before, len(f.calls))
}

func TestSelectSeriesCandidateShortCircuits(t *testing.T) {
	ref := seriesRef("Breaking Bad", 1)

	f := &stubFetcher{pages: map[string]*fetch.Response{
		searchURLFor(mirrorA, "Breaking Bad"): htmlPage(listingHTML(
			cardHTML("Breaking Bad Season 1", "/series/bb", "Series"),
		)),
	}}
	svc := newTestService(f, mirrorA, mirrorB)

	sel, err := svc.selectSeriesCandidate(context.Background(), ref)
	require.NoError(t, err)
	require.True(t, sel.Found)
	assert.Equal(t, "Breaking Bad Season 1", sel.Candidate.Title)

	for _, call := range f.calls {
		if strings.HasPrefix(call, mirrorB) {
			t.Fatalf("second mirror consulted after a confident first hit: %s", call)
		}
	}
}

func TestSelectSeriesCandidateLowConfidence(t *testing.T) {
	ref := seriesRef("Breaking Bad", 1)

	f := &stubFetcher{pages: map[string]*fetch.Response{
		searchURLFor(mirrorA, "Breaking Bad"): htmlPage(listingHTML(
			cardHTML("Totally Different Show", "/series/other", "Series"),
		)),
	}}
	svc := newTestService(f, mirrorA)

	sel, err := svc.selectSeriesCandidate(context.Background(), ref)
	require.NoError(t, err)
	require.True(t, sel.Found, "a weak best match is still returned")
	assert.True(t, sel.LowConfidence)
}

func TestSelectSeriesCandidateNoResults(t *testing.T) {
	f := &stubFetcher{pages: map[string]*fetch.Response{}}
	svc := newTestService(f, mirrorA)

	_, err := svc.selectSeriesCandidate(context.Background(), seriesRef("Breaking Bad", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestFindMovieLandingYearRetry(t *testing.T) {
	ref := models.ReferenceTitle{
		Title: "The Platform",
		Year:  2019,
	}

	f := &stubFetcher{pages: map[string]*fetch.Response{
		searchURLFor(mirrorA, "The Platform"): htmlPage(listingHTML(
			cardHTML("The Platform Season 1", "/series/platform", "Series"),
		)),
		searchURLFor(mirrorA, "The Platform 2019"): htmlPage(listingHTML(
			cardHTML("The Platform (2019)", "/movie/platform", "Movie"),
		)),
	}}
	svc := newTestService(f, mirrorA)

	landing, err := svc.findMovieLanding(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, mirrorA+"/movie/platform", landing)
}

func TestFindMovieLandingScansForMovieLink(t *testing.T) {
	// The year retry also surfaces the series edition, so the card scan has
	// to find the movie link further down the listing.
	ref := models.ReferenceTitle{Title: "The Platform", Year: 2019}

	seriesFirst := listingHTML(
		cardHTML("The Platform Season 1", "/series/platform", "Series"),
		cardHTML("The Platform", "/movie/platform", "Movie"),
	)
	f := &stubFetcher{pages: map[string]*fetch.Response{
		searchURLFor(mirrorA, "The Platform"):      htmlPage(seriesFirst),
		searchURLFor(mirrorA, "The Platform 2019"): htmlPage(seriesFirst),
	}}
	svc := newTestService(f, mirrorA)

	landing, err := svc.findMovieLanding(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, mirrorA+"/movie/platform", landing)
}

func TestResolveMovieEndToEnd(t *testing.T) {
	ref := models.ReferenceTitle{Title: "El Camino", Year: 2019}

	f := &stubFetcher{pages: map[string]*fetch.Response{
		searchURLFor(mirrorA, "El Camino"): htmlPage(listingHTML(
			cardHTML("El Camino", "/movie/el-camino", "Movie"),
		)),
		mirrorA + "/movie/el-camino": htmlPage(
			`<html><body><a href="/getWatch/el-camino">Watch Now</a></body></html>`),
		mirrorA + "/getWatch/el-camino": htmlPage(
			`<html><body><script>window.location.href = "` + mirrorA + `/watch/el-camino";</script></body></html>`),
		mirrorA + "/watch/el-camino": htmlPage(`<html><body>
			<script>const SRC = "https://cdn.example/el-camino.m3u8";</script>
		</body></html>`),
	}}
	svc := newTestService(f, mirrorA)

	desc, err := svc.ResolveMovie(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/el-camino.m3u8", desc.StreamURL)
}

func TestSearchVersions(t *testing.T) {
	f := &stubFetcher{pages: map[string]*fetch.Response{
		searchURLFor(mirrorA, "extraction"): htmlPage(listingHTML(
			cardHTML("Extraction", "/movie/extraction", "Movie"),
			cardHTML("Extraction 2", "/movie/extraction-2", "Movie"),
			cardHTML("Extraction Hindi", "/movie/extraction-hindi", ""),
		)),
	}}
	svc := newTestService(f, mirrorA)

	versions, err := svc.SearchVersions(context.Background(), "extraction", 2)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Extraction", versions[0].Title)
	assert.Equal(t, mirrorA+"/movie/extraction", versions[0].URL)
	assert.Equal(t, "Movie", versions[0].Type)
	assert.Equal(t, mirrorA, versions[0].Host)
}

func TestBuildReferenceFallsBackToOriginalTitle(t *testing.T) {
	ref := BuildReference(metadata.Lookup{OriginalTitle: "La Casa de Papel", Year: 2017}, 1, 1)

	assert.Equal(t, "La Casa de Papel", ref.Title)
	assert.Equal(t, "la casa de papel", ref.NormalizedFull)
	assert.Equal(t, []string{"La Casa de Papel"}, queryVariants(ref))
}

func TestQueryVariants(t *testing.T) {
	ref := models.ReferenceTitle{Title: "Money Heist: Part 5", BaseTitle: "Money Heist"}
	got := queryVariants(ref)
	assert.Equal(t, []string{"Money Heist: Part 5", "Money Heist"}, got)

	same := models.ReferenceTitle{Title: "Dark", BaseTitle: "dark"}
	assert.Equal(t, []string{"Dark"}, queryVariants(same))
}
