package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleListing = `<html><body>
<div class="movie-card">
  <a class="title" href="/series/breaking-bad-s1">Breaking Bad Season 1 Bangla Dubbed</a>
  <span class="type">Series</span>
  <span>720p WEB-DL</span>
  <span>Bangla</span>
</div>
<div class="movie-card">
  <a class="title" href="https://other.example/movie/el-camino">El Camino</a>
  <span class="type">Movie</span>
</div>
<div class="movie-card">
  <span class="type">Series</span>
</div>
</body></html>`

func TestExtractCandidates(t *testing.T) {
	cands, err := ExtractCandidates(sampleListing, "https://mirror.test/")
	require.NoError(t, err)
	require.Len(t, cands, 2, "the card without a title link is dropped")

	first := cands[0]
	assert.Equal(t, "Breaking Bad Season 1 Bangla Dubbed", first.Title)
	assert.Equal(t, "breaking bad", first.NormalizedTitle)
	assert.Equal(t, "https://mirror.test/series/breaking-bad-s1", first.Link)
	assert.Equal(t, "Series", first.TypeTag)
	assert.Equal(t, "720p WEB-DL", first.Quality)
	assert.Equal(t, "Bangla", first.Language)
	assert.True(t, first.IsSeries)
	assert.Equal(t, "https://mirror.test/", first.Mirror)

	second := cands[1]
	assert.Equal(t, "https://other.example/movie/el-camino", second.Link, "absolute links pass through")
	assert.False(t, second.IsSeries)
	assert.Empty(t, second.Quality)
	assert.Empty(t, second.Language)
}

func TestExtractCandidatesEmptyListing(t *testing.T) {
	cands, err := ExtractCandidates("<html><body><p>No results</p></body></html>", "https://mirror.test")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestIsSeriesEntry(t *testing.T) {
	tests := []struct {
		typeTag string
		link    string
		want    bool
	}{
		{"Series", "https://m.test/movie/x", true},
		{"series ", "https://m.test/movie/x", true},
		{"Movie", "https://m.test/series/x", true},
		{"Movie", "https://m.test/movie/x", false},
		{"", "https://m.test/movie/x", false},
	}
	for _, tt := range tests {
		if got := isSeriesEntry(tt.typeTag, tt.link); got != tt.want {
			t.Fatalf("isSeriesEntry(%q, %q) = %v, want %v", tt.typeTag, tt.link, got, tt.want)
		}
	}
}
