package models

// MediaKind distinguishes the two resolution paths.
type MediaKind string

const (
	MediaKindMovie  MediaKind = "movie"
	MediaKindSeries MediaKind = "series"
)

// ReferenceTitle is the canonical identity of the media being resolved,
// built once from the metadata lookup and immutable afterwards.
type ReferenceTitle struct {
	Title          string
	OriginalTitle  string
	BaseTitle      string // text before the first ':', '-' or '('
	NormalizedFull string
	NormalizedBase string
	Year           int
	Season         int
	Episode        int
}

// Candidate is one parsed entry from a catalog listing page. Produced per
// search response, never persisted.
type Candidate struct {
	Title           string `json:"title"`
	NormalizedTitle string `json:"-"`
	Link            string `json:"url"`
	TypeTag         string `json:"type,omitempty"`
	Language        string `json:"language,omitempty"`
	Quality         string `json:"quality,omitempty"`
	IsSeries        bool   `json:"-"`
	Mirror          string `json:"host"`
}

// ScoredCandidate carries a Candidate through scoring. Adjustments are purely
// additive on the raw similarity, so Score may leave the [0,1] range.
type ScoredCandidate struct {
	Candidate
	Score           float64
	FoundSeason     int // 0 when no season number parsed from the title
	SeasonMatch     bool
	HasSeasonBlock  bool
	HasEpisodeBatch bool
}

// SelectionResult is the single chosen candidate for one resolution request.
type SelectionResult struct {
	Candidate     ScoredCandidate
	Found         bool
	LowConfidence bool // best score fell below the acceptance threshold
}

// FileInfo groups the label-chip metadata scraped from a stream page.
type FileInfo struct {
	Size       string `json:"size,omitempty"`
	Format     string `json:"format,omitempty"`
	StreamType string `json:"streamType,omitempty"`
}

// StreamDescriptor is the terminal output of a resolution. Every field may be
// empty; only StreamURL decides overall success.
type StreamDescriptor struct {
	Title           string   `json:"title,omitempty"`
	StreamURL       string   `json:"streamUrl,omitempty"`
	DownloadURL     string   `json:"downloadUrl,omitempty"`
	PopunderURL     string   `json:"popunderUrl,omitempty"`
	StableID        string   `json:"stableId,omitempty"`
	FileInfo        FileInfo `json:"fileInfo"`
	PlayerType      string   `json:"playerType"` // "jwplayer", "html5_video" or "unknown"
	QualityOptions  []string `json:"qualityOptions,omitempty"`
	SocialCooldownH int      `json:"socialCooldownHours,omitempty"`
	PageCooldownMin int      `json:"pageCooldownMinutes,omitempty"`
	LowConfidence   bool     `json:"lowConfidence,omitempty"`
}

// Version is one catalog listing entry returned by the multi-version search.
type Version struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Quality  string `json:"quality,omitempty"`
	Language string `json:"language,omitempty"`
	Host     string `json:"host"`
}
