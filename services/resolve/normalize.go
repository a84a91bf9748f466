package resolve

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// noiseWords are stripped from titles before comparison. Order matters:
// multi-word phrases must go before their single-word prefixes. The list is a
// fixed policy tuned against the catalog's title conventions, not a sample.
var noiseWords = []string{
	"bangla dubbed", "bangla", "বাংলা", "bd",
	"hindi dubbed", "hindi", "हिंदी",
	"dual audio", "english dubbed", "english",
	"web-dl", "webdl", "webrip", "hdrip", "brrip", "dvdrip", "rip",
	"480p", "720p", "1080p", "4k", "uhd", "hd", "sd",
}

var (
	reParenYear    = regexp.MustCompile(`\(\d{4}\)`)
	reSeasonTokens = regexp.MustCompile(`(?i)\b(season\s*\d+|s\d+|ep\s*\d+|e\d+)\b`)
	reNonAlnum     = regexp.MustCompile(`[^a-z0-9\s]`)
	reSpaces       = regexp.MustCompile(`\s+`)
	reBaseSplit    = regexp.MustCompile(`[:\-(]`)

	noiseMatchers = compileNoise()
)

type noiseMatcher struct {
	re      *regexp.Regexp // nil for non-ASCII entries
	literal string
}

// compileNoise builds word-bounded matchers for ASCII entries. RE2's \b is
// ASCII-only, so native-script entries use literal replacement instead.
func compileNoise() []noiseMatcher {
	matchers := make([]noiseMatcher, 0, len(noiseWords))
	for _, w := range noiseWords {
		if isASCII(w) {
			matchers = append(matchers, noiseMatcher{
				re: regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`),
			})
		} else {
			matchers = append(matchers, noiseMatcher{literal: w})
		}
	}
	return matchers
}

// NormalizeTitle canonicalizes a free-text title into a comparable token
// string: lowercase, no year tag, no season/episode tokens, no dub/quality
// noise, ASCII alphanumerics and single spaces only. Pure and idempotent.
func NormalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = norm.NFC.String(s)

	s = reParenYear.ReplaceAllString(s, "")
	s = reSeasonTokens.ReplaceAllString(s, "")

	for _, m := range noiseMatchers {
		if m.re != nil {
			s = m.re.ReplaceAllString(s, "")
		} else {
			s = strings.ReplaceAll(s, m.literal, "")
		}
	}

	// Transliterate whatever non-ASCII survives (accented latin, stray
	// script) so it can participate in token comparison.
	s = strings.ToLower(unidecode.Unidecode(s))

	s = reNonAlnum.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// BaseTitle returns the text before the first ':', '-' or '(', trimmed.
// Guards against catalog entries that drop a subtitle or colon suffix.
func BaseTitle(s string) string {
	if loc := reBaseSplit.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
