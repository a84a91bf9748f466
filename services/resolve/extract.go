package resolve

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"streambd/models"
)

// seriesPathMarker in a link identifies a series detail page.
const seriesPathMarker = "/series/"

var (
	qualityHints  = []string{"720p", "1080p", "4k", "hd", "web-dl", "bluray"}
	languageHints = []string{"hindi", "english", "bangla", "dual audio"}
)

// ExtractCandidates parses a search listing page into candidates in document
// order. Entries without a link are dropped; missing optional tags yield
// empty strings. A page with zero recognizable entries returns an empty
// slice and no error; "no candidates" is distinct from "fetch failed".
func ExtractCandidates(markup, mirror string) ([]models.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	doc.Find("div.movie-card").Each(func(_ int, card *goquery.Selection) {
		anchor := card.Find("a.title").First()
		if anchor.Length() == 0 {
			return
		}
		href, _ := anchor.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		title := strings.TrimSpace(anchor.Text())
		link := absoluteLink(href, mirror)

		typeTag := strings.TrimSpace(card.Find("span.type").First().Text())

		var quality, language string
		card.Find("span").Each(func(_ int, span *goquery.Selection) {
			text := strings.TrimSpace(span.Text())
			lower := strings.ToLower(text)
			if quality == "" && containsAny(lower, qualityHints) {
				quality = text
			} else if language == "" && containsAny(lower, languageHints) {
				language = text
			}
		})

		candidates = append(candidates, models.Candidate{
			Title:           title,
			NormalizedTitle: NormalizeTitle(title),
			Link:            link,
			TypeTag:         typeTag,
			Language:        language,
			Quality:         quality,
			IsSeries:        isSeriesEntry(typeTag, link),
			Mirror:          mirror,
		})
	})

	return candidates, nil
}

// isSeriesEntry reports whether the type tag or the link path marks a series.
func isSeriesEntry(typeTag, link string) bool {
	if strings.EqualFold(strings.TrimSpace(typeTag), "series") {
		return true
	}
	return strings.Contains(link, seriesPathMarker)
}

func absoluteLink(href, mirror string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(mirror, "/") + "/" + strings.TrimLeft(href, "/")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
