package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"streambd/models"
)

// Script constants and markers on the final stream page. The player embeds
// everything we need as literals in inline scripts.
var (
	reSrcConst       = regexp.MustCompile(`const SRC\s*=\s*["']([^"']+)["']`)
	rePopunderConst  = regexp.MustCompile(`const POPUNDER_URL = ["']([^"']+)["']`)
	reStableIDConst  = regexp.MustCompile(`const STABLE_ID = ["']([^"']+)["']`)
	reDownloadHref   = regexp.MustCompile(`href=["']([^"']*/file/[^"']*)["']`)
	reSocialCooldown = regexp.MustCompile(`var SOCIAL_COOLDOWN_H = (\d+)`)
	rePageCooldown   = regexp.MustCompile(`var PAGE_COOLDOWN_MIN = (\d+)`)

	reResolutionLabel = regexp.MustCompile(`(?i)(\d{3,4}p)`)
	reQualityTier     = regexp.MustCompile(`(?i)\b(HD|SD|FHD|UHD|4K)\b`)
)

// ExtractDescriptor parses the final stream page into a StreamDescriptor.
// Every rule is independent and best-effort; absent fields stay empty. The
// caller decides overall success from StreamURL and the HTTP layer.
func ExtractDescriptor(markup string) models.StreamDescriptor {
	desc := models.StreamDescriptor{PlayerType: "unknown"}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		// Unparsable markup still feeds the raw-text rules below.
		doc = nil
	}

	var scripts []string
	if doc != nil {
		desc.Title = strings.TrimSpace(doc.Find("title").First().Text())
		doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			if text := s.Text(); text != "" {
				scripts = append(scripts, text)
			}
		})
	}

	for _, script := range scripts {
		if desc.StreamURL == "" {
			if m := reSrcConst.FindStringSubmatch(script); m != nil {
				desc.StreamURL = unescapeSlashes(m[1])
			}
		}
		if desc.DownloadURL == "" {
			if m := reDownloadHref.FindStringSubmatch(script); m != nil {
				desc.DownloadURL = m[1]
			}
		}
		if desc.PopunderURL == "" {
			if m := rePopunderConst.FindStringSubmatch(script); m != nil {
				desc.PopunderURL = unescapeSlashes(m[1])
			}
		}
		if desc.StableID == "" {
			if m := reStableIDConst.FindStringSubmatch(script); m != nil {
				desc.StableID = m[1]
			}
		}
		if desc.SocialCooldownH == 0 {
			if m := reSocialCooldown.FindStringSubmatch(script); m != nil {
				desc.SocialCooldownH, _ = strconv.Atoi(m[1])
			}
		}
		if desc.PageCooldownMin == 0 {
			if m := rePageCooldown.FindStringSubmatch(script); m != nil {
				desc.PageCooldownMin, _ = strconv.Atoi(m[1])
			}
		}
	}

	// Script blocks get first shot at the download link; fall back to the
	// raw markup for pages that render it as a plain anchor.
	if desc.DownloadURL == "" {
		if m := reDownloadHref.FindStringSubmatch(markup); m != nil {
			desc.DownloadURL = m[1]
		}
	}

	if doc != nil {
		desc.FileInfo = classifyChips(doc)
	}

	lowerMarkup := strings.ToLower(markup)
	if strings.Contains(lowerMarkup, "jwplayer") {
		desc.PlayerType = "jwplayer"
	} else if strings.Contains(lowerMarkup, "video") {
		desc.PlayerType = "html5_video"
	}

	desc.QualityOptions = collectQualityLabels(markup)

	return desc
}

// classifyChips inspects the short label chips on the page. First match per
// category wins.
func classifyChips(doc *goquery.Document) models.FileInfo {
	var info models.FileInfo
	doc.Find("span.chip").Each(func(_ int, chip *goquery.Selection) {
		text := strings.TrimSpace(chip.Text())
		switch {
		case info.Size == "" && (strings.Contains(text, "GB") || strings.Contains(text, "MB")):
			info.Size = text
		case info.Format == "" && (strings.Contains(text, "MKV") || strings.Contains(text, "MP4")):
			info.Format = text
		case info.StreamType == "" && strings.Contains(text, "Fast Stream"):
			info.StreamType = text
		}
	})
	return info
}

// collectQualityLabels gathers every resolution label and quality-tier word
// on the page, de-duplicated. Order is not guaranteed and callers must not
// rely on it.
func collectQualityLabels(markup string) []string {
	seen := make(map[string]struct{})
	var labels []string
	add := func(matches [][]string) {
		for _, m := range matches {
			label := m[1]
			key := strings.ToLower(label)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			labels = append(labels, label)
		}
	}
	add(reResolutionLabel.FindAllStringSubmatch(markup, -1))
	add(reQualityTier.FindAllStringSubmatch(markup, -1))
	return labels
}

func unescapeSlashes(s string) string {
	return strings.ReplaceAll(s, `\/`, "/")
}
