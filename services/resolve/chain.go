package resolve

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"streambd/internal/fetch"
)

// gatePathMarker identifies the interstitial hop between a detail page and
// the stream page.
const gatePathMarker = "/getWatch/"

// langPriority orders watch triggers when several qualify for the requested
// episode. Earlier is better; text matching none of these ranks last.
var langPriority = []string{
	"bangla", "বাংলা", "bangla dubbed", "bd",
	"hindi", "हिंदी", "hindi dubbed", "english",
}

var (
	reOnclickGate  = regexp.MustCompile(`/getWatch/[^"']+`)
	reMetaURL      = regexp.MustCompile(`(?i)url=(.+)`)
	reScriptTarget = regexp.MustCompile(`["']([^"']*(?:watch|episode)[^"']*)["']`)
)

type watchTrigger struct {
	gateURL    string
	langWeight int
}

// resolveMovieLanding walks a movie detail page to the final stream URL:
// first gate trigger on the page, then the gate hop.
func (s *Service) resolveMovieLanding(ctx context.Context, landingURL string) (string, error) {
	resp, err := s.fetchPage(ctx, landingURL, s.searchTimeout)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("parse landing page: %w", err)
	}

	gateURL := firstGateTrigger(doc.Selection)
	if gateURL == "" {
		return "", ErrNoWatchTrigger
	}

	return s.resolveGate(ctx, absoluteAgainst(gateURL, landingURL), landingURL)
}

// resolveSeriesLanding walks a series detail page: scope to the requested
// season's subtree when one exists, collect gate triggers annotated with the
// requested episode, pick by language preference, then the gate hop. When no
// trigger qualifies it degrades through the dubbed-release fallback (season 1
// only) and finally the movie-style scan.
func (s *Service) resolveSeriesLanding(ctx context.Context, landingURL string, season, episode int) (string, error) {
	resp, err := s.fetchPage(ctx, landingURL, s.searchTimeout)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("parse series page: %w", err)
	}

	scope, scoped := seasonScope(doc, season)
	triggers := collectEpisodeTriggers(scope, episode)
	if len(triggers) == 0 && scoped {
		// The season subtree existed but held nothing useful; widen out.
		triggers = collectEpisodeTriggers(doc.Selection, episode)
	}

	if len(triggers) == 0 {
		if season == 1 {
			if final, err := s.dubbedReleaseFallback(ctx, doc, landingURL); err == nil {
				return final, nil
			}
		}
		// Some series pages use the plain movie layout.
		gateURL := firstGateTrigger(doc.Selection)
		if gateURL == "" {
			return "", ErrNoWatchTrigger
		}
		return s.resolveGate(ctx, absoluteAgainst(gateURL, landingURL), landingURL)
	}

	best := triggers[0]
	for _, t := range triggers[1:] {
		if t.langWeight < best.langWeight {
			best = t
		}
	}
	log.Printf("[resolve] selected gate trigger %s (lang weight %d)", best.gateURL, best.langWeight)

	return s.resolveGate(ctx, absoluteAgainst(best.gateURL, landingURL), landingURL)
}

// resolveGate fetches the gate page and extracts the final stream URL via,
// in order: meta-refresh target, script navigation literal, the response's
// own final URL. The chain never retries this hop.
func (s *Service) resolveGate(ctx context.Context, gateURL, landingURL string) (string, error) {
	resp, err := s.fetcher.Fetch(ctx, gateURL, fetch.Options{
		Timeout: s.streamTimeout,
		Referer: baseHost(landingURL),
	})
	if err != nil {
		return "", fmt.Errorf("%w: gate fetch: %v", ErrUpstreamFetch, err)
	}
	if resp.Status != http.StatusOK {
		return "", fmt.Errorf("%w: gate page returned %d", ErrUpstreamFetch, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("parse gate page: %w", err)
	}

	var watchURL string

	doc.Find(`meta[http-equiv="refresh"]`).EachWithBreak(func(_ int, meta *goquery.Selection) bool {
		content, _ := meta.Attr("content")
		if m := reMetaURL.FindStringSubmatch(content); m != nil {
			watchURL = strings.TrimSpace(m[1])
			return false
		}
		return true
	})

	if watchURL == "" {
		doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
			text := script.Text()
			if !strings.Contains(text, "window.location") && !strings.Contains(text, "location.href") {
				return true
			}
			if m := reScriptTarget.FindStringSubmatch(text); m != nil {
				watchURL = m[1]
				return false
			}
			return true
		})
	}

	if watchURL == "" && looksLikeStreamURL(resp.FinalURL) {
		watchURL = resp.FinalURL
	}

	if watchURL == "" {
		return "", ErrGateUnresolved
	}

	return absoluteAgainst(watchURL, landingURL), nil
}

// dubbedReleaseFallback re-runs the search biased toward a consolidated
// single-language release of the whole first season and, when it lands
// somewhere new, resolves that page movie-style.
func (s *Service) dubbedReleaseFallback(ctx context.Context, doc *goquery.Document, landingURL string) (string, error) {
	pageTitle := strings.TrimSpace(doc.Find("h1").First().Text())
	if pageTitle == "" {
		pageTitle = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if pageTitle == "" {
		return "", ErrNoWatchTrigger
	}

	seriesName := strings.TrimSpace(strings.SplitN(strings.SplitN(pageTitle, "—", 2)[0], "(", 2)[0])
	if seriesName == "" {
		return "", ErrNoWatchTrigger
	}

	query := seriesName + " bangla dubbed"
	log.Printf("[resolve] no episode triggers, trying dubbed fallback query %q", query)

	hit, err := s.firstSearchHit(ctx, query)
	if err != nil {
		return "", err
	}
	if hit == "" || hit == landingURL {
		return "", ErrNoWatchTrigger
	}
	return s.resolveMovieLanding(ctx, hit)
}

// fetchPage wraps a landing/listing fetch, mapping non-200 to an upstream
// failure the caller may swallow.
func (s *Service) fetchPage(ctx context.Context, pageURL string, timeout time.Duration) (*fetch.Response, error) {
	resp, err := s.fetcher.Fetch(ctx, pageURL, fetch.Options{
		Timeout: timeout,
		Referer: baseHost(pageURL),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstreamFetch, pageURL, resp.Status)
	}
	return resp, nil
}

// seasonScope narrows the document to the first div/section/li/ul whose text
// mentions the requested season. Falls back to the whole document.
func seasonScope(doc *goquery.Document, season int) (*goquery.Selection, bool) {
	labels := []string{
		fmt.Sprintf("season %d", season),
		fmt.Sprintf("s%d", season),
	}
	var scope *goquery.Selection
	doc.Find("div, section, li, ul").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		text := strings.ToLower(node.Text())
		for _, label := range labels {
			if strings.Contains(text, label) {
				scope = node
				return false
			}
		}
		return true
	})
	if scope == nil {
		return doc.Selection, false
	}
	return scope, true
}

// collectEpisodeTriggers gathers gate triggers whose surrounding text
// mentions the requested episode, weighted by language preference.
func collectEpisodeTriggers(scope *goquery.Selection, episode int) []watchTrigger {
	episodeTokens := []string{
		fmt.Sprintf("e%d", episode),
		fmt.Sprintf("ep %d", episode),
		fmt.Sprintf("episode %d", episode),
		fmt.Sprintf("ep%d", episode),
	}

	var triggers []watchTrigger
	scope.Find("a, button").Each(func(_ int, el *goquery.Selection) {
		gateURL := gateTarget(el)
		if gateURL == "" {
			return
		}

		blockText := strings.ToLower(strings.Join(strings.Fields(el.Text()+" "+el.Parent().Text()), " "))

		matched := false
		for _, tok := range episodeTokens {
			if strings.Contains(blockText, tok) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		weight := len(langPriority)
		for i, lang := range langPriority {
			if strings.Contains(blockText, lang) {
				weight = i
				break
			}
		}

		triggers = append(triggers, watchTrigger{gateURL: gateURL, langWeight: weight})
	})
	return triggers
}

// firstGateTrigger returns the first gate target on the page, anchors before
// inline handlers within each element.
func firstGateTrigger(scope *goquery.Selection) string {
	var gateURL string
	scope.Find("a, button").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if target := gateTarget(el); target != "" {
			gateURL = target
			return false
		}
		return true
	})
	return gateURL
}

// gateTarget extracts a gate URL from an element's href or onclick.
func gateTarget(el *goquery.Selection) string {
	if href, ok := el.Attr("href"); ok && strings.Contains(href, gatePathMarker) {
		return href
	}
	if onclick, ok := el.Attr("onclick"); ok && strings.Contains(onclick, gatePathMarker) {
		if m := reOnclickGate.FindString(onclick); m != "" {
			return m
		}
	}
	return ""
}

// looksLikeStreamURL reports whether a URL is structurally a stream or
// per-episode page, used when the gate hop redirected us all the way there.
func looksLikeStreamURL(u string) bool {
	return strings.Contains(u, "/watch/") || strings.Contains(u, "/episode/")
}

func absoluteAgainst(target, ref string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return baseHost(ref) + "/" + strings.TrimLeft(target, "/")
}

// baseHost returns scheme://host of a URL, or the input when unparsable.
func baseHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(rawURL, "/")
	}
	return u.Scheme + "://" + u.Host
}
