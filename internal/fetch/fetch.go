// Package fetch is the HTTP collaborator used by every hop of the resolution
// pipeline: a blocking GET with browser headers, redirect following and a
// direct → proxy-rotation fallback for hosts that 403 datacenter traffic.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// Response is the outcome of a successful fetch.
type Response struct {
	Status   int
	Body     string
	FinalURL string // URL after redirects, needed by the gate resolver
}

// Options tune a single fetch.
type Options struct {
	Timeout time.Duration
	Referer string
}

// Fetcher is the capability consumed by the resolution core.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts Options) (*Response, error)
}

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Pages shorter than this are interstitial block pages, not content.
	minUsefulBody = 1000

	maxProxies      = 50
	proxiesPerFetch = 3

	proxyListTTL = 5 * time.Minute
)

// Client implements Fetcher with the fallback policy direct → proxy rotation
// → fail. It is safe for concurrent use.
type Client struct {
	httpc          *http.Client
	proxySourceURL string
	defaultTimeout time.Duration

	proxyMu        sync.Mutex
	proxyList      []string
	proxyFetchedAt time.Time
}

// NewClient constructs a fetch client. proxySourceURL may be empty to disable
// the proxy fallback entirely.
func NewClient(proxySourceURL string, defaultTimeout time.Duration) *Client {
	if defaultTimeout <= 0 {
		defaultTimeout = 8 * time.Second
	}
	return &Client{
		httpc:          &http.Client{},
		proxySourceURL: proxySourceURL,
		defaultTimeout: defaultTimeout,
	}
}

// Fetch performs a GET with the configured fallback policy. A non-2xx status
// is returned as a Response, not an error; transport failures are errors.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	resp, err := retry.DoWithData(func() (*Response, error) {
		return c.doOnce(ctx, c.httpc, rawURL, opts.Referer, timeout)
	},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)

	// Non-403 statuses with a real body are the host's answer; the caller
	// decides what a 404 or 500 means for its hop. A 403 or a stub-sized
	// body means the edge blocked us, so rotate proxies.
	if err == nil && resp.Status != http.StatusForbidden && len(resp.Body) >= minUsefulBody {
		return resp, nil
	}
	log.Printf("[fetch] direct request to %s blocked (err=%v), trying proxy fallback", rawURL, err)

	proxied, proxyErr := c.fetchViaProxies(ctx, rawURL, opts.Referer, timeout)
	if proxyErr == nil {
		return proxied, nil
	}

	if err != nil {
		return nil, fmt.Errorf("direct fetch failed: %w", err)
	}
	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, httpc *http.Client, rawURL, referer string, timeout time.Duration) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	addBrowserHeaders(req)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		Status:   resp.StatusCode,
		Body:     string(body),
		FinalURL: finalURL,
	}, nil
}

func (c *Client) fetchViaProxies(ctx context.Context, rawURL, referer string, timeout time.Duration) (*Response, error) {
	proxies := c.proxyCandidates(ctx)
	if len(proxies) == 0 {
		return nil, fmt.Errorf("no proxies available")
	}

	// Proxies only speak plain HTTP to the upstream.
	proxiedURL := strings.Replace(rawURL, "https://", "http://", 1)

	for _, proxyAddr := range proxies {
		proxyURL, err := url.Parse(ensureScheme(proxyAddr))
		if err != nil {
			continue
		}
		httpc := &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}

		resp, err := c.doOnce(ctx, httpc, proxiedURL, referer, timeout)
		if err != nil {
			log.Printf("[fetch] proxy %s failed: %v", proxyAddr, err)
			continue
		}
		if resp.Status == http.StatusOK && len(resp.Body) >= minUsefulBody {
			log.Printf("[fetch] proxy %s succeeded for %s", proxyAddr, rawURL)
			return resp, nil
		}
	}

	return nil, fmt.Errorf("all proxy attempts failed for %s", rawURL)
}

// proxyCandidates returns up to proxiesPerFetch random HTTP proxies, refreshing
// the upstream list at most once per proxyListTTL.
func (c *Client) proxyCandidates(ctx context.Context) []string {
	if c.proxySourceURL == "" {
		return nil
	}

	c.proxyMu.Lock()
	defer c.proxyMu.Unlock()

	if time.Since(c.proxyFetchedAt) > proxyListTTL || len(c.proxyList) == 0 {
		list, err := c.loadProxyList(ctx)
		if err != nil {
			log.Printf("[fetch] proxy list fetch failed: %v", err)
		} else {
			c.proxyList = list
			c.proxyFetchedAt = time.Now()
		}
	}
	if len(c.proxyList) == 0 {
		return nil
	}

	n := proxiesPerFetch
	if n > len(c.proxyList) {
		n = len(c.proxyList)
	}
	picks := rand.Perm(len(c.proxyList))[:n]
	out := make([]string, 0, n)
	for _, i := range picks {
		out = append(out, c.proxyList[i])
	}
	return out
}

func (c *Client) loadProxyList(ctx context.Context) ([]string, error) {
	resp, err := c.doOnce(ctx, c.httpc, c.proxySourceURL, "", 10*time.Second)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("proxy source returned %d", resp.Status)
	}

	var proxies []string
	for _, line := range strings.Split(resp.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "socks") {
			continue
		}
		proxies = append(proxies, line)
		if len(proxies) >= maxProxies {
			break
		}
	}
	return proxies, nil
}

func ensureScheme(proxyAddr string) string {
	if strings.Contains(proxyAddr, "://") {
		return proxyAddr
	}
	return "http://" + proxyAddr
}

func addBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Accept-Encoding is left to the transport: setting it by hand turns
	// off net/http's transparent gzip decoding and callers would see raw
	// compressed bytes.
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "max-age=0")
}
