package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/gocolly/colly"
	"golang.org/x/net/publicsuffix"
)

// Only the head of an error page is inspected for challenge markers
const maxChallengeBody = 64 << 10

// ClientOptions configures the image HTTP client
type ClientOptions struct {
	UserAgent      string
	Referer        string
	AcceptLanguage string
	Timeout        time.Duration
}

// HTTPClient fetches images with browser-like headers. The image CDN rejects
// requests without a browser User-Agent and a Referer from the catalog site.
type HTTPClient struct {
	opts       ClientOptions
	jar        *cookiejar.Jar
	httpClient *http.Client
}

// NewHTTPClient creates a client with its own cookie jar
func NewHTTPClient(opts ClientOptions) (*HTTPClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &HTTPClient{
		opts: opts,
		jar:  jar,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
		},
	}, nil
}

// FetchImage performs a single GET for url. There is no retry: a transport
// error, a non-200 status or an empty body is returned as an error.
func (c *HTTPClient) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.applyHeaders(req.Header)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBody))
		if ok, indicators := DetectChallenge(resp.StatusCode, resp.Header, snippet); ok {
			return nil, &ChallengeError{URL: url, StatusCode: resp.StatusCode, Indicators: indicators}
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	decompressed, wasCompressed, err := DecompressBody(body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress response: %w", err)
	}
	if wasCompressed {
		log.Printf("[HTTPClient] ✓ Decompressed response: %d → %d bytes", len(body), len(decompressed))
	}

	if len(decompressed) == 0 {
		return nil, errors.New("empty response body")
	}
	return decompressed, nil
}

func (c *HTTPClient) applyHeaders(h http.Header) {
	if c.opts.UserAgent != "" {
		h.Set("User-Agent", c.opts.UserAgent)
	}
	if c.opts.Referer != "" {
		h.Set("Referer", c.opts.Referer)
	}
	if c.opts.AcceptLanguage != "" {
		h.Set("Accept-Language", c.opts.AcceptLanguage)
	}
	h.Set("Accept-Encoding", acceptEncoding)
}

// CreateCollyCollector creates a Colly collector that shares this client's
// headers and cookie jar
func (c *HTTPClient) CreateCollyCollector() *colly.Collector {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(c.opts.Timeout)
	collector.SetCookieJar(c.jar)
	collector.UserAgent = c.opts.UserAgent

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if c.opts.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", c.opts.AcceptLanguage)
		}
		r.Headers.Set("Accept-Encoding", acceptEncoding)
	})

	// Decoding happens here so OnHTML callbacks see plain HTML
	collector.OnResponse(func(r *colly.Response) {
		body, _, err := DecompressBody(r.Body, r.Headers.Get("Content-Encoding"))
		if err != nil {
			log.Printf("[HTTPClient] Failed to decompress: %v", err)
			return
		}
		r.Body = body
	})

	return collector
}
