package downloader

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Extractor reads the image list off a rendered episode page
type Extractor struct {
	site       SitePlugin
	navTimeout time.Duration
}

// NewExtractor creates an extractor; navTimeout bounds the page load
func NewExtractor(site SitePlugin, navTimeout time.Duration) *Extractor {
	return &Extractor{site: site, navTimeout: navTimeout}
}

// ExtractImages loads episodeURL and returns the qualifying image URLs in
// document order. An empty result is not an error here; the caller decides.
func (e *Extractor) ExtractImages(ctx context.Context, page Page, episodeURL string) ([]string, error) {
	method := e.site.GetImageExtractionMethod()

	navCtx, cancel := context.WithTimeout(ctx, e.navTimeout)
	defer cancel()

	if err := page.Navigate(navCtx, episodeURL); err != nil {
		return nil, newError(KindInternal, "extract", "Failed to load the episode", err)
	}

	if method.WaitSelector != "" {
		if err := page.WaitVisible(navCtx, method.WaitSelector); err != nil {
			return nil, newError(KindInternal, "extract", "Episode page did not render", err)
		}
	}

	html, err := page.HTML(navCtx)
	if err != nil {
		return nil, newError(KindInternal, "extract", "Failed to read the episode page", err)
	}

	urls, err := ParseImageURLs(html, method)
	if err != nil {
		return nil, newError(KindInternal, "extract", "Failed to parse the episode page", err)
	}

	log.Printf("[Extractor] Number of images: %d", len(urls))
	return urls, nil
}

// ParseImageURLs selects method.Selector in html and returns the values of
// method.Attribute that contain method.Marker, in document order.
func ParseImageURLs(html string, method *ImageExtractionMethod) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var imageURLs []string
	doc.Find(method.Selector).Each(func(i int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr(method.Attribute, ""))
		if src == "" {
			return
		}
		if method.Marker != "" && !strings.Contains(src, method.Marker) {
			return
		}
		imageURLs = append(imageURLs, src)
	})

	return imageURLs, nil
}
