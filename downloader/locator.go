package downloader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"webtoondl/models"
)

// EpisodeFinder resolves a title and episode number to an episode reference.
// Implementations that do not drive the browser ignore page.
type EpisodeFinder interface {
	Locate(ctx context.Context, page Page, title string, episode int) (models.EpisodeReference, error)
}

// Locator searches the catalog through the browser session
type Locator struct {
	site        SitePlugin
	navTimeout  time.Duration
	waitTimeout time.Duration
}

var _ EpisodeFinder = (*Locator)(nil)

// NewLocator creates a browser-driven locator. navTimeout bounds the home
// page load, waitTimeout bounds each wait for a search element.
func NewLocator(site SitePlugin, navTimeout, waitTimeout time.Duration) *Locator {
	return &Locator{site: site, navTimeout: navTimeout, waitTimeout: waitTimeout}
}

// Locate runs the catalog search and returns the first result as an episode
// reference. A timed-out wait or an unusable link is NotFound. Nothing is retried.
func (l *Locator) Locate(ctx context.Context, page Page, title string, episode int) (models.EpisodeReference, error) {
	method := l.site.GetSearchMethod()

	navCtx, cancel := context.WithTimeout(ctx, l.navTimeout)
	err := page.Navigate(navCtx, method.HomeURL)
	cancel()
	if err != nil {
		return models.EpisodeReference{}, newError(KindInternal, "locate", "Failed to load the catalog", err)
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"open search", func(ctx context.Context) error { return page.Click(ctx, method.ButtonSelector) }},
		{"wait for search input", func(ctx context.Context) error { return page.WaitVisible(ctx, method.InputSelector) }},
		{"type title", func(ctx context.Context) error { return page.Type(ctx, method.InputSelector, title) }},
		{"submit search", func(ctx context.Context) error { return page.PressEnter(ctx, method.InputSelector) }},
		{"wait for results", func(ctx context.Context) error { return page.WaitVisible(ctx, method.ResultsSelector) }},
	}
	for _, step := range steps {
		if err := l.bounded(ctx, step.run); err != nil {
			log.Printf("[Locator] ✗ %s: %v", step.name, err)
			return models.EpisodeReference{}, searchError(step.name, err)
		}
	}

	var href string
	js := fmt.Sprintf(`(() => { const a = document.querySelector(%q); return a ? a.href : ""; })()`, method.ResultLinkSelector)
	if err := l.bounded(ctx, func(ctx context.Context) error { return page.Evaluate(ctx, js, &href) }); err != nil {
		return models.EpisodeReference{}, searchError("read first result", err)
	}

	return resolveReference(l.site, href, episode)
}

func (l *Locator) bounded(ctx context.Context, fn func(context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()
	return fn(waitCtx)
}

// searchError maps a failed search step: timeouts mean the element never
// showed up, which is NotFound. Anything else is Internal.
func searchError(step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindNotFound, "locate", "Couldn't find the manga", fmt.Errorf("%s: %w", step, err))
	}
	return newError(KindInternal, "locate", "Search failed", fmt.Errorf("%s: %w", step, err))
}

// resolveReference turns the first result link into a validated reference
// with its canonical episode URL.
func resolveReference(site SitePlugin, href string, episode int) (models.EpisodeReference, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		log.Printf("[Locator] ✗ No search results")
		return models.EpisodeReference{}, newError(KindNotFound, "locate", "Couldn't find the manga", nil)
	}

	ref := site.ParseTitleURL(href)
	ref.Episode = episode
	if !ref.Valid() {
		log.Printf("[Locator] ✗ Unusable result link: %s", href)
		return models.EpisodeReference{}, newError(KindNotFound, "locate", "Couldn't find the episode URL", fmt.Errorf("unusable link %q", href))
	}

	ref.URL = site.EpisodeURL(ref)
	log.Printf("[Locator] ✓ Episode URL: %s", ref.URL)
	return ref, nil
}
