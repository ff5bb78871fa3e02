package downloader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"webtoondl/models"
)

// Page is a single browser tab owned by one pipeline run. Every call is
// bounded by ctx; implementations must make Close safe to call more than once.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	PressEnter(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, js string, res any) error
	HTML(ctx context.Context) (string, error)
	SetHeaders(ctx context.Context, headers map[string]string) error
	Close() error
}

// Launcher starts a fresh browser session. Sessions are never pooled.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// SearchMethod describes how to find a title on the catalog
type SearchMethod struct {
	// HomeURL is where the browser search starts
	HomeURL string

	// Selectors used by the browser search, in the order they are driven
	ButtonSelector  string
	InputSelector   string
	ResultsSelector string

	// ResultLinkSelector picks the first result's anchor
	ResultLinkSelector string

	// SearchURL builds the static search page URL used by the http search mode
	SearchURL func(title string) string
}

// ImageExtractionMethod defines how to extract images from an episode page
type ImageExtractionMethod struct {
	// CSS selector + attribute holding the real image source
	Selector  string
	Attribute string // e.g. "data-url"

	// Marker must be contained in a value for it to be kept
	Marker string

	// WaitSelector: CSS selector to wait for before extraction (optional)
	WaitSelector string
}

// SitePlugin defines the interface that a catalog site must implement.
// Sites provide ONLY selectors and URL rules - the downloader handles ALL execution.
type SitePlugin interface {
	// GetSiteName returns the site identifier (e.g., "webtoons")
	GetSiteName() string

	// GetDomain returns the site domain (e.g., "www.webtoons.com")
	GetDomain() string

	// Referer is sent with every image request; the image CDN rejects requests without it
	Referer() string

	// Headers are extra headers the browser sends on every navigation
	Headers() map[string]string

	GetSearchMethod() *SearchMethod
	GetImageExtractionMethod() *ImageExtractionMethod

	// ParseTitleURL derives genre, slug and title id from a search result link.
	// Missing fields are returned empty; the caller validates.
	ParseTitleURL(href string) models.EpisodeReference

	// EpisodeURL builds the canonical viewer URL for ref
	EpisodeURL(ref models.EpisodeReference) string
}

// SiteFactory builds a site plugin for the given base URL (empty = site default).
type SiteFactory func(baseURL string) SitePlugin

var (
	sitesMu         sync.RWMutex
	registeredSites = make(map[string]SiteFactory)
)

// RegisterSite registers a site plugin factory.
// This should be called during initialization by each site package
func RegisterSite(siteName string, factory SiteFactory) {
	sitesMu.Lock()
	defer sitesMu.Unlock()
	registeredSites[siteName] = factory
}

// LookupSite builds the registered site plugin for siteName
func LookupSite(siteName, baseURL string) (SitePlugin, error) {
	sitesMu.RLock()
	factory, exists := registeredSites[siteName]
	sitesMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("site not supported: %s", siteName)
	}
	return factory(baseURL), nil
}

// RegisteredSites lists the registered site names, sorted.
func RegisteredSites() []string {
	sitesMu.RLock()
	defer sitesMu.RUnlock()

	names := make([]string, 0, len(registeredSites))
	for name := range registeredSites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
