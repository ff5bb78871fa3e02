package downloader

import (
	"context"
	"log"
	"net/http"

	"github.com/gocolly/colly"

	"webtoondl/models"
)

// CatalogSearch finds titles through the static search page with colly.
// It needs no browser; the page argument of Locate is ignored.
type CatalogSearch struct {
	site   SitePlugin
	client *HTTPClient
}

var _ EpisodeFinder = (*CatalogSearch)(nil)

// NewCatalogSearch creates an http search locator sharing client's headers
func NewCatalogSearch(site SitePlugin, client *HTTPClient) *CatalogSearch {
	return &CatalogSearch{site: site, client: client}
}

// Locate fetches the search page and resolves the first result link with
// the same rules as the browser search.
func (c *CatalogSearch) Locate(ctx context.Context, _ Page, title string, episode int) (models.EpisodeReference, error) {
	method := c.site.GetSearchMethod()
	if method.SearchURL == nil {
		return models.EpisodeReference{}, newError(KindInternal, "locate", "Site has no search page", nil)
	}

	collector := c.client.CreateCollyCollector()

	var (
		href      string
		status    int
		scrapeErr error
	)
	collector.OnHTML(method.ResultLinkSelector, func(e *colly.HTMLElement) {
		if href != "" {
			return
		}
		if link := e.Attr("href"); link != "" {
			href = e.Request.AbsoluteURL(link)
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		scrapeErr = err
		if ce := challengeFromColly(r); ce != nil {
			scrapeErr = ce
		}
	})

	searchURL := method.SearchURL(title)
	log.Printf("[Catalog] Searching %s", searchURL)

	if err := ctx.Err(); err != nil {
		return models.EpisodeReference{}, newError(KindInternal, "locate", "Search interrupted", err)
	}
	if err := collector.Visit(searchURL); err != nil && scrapeErr == nil {
		scrapeErr = err
	}

	if scrapeErr != nil {
		if ce, ok := IsChallenge(scrapeErr); ok {
			log.Printf("[Catalog] Search page blocked: %v", ce.Indicators)
			return models.EpisodeReference{}, newError(KindInternal, "locate", "The catalog blocked the search with an anti-bot challenge", scrapeErr)
		}
		if status == http.StatusNotFound {
			return models.EpisodeReference{}, newError(KindNotFound, "locate", "Couldn't find the manga", scrapeErr)
		}
		return models.EpisodeReference{}, newError(KindInternal, "locate", "Search failed", scrapeErr)
	}

	return resolveReference(c.site, href, episode)
}
