package sites

import (
	"webtoondl/downloader"
)

// init() is called automatically when the package is imported
// This registers all site plugins with the downloader
func init() {
	downloader.RegisterSite("webtoons", func(baseURL string) downloader.SitePlugin {
		return NewWebtoonsSite(baseURL)
	})

	// Add new sites here in the future:
	// downloader.RegisterSite("newsite", func(baseURL string) downloader.SitePlugin { ... })
}
