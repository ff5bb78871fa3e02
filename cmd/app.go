package cmd

import (
	"fmt"
	"log"

	"webtoondl/config"
	"webtoondl/downloader"
	"webtoondl/packager"
)

// newManager wires the pipeline from the configuration. honorCancel lets
// the caller's context abort a run in progress.
func newManager(cfg config.Config, honorCancel bool) (*downloader.Manager, error) {
	site, err := downloader.LookupSite(cfg.Site.Name, cfg.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, downloader.RegisteredSites())
	}

	referer := cfg.Fetch.Referer
	if referer == "" {
		referer = site.Referer()
	}

	client, err := downloader.NewHTTPClient(downloader.ClientOptions{
		UserAgent:      cfg.Fetch.UserAgent,
		Referer:        referer,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		Timeout:        cfg.Fetch.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	var finder downloader.EpisodeFinder
	if cfg.Site.SearchMode == config.SearchModeHTTP {
		finder = downloader.NewCatalogSearch(site, client)
	}

	manager, err := downloader.NewManager(downloader.DownloadConfig{
		Site: site,
		Launcher: downloader.NewChromeLauncher(downloader.BrowserOptions{
			Headless:  cfg.Browser.Headless,
			NoSandbox: cfg.Browser.NoSandbox,
			ExecPath:  cfg.Browser.ExecPath,
			UserAgent: cfg.Browser.UserAgent,
		}),
		Finder:  finder,
		Fetcher: downloader.NewFetcher(client, cfg.Fetch.Workers, cfg.Fetch.Interval()),
		Gate:    downloader.NewGate(cfg.Server.MaxConcurrent),
		Tracker: downloader.NewTracker(cfg.Server.TaskRetention()),
		Packaging: packager.Options{
			Dir:         cfg.Output.Dir,
			MaxWidth:    cfg.Output.MaxPageWidth,
			JPEGQuality: cfg.Output.JPEGQuality,
		},
		AcceptLanguage:    cfg.Browser.AcceptLanguage,
		NavigationTimeout: cfg.Browser.NavigationTimeout(),
		WaitTimeout:       cfg.Browser.WaitTimeout(),
		HonorCancel:       honorCancel,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Config] Site %s (%s), search mode %s, %d fetch worker(s), max %d concurrent download(s)",
		site.GetSiteName(), site.GetDomain(), cfg.Site.SearchMode, cfg.Fetch.Workers, cfg.Server.MaxConcurrent)
	return manager, nil
}
