package downloader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"webtoondl/models"
	"webtoondl/packager"
	"webtoondl/validation"
)

// Progress budget: fetching fills the first half, packaging the second
const (
	fetchShare   = 50.0
	packageShare = 50.0
)

// DownloadConfig wires the collaborators of a Manager
type DownloadConfig struct {
	Site     SitePlugin
	Launcher Launcher

	// Finder locates the episode; nil means the browser search
	Finder  EpisodeFinder
	Fetcher *Fetcher

	Gate    *Gate
	Tracker *Tracker

	Packaging      packager.Options
	AcceptLanguage string

	NavigationTimeout time.Duration
	WaitTimeout       time.Duration

	// HonorCancel lets the caller's ctx abort an accepted run. The HTTP
	// service leaves it off so a dropped client never cuts a run short.
	HonorCancel bool
}

// Result is the outcome of one accepted request. Exactly one of Artifact and
// Images is set, depending on the format.
type Result struct {
	Request   models.Request
	Reference models.EpisodeReference
	Artifact  *packager.Artifact
	Images    []string
}

// Cleanup removes the generated document, if any
func (r *Result) Cleanup() {
	if r == nil || r.Artifact == nil {
		return
	}
	if err := os.Remove(r.Artifact.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Downloader] Error deleting the file %s: %v", r.Artifact.Path, err)
		return
	}
	log.Printf("[Downloader] Deleted %s", r.Artifact.Path)
}

// Manager orchestrates one pipeline run per accepted request:
// locate → extract → fetch → package, with one browser session per run.
type Manager struct {
	config    DownloadConfig
	finder    EpisodeFinder
	extractor *Extractor
}

// NewManager creates a new download manager
func NewManager(config DownloadConfig) (*Manager, error) {
	if config.Site == nil {
		return nil, errors.New("download config: site is required")
	}
	if config.Launcher == nil {
		return nil, errors.New("download config: launcher is required")
	}
	if config.Fetcher == nil {
		return nil, errors.New("download config: fetcher is required")
	}
	if config.Gate == nil {
		config.Gate = NewGate(1)
	}
	if config.Tracker == nil {
		config.Tracker = NewTracker(5 * time.Minute)
	}
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = 30 * time.Second
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = 5 * time.Second
	}

	finder := config.Finder
	if finder == nil {
		finder = NewLocator(config.Site, config.NavigationTimeout, config.WaitTimeout)
	}

	return &Manager{
		config:    config,
		finder:    finder,
		extractor: NewExtractor(config.Site, config.NavigationTimeout),
	}, nil
}

// Gate exposes the concurrency gate
func (m *Manager) Gate() *Gate { return m.config.Gate }

// Tracker exposes the per-request progress tracker
func (m *Manager) Tracker() *Tracker { return m.config.Tracker }

// Download runs the whole pipeline for req. Requests over the ceiling are
// rejected with ErrBusy before any browser is started. Once accepted, the run
// is detached from ctx cancellation unless HonorCancel is set.
func (m *Manager) Download(ctx context.Context, req models.Request) (*Result, error) {
	if req.Format == "" {
		req.Format = models.FormatPDF
	}
	if err := validation.ValidateRequest(req); err != nil {
		return nil, newError(KindInvalidRequest, "validate", err.Error(), nil)
	}
	if !packager.Supported(req.Format) {
		return nil, newError(KindInvalidRequest, "validate", fmt.Sprintf("Unsupported format %q (supported: %s)", req.Format, strings.Join(packager.Formats(), ", ")), nil)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if !m.config.Gate.TryAcquire() {
		log.Printf("[Downloader] Rejected %s: %d/%d downloads active", req.ID, m.config.Gate.Active(), m.config.Gate.Ceiling())
		return nil, newError(KindBusy, "admit", "Server is busy, try again later", nil)
	}
	defer m.config.Gate.Release()

	if err := m.config.Tracker.Start(req); err != nil {
		return nil, newError(KindInvalidRequest, "admit", "Request id is already in use", err)
	}

	log.Printf("[Downloader] Starting %s: %q episode %d (%s) on %s", req.ID, req.Title, req.Episode, req.Format, m.config.Site.GetDomain())

	runCtx := context.WithoutCancel(ctx)
	if m.config.HonorCancel {
		runCtx = ctx
	}

	result, err := m.run(runCtx, req)
	if err != nil && m.config.HonorCancel && ctx.Err() != nil {
		log.Printf("[Downloader] Cancelled %s: %v", req.ID, err)
		err = newError(KindInternal, "cancel", "Download cancelled", ctx.Err())
	}
	if err != nil {
		m.config.Tracker.Fail(req.ID, err)
		return nil, err
	}

	m.config.Tracker.Complete(req.ID)
	log.Printf("[Downloader] ✓ Everything is done for %s", req.ID)
	return result, nil
}

func (m *Manager) run(ctx context.Context, req models.Request) (*Result, error) {
	page, err := m.config.Launcher.Launch(ctx)
	if err != nil {
		return nil, newError(KindInternal, "launch", "Failed to open the browser", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Printf("[Downloader] Error closing the browser: %v", err)
		}
	}()

	if err := page.SetHeaders(ctx, m.headers()); err != nil {
		return nil, newError(KindInternal, "launch", "Failed to configure the browser", err)
	}

	ref, err := m.finder.Locate(ctx, page, req.Title, req.Episode)
	if err != nil {
		return nil, err
	}
	m.config.Tracker.SetProgress(req.ID, 0, "Found the episode")

	urls, err := m.extractor.ExtractImages(ctx, page, ref.URL)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, newError(KindNotFound, "extract", "No images found in the episode", nil)
	}

	result := &Result{Request: req, Reference: ref}

	fetchProgress := func(done, total int) {
		m.config.Tracker.SetProgress(req.ID, float64(done)/float64(total)*fetchShare,
			fmt.Sprintf("Downloaded image %d of %d", done, total))
	}

	if req.Format.IsDirect() {
		images, err := m.config.Fetcher.FetchEncoded(ctx, urls, fetchProgress)
		if err != nil {
			return nil, err
		}
		result.Images = images
		return result, nil
	}

	buffers, err := m.config.Fetcher.FetchAll(ctx, urls, fetchProgress)
	if err != nil {
		return nil, err
	}

	builder, err := packager.New(req.Format, m.config.Packaging)
	if err != nil {
		return nil, newError(KindInternal, "package", "Unsupported format", err)
	}

	meta := packager.Meta{Title: req.Title, Episode: req.Episode, RequestID: req.ID}
	artifact, err := builder.Build(buffers, meta, func(done, total int) {
		m.config.Tracker.SetProgress(req.ID, fetchShare+float64(done)/float64(total)*packageShare,
			fmt.Sprintf("Added page %d of %d", done, total))
	})
	if err != nil {
		return nil, newError(KindInternal, "package", "Failed to build the document", err)
	}

	result.Artifact = artifact
	return result, nil
}

func (m *Manager) headers() map[string]string {
	headers := make(map[string]string)
	for k, v := range m.config.Site.Headers() {
		headers[k] = v
	}
	if m.config.AcceptLanguage != "" {
		headers["Accept-Language"] = m.config.AcceptLanguage
	}
	return headers
}
