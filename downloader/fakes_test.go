package downloader

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"webtoondl/models"
)

// fakeSite mirrors the webtoons rules against an arbitrary base URL
type fakeSite struct {
	base string
}

var fakeTitleNoRe = regexp.MustCompile(`title_no=(\d+)`)

func (s *fakeSite) GetSiteName() string { return "fake" }
func (s *fakeSite) GetDomain() string { return "catalog.test" }
func (s *fakeSite) Referer() string { return s.base + "/" }
func (s *fakeSite) Headers() map[string]string { return map[string]string{"X-Site": "fake"} }

func (s *fakeSite) GetSearchMethod() *SearchMethod {
	return &SearchMethod{
		HomeURL:            s.base + "/",
		ButtonSelector:     ".btn_search._btnSearch",
		InputSelector:      ".input_search._txtKeyword",
		ResultsSelector:    ".card_lst",
		ResultLinkSelector: ".card_lst li a",
		SearchURL: func(title string) string {
			return s.base + "/search?keyword=" + strings.ReplaceAll(title, " ", "+")
		},
	}
}

func (s *fakeSite) GetImageExtractionMethod() *ImageExtractionMethod {
	return &ImageExtractionMethod{
		Selector:  "#_imageList img._images",
		Attribute: "data-url",
		Marker:    "webtoon",
	}
}

func (s *fakeSite) ParseTitleURL(href string) models.EpisodeReference {
	var ref models.EpisodeReference
	if m := fakeTitleNoRe.FindStringSubmatch(href); m != nil {
		ref.TitleID = m[1]
	}
	pathRe := regexp.MustCompile(`^` + regexp.QuoteMeta(s.base) + `/([^/?#]+)/([^/?#]+)`)
	if m := pathRe.FindStringSubmatch(href); m != nil {
		ref.Genre, ref.Slug = m[1], m[2]
	}
	return ref
}

func (s *fakeSite) EpisodeURL(ref models.EpisodeReference) string {
	return fmt.Sprintf("%s/%s/%s/episode-%d/viewer?title_no=%s&episode_no=%d",
		s.base, ref.Genre, ref.Slug, ref.Episode, ref.TitleID, ref.Episode)
}

// fakePage scripts a browser tab
type fakePage struct {
	mu sync.Mutex

	firstResult string            // href returned for the first search result
	episodeHTML string            // rendered episode page
	missing     map[string]bool   // selectors that never become visible
	failNav     map[string]error  // navigation errors by URL prefix
	headers     map[string]string // last SetHeaders value

	visited []string
	typed   []string
	closes  atomic.Int32
}

func newFakePage(firstResult, episodeHTML string) *fakePage {
	return &fakePage{
		firstResult: firstResult,
		episodeHTML: episodeHTML,
		missing:     map[string]bool{},
		failNav:     map[string]error{},
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	for prefix, err := range p.failNav {
		if strings.HasPrefix(url, prefix) {
			return err
		}
	}
	return ctx.Err()
}

func (p *fakePage) waitFor(ctx context.Context, selector string) error {
	p.mu.Lock()
	missing := p.missing[selector]
	p.mu.Unlock()
	if missing {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	return p.waitFor(ctx, selector)
}

func (p *fakePage) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	p.typed = append(p.typed, text)
	p.mu.Unlock()
	return p.waitFor(ctx, selector)
}

func (p *fakePage) PressEnter(ctx context.Context, selector string) error {
	return p.waitFor(ctx, selector)
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	return p.waitFor(ctx, selector)
}

func (p *fakePage) Evaluate(ctx context.Context, js string, res any) error {
	out, ok := res.(*string)
	if !ok {
		return fmt.Errorf("unexpected result type %T", res)
	}
	*out = p.firstResult
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	return p.episodeHTML, nil
}

func (p *fakePage) SetHeaders(ctx context.Context, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headers = headers
	return nil
}

func (p *fakePage) Close() error {
	p.closes.Add(1)
	return nil
}

// fakeLauncher hands out pages built by newPage and counts launches
type fakeLauncher struct {
	newPage  func() *fakePage
	launches atomic.Int32
	err      error

	// When set, Launch blocks until release is closed
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	pages []*fakePage
}

func (l *fakeLauncher) Launch(ctx context.Context) (Page, error) {
	l.launches.Add(1)
	if l.started != nil {
		l.started <- struct{}{}
	}
	if l.release != nil {
		<-l.release
	}
	if l.err != nil {
		return nil, l.err
	}

	page := l.newPage()
	l.mu.Lock()
	l.pages = append(l.pages, page)
	l.mu.Unlock()
	return page, nil
}

func (l *fakeLauncher) lastPage() *fakePage {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pages) == 0 {
		return nil
	}
	return l.pages[len(l.pages)-1]
}

// episodeHTML renders an episode page with the given data-url values
func episodeHTML(urls ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="_imageList">`)
	for _, u := range urls {
		fmt.Fprintf(&b, `<img class="_images" src="bg_transparency.png" data-url="%s">`, u)
	}
	b.WriteString(`</div><img class="_images" data-url="https://webtoon-phinf.test/outside.jpg"></body></html>`)
	return b.String()
}
