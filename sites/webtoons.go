package sites

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"webtoondl/downloader"
	"webtoondl/models"
)

// DefaultWebtoonsBaseURL is the English catalog root
const DefaultWebtoonsBaseURL = "https://www.webtoons.com/en"

var webtoonsTitleNoRe = regexp.MustCompile(`title_no=(\d+)`)

// WebtoonsSite implements the SitePlugin interface for webtoons.com
type WebtoonsSite struct {
	baseURL string
	pathRe  *regexp.Regexp
}

// Ensure WebtoonsSite implements SitePlugin
var _ downloader.SitePlugin = (*WebtoonsSite)(nil)

// NewWebtoonsSite creates the plugin rooted at baseURL (empty = DefaultWebtoonsBaseURL).
// Tests point baseURL at a local server.
func NewWebtoonsSite(baseURL string) *WebtoonsSite {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultWebtoonsBaseURL
	}
	return &WebtoonsSite{
		baseURL: baseURL,
		pathRe:  regexp.MustCompile(`^` + regexp.QuoteMeta(baseURL) + `/([^/?#]+)/([^/?#]+)`),
	}
}

// GetSiteName returns the site identifier
func (s *WebtoonsSite) GetSiteName() string {
	return "webtoons"
}

// GetDomain returns the site domain
func (s *WebtoonsSite) GetDomain() string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Referer is the site root; the image CDN refuses requests without it
func (s *WebtoonsSite) Referer() string {
	u, err := url.Parse(s.baseURL)
	if err != nil || u.Host == "" {
		return s.baseURL + "/"
	}
	return u.Scheme + "://" + u.Host + "/"
}

// Headers returns extra navigation headers
func (s *WebtoonsSite) Headers() map[string]string {
	return map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
	}
}

// GetSearchMethod returns HOW to search the catalog
// Downloader will execute this - we just provide the selectors
func (s *WebtoonsSite) GetSearchMethod() *downloader.SearchMethod {
	return &downloader.SearchMethod{
		HomeURL:            s.baseURL + "/",
		ButtonSelector:     ".btn_search._btnSearch",
		InputSelector:      ".input_search._txtKeyword",
		ResultsSelector:    ".card_lst",
		ResultLinkSelector: ".card_lst li a",
		SearchURL: func(title string) string {
			return s.baseURL + "/search?keyword=" + url.QueryEscape(title)
		},
	}
}

// GetImageExtractionMethod returns HOW to extract images
// The real source sits in data-url; src is a lazy-load placeholder.
func (s *WebtoonsSite) GetImageExtractionMethod() *downloader.ImageExtractionMethod {
	return &downloader.ImageExtractionMethod{
		Selector:  "#_imageList img._images",
		Attribute: "data-url",
		Marker:    "webtoon",
	}
}

// ParseTitleURL extracts genre, slug and title id from a title link such as
// https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95
// PARSING LOGIC ONLY - missing parts are left empty
func (s *WebtoonsSite) ParseTitleURL(href string) models.EpisodeReference {
	var ref models.EpisodeReference

	if m := webtoonsTitleNoRe.FindStringSubmatch(href); m != nil {
		ref.TitleID = m[1]
	}
	if m := s.pathRe.FindStringSubmatch(href); m != nil {
		ref.Genre = m[1]
		ref.Slug = m[2]
	}

	log.Printf("[Webtoons] Parsed %s → genre=%q slug=%q title_no=%q", href, ref.Genre, ref.Slug, ref.TitleID)
	return ref
}

// EpisodeURL builds the viewer URL for ref
func (s *WebtoonsSite) EpisodeURL(ref models.EpisodeReference) string {
	return fmt.Sprintf("%s/%s/%s/episode-%d/viewer?title_no=%s&episode_no=%d",
		s.baseURL, ref.Genre, ref.Slug, ref.Episode, ref.TitleID, ref.Episode)
}
