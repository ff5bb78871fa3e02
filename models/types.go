package models

import "strings"

// Format selects how fetched images are packaged for the client.
type Format string

const (
	FormatPDF    Format = "pdf"    // paginated PDF document
	FormatEPUB   Format = "epub"   // EPUB with one image per section
	FormatImages Format = "images" // inline base64 data URIs
)

// ParseFormat normalizes a user supplied format name. An empty string
// returns fallback.
func ParseFormat(s string, fallback Format) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	return Format(s)
}

// IsDirect reports whether the format returns payloads inline instead of
// writing a document to disk.
func (f Format) IsDirect() bool {
	return f == FormatImages
}

// Request is one inbound download call. It lives only for the duration of
// that call.
type Request struct {
	ID      string `json:"id"`      // correlation id, also the progress task id
	Title   string `json:"title"`   // title searched on the catalog
	Episode int    `json:"episode"` // 1-based episode number
	Format  Format `json:"format"`  // packaging strategy
}

// EpisodeReference identifies one episode on the catalog site. It is
// derived from the first search result's link.
type EpisodeReference struct {
	Genre   string `json:"genre"`
	Slug    string `json:"slug"`
	TitleID string `json:"title_id"`
	Episode int    `json:"episode"`

	// URL is the canonical viewer URL built from the fields above.
	URL string `json:"url"`
}

// Valid reports whether every identifying field is present.
func (r EpisodeReference) Valid() bool {
	return r.Genre != "" && r.Slug != "" && r.TitleID != "" && r.Episode > 0
}
