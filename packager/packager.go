package packager

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/google/uuid"

	"webtoondl/parser"
	"webtoondl/validation"
)

// DefaultMaxWidth is the widest page a document gets, in points
const DefaultMaxWidth = 800

// ProgressFunc receives the number of pages written out of total
type ProgressFunc func(completed, total int)

// Meta names the episode being packaged
type Meta struct {
	Title     string
	Episode   int
	RequestID string // makes the on-disk path unique
}

// BaseName is the client-facing file stem, e.g. "Tower_of_God_Ep3"
func (m Meta) BaseName() string {
	return fmt.Sprintf("%s_Ep%d", parser.SanitizeTitle(m.Title), m.Episode)
}

// Size is a page size in points
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Artifact is a finished document on disk. The caller owns Path and must
// remove it after delivery.
type Artifact struct {
	Path        string // unique per request
	Filename    string // name offered to the client
	ContentType string
	Pages       int
	PageSizes   []Size
}

// Options are shared by every document builder
type Options struct {
	Dir         string
	MaxWidth    int
	JPEGQuality int
}

func (o Options) withDefaults() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = parser.DefaultJPEGQuality
	}
	return o
}

// Builder lays image buffers out as one page each and writes the document
type Builder interface {
	Build(images [][]byte, meta Meta, report ProgressFunc) (*Artifact, error)
	Extension() string
	ContentType() string
}

// FitWidth scales (w, h) down so the width is at most maxWidth, keeping the
// aspect ratio. The height is rounded to the nearest integer.
func FitWidth(w, h, maxWidth int) (int, int) {
	if maxWidth <= 0 || w <= maxWidth {
		return w, h
	}
	scale := float64(maxWidth) / float64(w)
	return maxWidth, int(math.Round(float64(h) * scale))
}

// artifactPaths returns the unique on-disk path and the download filename.
// A valid request id is used verbatim so distinct ids never share a path;
// anything else gets a fresh uuid.
func artifactPaths(dir string, meta Meta, ext string) (path, filename string) {
	id := meta.RequestID
	if id == "" || validation.ValidateRequestID(id) != nil {
		id = uuid.NewString()
	}
	base := meta.BaseName()
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", base, id, ext)), base + "." + ext
}
