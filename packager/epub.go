package packager

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-shiori/go-epub"

	"webtoondl/parser"
)

// EPUBBuilder writes one section per image
type EPUBBuilder struct {
	opts Options
}

var _ Builder = (*EPUBBuilder)(nil)

// NewEPUBBuilder creates an EPUB builder
func NewEPUBBuilder(opts Options) *EPUBBuilder {
	return &EPUBBuilder{opts: opts.withDefaults()}
}

func (b *EPUBBuilder) Extension() string   { return "epub" }
func (b *EPUBBuilder) ContentType() string { return "application/epub+zip" }

// Build adds every image as its own page, scaled with the same rules as the PDF.
func (b *EPUBBuilder) Build(images [][]byte, meta Meta, report ProgressFunc) (*Artifact, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to package")
	}
	if err := os.MkdirAll(b.opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path, filename := artifactPaths(b.opts.Dir, meta, b.Extension())
	title := fmt.Sprintf("%s - Episode %d", strings.TrimSpace(meta.Title), meta.Episode)

	e, err := epub.NewEpub(title)
	if err != nil {
		return nil, fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetLang("en")
	e.SetAuthor("webtoondl")

	total := len(images)
	sizes := make([]Size, 0, total)
	for i, data := range images {
		w, h, err := parser.ImageDimensions(data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		fw, fh := FitWidth(w, h, b.opts.MaxWidth)

		format, err := parser.DetectImageFormat(data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		ext := format
		if ext == "jpeg" {
			ext = "jpg"
		}

		internalPath, err := e.AddImage(EncodeDataURL(data), fmt.Sprintf("page%04d.%s", i+1, ext))
		if err != nil {
			return nil, fmt.Errorf("failed to add image %d: %w", i+1, err)
		}

		body := fmt.Sprintf(`<div class="page"><img src="%s" alt="Page %d" width="%d" height="%d" style="width:100%%;height:auto;"/></div>`,
			internalPath, i+1, fw, fh)
		if _, err := e.AddSection(body, fmt.Sprintf("Page %d", i+1), "", ""); err != nil {
			return nil, fmt.Errorf("failed to add section: %w", err)
		}

		sizes = append(sizes, Size{Width: fw, Height: fh})
		log.Printf("[EPUB] Added image number %d/%d (%dx%d)", i+1, total, fw, fh)
		if report != nil {
			report(i+1, total)
		}
	}

	if err := e.Write(path); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write EPub: %w", err)
	}

	log.Printf("[EPUB] ✓ Saved %s", path)
	return &Artifact{
		Path:        path,
		Filename:    filename,
		ContentType: b.ContentType(),
		Pages:       total,
		PageSizes:   sizes,
	}, nil
}
