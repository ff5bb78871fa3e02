package packager

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/go-pdf/fpdf"

	"webtoondl/parser"
)

// PDFBuilder writes one page per image, each page sized to its image
type PDFBuilder struct {
	opts Options
}

var _ Builder = (*PDFBuilder)(nil)

// NewPDFBuilder creates a PDF builder
func NewPDFBuilder(opts Options) *PDFBuilder {
	return &PDFBuilder{opts: opts.withDefaults()}
}

func (b *PDFBuilder) Extension() string   { return "pdf" }
func (b *PDFBuilder) ContentType() string { return "application/pdf" }

// Build lays out images in order. Pages wider than MaxWidth are scaled down.
// JPEG, PNG and GIF are embedded as they are; anything else (WebP) is
// converted to JPEG first.
func (b *PDFBuilder) Build(images [][]byte, meta Meta, report ProgressFunc) (*Artifact, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to package")
	}
	if err := os.MkdirAll(b.opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path, filename := artifactPaths(b.opts.Dir, meta, b.Extension())

	// No default page: every page is added with its own size
	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt"})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(meta.BaseName(), true)
	pdf.SetCreator("webtoondl", true)

	total := len(images)
	sizes := make([]Size, 0, total)
	for i, data := range images {
		w, h, err := parser.ImageDimensions(data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		fw, fh := FitWidth(w, h, b.opts.MaxWidth)

		name, opt, err := b.registerImage(pdf, fmt.Sprintf("page%04d", i+1), data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: float64(fw), Ht: float64(fh)})
		pdf.ImageOptions(name, 0, 0, float64(fw), float64(fh), false, opt, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}

		sizes = append(sizes, Size{Width: fw, Height: fh})
		log.Printf("[PDF] Added image number %d/%d (%dx%d)", i+1, total, fw, fh)
		if report != nil {
			report(i+1, total)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	log.Printf("[PDF] ✓ Saved %s", path)
	return &Artifact{
		Path:        path,
		Filename:    filename,
		ContentType: b.ContentType(),
		Pages:       total,
		PageSizes:   sizes,
	}, nil
}

// fpdf image types for the formats it embeds natively
var nativeImageTypes = map[string]string{
	"jpeg": "JPG",
	"png":  "PNG",
	"gif":  "GIF",
}

// registerImage adds data to pdf under name. PNG and GIF keep their pixels
// and alpha; WebP, and PNG variants fpdf refuses (interlaced, 16-bit), are
// converted to JPEG on a white background.
func (b *PDFBuilder) registerImage(pdf *fpdf.Fpdf, name string, data []byte) (string, fpdf.ImageOptions, error) {
	format, err := parser.DetectImageFormat(data)
	if err != nil {
		return "", fpdf.ImageOptions{}, err
	}

	if imageType, ok := nativeImageTypes[format]; ok {
		opt := fpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(data))
		err := pdf.Error()
		if err == nil {
			return name, opt, nil
		}
		if format == "jpeg" {
			return "", opt, err
		}
		log.Printf("[PDF] Cannot embed %s directly (%v), converting to JPEG", format, err)
		pdf.ClearError()
	}

	jpegData, err := parser.ConvertImageToJPEG(data, b.opts.JPEGQuality)
	if err != nil {
		return "", fpdf.ImageOptions{}, err
	}

	opt := fpdf.ImageOptions{ImageType: "JPG"}
	name += "-jpg"
	pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(jpegData))
	if err := pdf.Error(); err != nil {
		return "", opt, err
	}
	return name, opt, nil
}
