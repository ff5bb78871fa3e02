package parser

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder for image.DecodeConfig
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultJPEGQuality is used when converting non-JPEG pages for embedding.
const DefaultJPEGQuality = 90

// DetectImageFormat reads the magic bytes and returns the current image format string
func DetectImageFormat(data []byte) (string, error) {
	if len(data) < 12 {
		return "", errors.New("data too short to determine format")
	}

	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg", nil
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "png", nil
	}
	if string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a" {
		return "gif", nil
	}
	if string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "webp", nil
	}

	return "", errors.New("unknown image format")
}

// MimeType returns the media type for image bytes, e.g. "image/jpeg".
func MimeType(data []byte) (string, error) {
	format, err := DetectImageFormat(data)
	if err != nil {
		return "", err
	}
	return "image/" + format, nil
}

// ImageDimensions decodes only the header of an image and returns its pixel size.
func ImageDimensions(data []byte) (width, height int, err error) {
	if len(data) == 0 {
		return 0, 0, errors.New("empty image data")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	}

	return cfg.Width, cfg.Height, nil
}

// ConvertImageToJPEG returns JPEG bytes for any supported input format.
// If already JPEG, the input is returned directly without re-encoding.
func ConvertImageToJPEG(imgBytes []byte, quality int) ([]byte, error) {
	if len(imgBytes) == 0 {
		return nil, errors.New("empty image data")
	}

	format, err := DetectImageFormat(imgBytes)
	if err != nil {
		return nil, err
	}

	if format == "jpeg" {
		return imgBytes, nil
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, errors.New("failed to decode " + format + " image: " + err.Error())
	}

	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	// JPEG has no alpha: transparent areas become white, not black
	bounds := img.Bounds()
	flat := imaging.Overlay(imaging.New(bounds.Dx(), bounds.Dy(), color.White), img, image.Pt(0, 0), 1)

	var out bytes.Buffer
	if err := imaging.Encode(&out, flat, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return out.Bytes(), nil
}
