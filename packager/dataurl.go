package packager

import (
	"fmt"

	"github.com/vincent-petithory/dataurl"

	"webtoondl/parser"
)

// EncodeDataURL returns data as a base64 data URI. The media type comes from
// the image magic bytes; unknown data is labelled application/octet-stream.
func EncodeDataURL(data []byte) string {
	mime, err := parser.MimeType(data)
	if err != nil {
		mime = "application/octet-stream"
	}
	return dataurl.New(data, mime).String()
}

// EncodeAll encodes every buffer, preserving order
func EncodeAll(images [][]byte) []string {
	out := make([]string, len(images))
	for i, data := range images {
		out[i] = EncodeDataURL(data)
	}
	return out
}

// DecodeDataURL reverses EncodeDataURL. It returns the payload and a file
// extension derived from the media type ("jpg" for image/jpeg, "bin" when
// the type is not an image).
func DecodeDataURL(s string) ([]byte, string, error) {
	du, err := dataurl.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("invalid data url: %w", err)
	}

	ext := "bin"
	if du.Type == "image" {
		ext = du.Subtype
		if ext == "jpeg" {
			ext = "jpg"
		}
	}
	return du.Data, ext, nil
}
