package downloader

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is what the image client advertises. Anything the server
// sends back under these encodings is decoded by DecompressBody.
const acceptEncoding = "gzip, br"

// DecompressBody decodes a response body. Gzip is recognised by its magic
// bytes, so a body the transport already inflated is left alone even when the
// header still says gzip. Brotli has no magic number and is only decoded when
// Content-Encoding says so; sniffing for it would corrupt PNG payloads.
//
// Returns the (possibly unchanged) body and whether decoding happened.
func DecompressBody(body []byte, contentEncoding string) ([]byte, bool, error) {
	if len(body) == 0 {
		return body, false, nil
	}

	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch {
	case isGzip(body):
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, fmt.Errorf("gzip: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, false, fmt.Errorf("gzip: %w", err)
		}
		return decompressed, true, nil

	case encoding == "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, false, fmt.Errorf("brotli: %w", err)
		}
		return decompressed, true, nil
	}

	return body, false, nil
}

func isGzip(body []byte) bool {
	return len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b
}
