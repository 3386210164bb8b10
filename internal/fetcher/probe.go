package fetcher

import (
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"strings"

	// Decoders for the dimension probe. The x/image formats cover what
	// stdlib does not.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// sniffLen is how many leading bytes content sniffing examines.
const sniffLen = 512

// ProbeImage validates that the file at path holds a genuine image:
// first by content sniffing, then by decoding the image header for its
// dimensions. An HTTP 200 carrying an HTML error page fails here.
func ProbeImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, readErr := f.Read(head)
	if readErr != nil && n == 0 {
		return fmt.Errorf("read: %w", readErr)
	}

	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("sniffed content type %q", contentType)
	}

	if _, seekErr := f.Seek(0, 0); seekErr != nil {
		return fmt.Errorf("seek: %w", seekErr)
	}

	cfg, _, decodeErr := image.DecodeConfig(f)
	if decodeErr != nil {
		return fmt.Errorf("decode header: %w", decodeErr)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("image has no dimensions")
	}

	return nil
}
