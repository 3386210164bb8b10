// Package transcode re-encodes stored image assets to a more efficient
// encoding and rewrites every reference to them across the corpus.
package transcode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"

	// Source-format decoders.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Converter re-encodes a single image file.
type Converter struct {
	quality int
}

// NewConverter creates a converter targeting JPEG at the given quality.
func NewConverter(quality int) *Converter {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Converter{quality: quality}
}

// TargetMime is the mime type of converted output.
func (c *Converter) TargetMime() string { return "image/jpeg" }

// TargetExt is the file extension of converted output.
func (c *Converter) TargetExt() string { return ".jpg" }

// Convert decodes srcPath and writes the re-encoded result to dstPath.
// Alpha is flattened onto white since the target format has no
// transparency. dstPath is removed on failure.
func (c *Converter) Convert(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	img, format, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("decode %s: %w", srcPath, err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}

	encodeErr := jpeg.Encode(dst, flattenAlpha(img), &jpeg.Options{Quality: c.quality})
	closeErr := dst.Close()

	if encodeErr != nil || closeErr != nil {
		os.Remove(dstPath)
		if encodeErr != nil {
			return fmt.Errorf("encode %s from %s: %w", dstPath, format, encodeErr)
		}
		return fmt.Errorf("close target: %w", closeErr)
	}

	return nil
}

// flattenAlpha composites the image onto a white background.
func flattenAlpha(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}
