// Package imaging normalises uploaded photos before they are sent to the
// vision model: decode, shrink to a bounded size, re-encode as JPEG.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"strings"

	_ "image/gif" // register decoders
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// DefaultMaxDim bounds the longer side of an uploaded photo.
	DefaultMaxDim = 1024
	// DefaultQuality is the JPEG quality used for re-encoding.
	DefaultQuality = 80
	// MaxPixels bounds the decoded size of an upload, whatever its byte size.
	MaxPixels = 40_000_000
)

// ErrUnsupportedImage is returned for data that is not a decodable image,
// or one whose dimensions exceed MaxPixels.
var ErrUnsupportedImage = errors.New("unsupported image")

// Resize decodes r, scales it so its longer side is at most maxDim while
// keeping the aspect ratio, and returns the JPEG encoding.  Images already
// within bounds are re-encoded at their original size.
func Resize(r io.Reader, maxDim, quality int) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height, MaxPixels)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; paint white first so transparent PNGs stay readable.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fit returns the scaled dimensions for a w×h image bounded by maxDim.
// It never upscales and never returns a zero side.
func Fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

// DataURL formats JPEG bytes as a data URL.
func DataURL(jpegBytes []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)
}

// DecodeDataURL extracts the bytes of a base64 image data URL.
func DecodeDataURL(s string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: not a base64 image data URL", ErrUnsupportedImage)
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return b, nil
}
