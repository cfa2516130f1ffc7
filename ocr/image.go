package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wudi/pdfpages/fault"
)

// ImageExtensions are the page image types RecognizeDir picks up.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".webp"}

// NormalizeImage returns data as PNG or JPEG. Other decodable formats are
// re-encoded as PNG.
func NormalizeImage(data []byte) ([]byte, ImageFormat, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("detect image format: %w", err)
	}
	switch name {
	case "png":
		return data, ImageFormatPNG, nil
	case "jpeg":
		return data, ImageFormatJPEG, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), ImageFormatPNG, nil
}

// LoadImage reads the image at path into an Input.
func LoadImage(path string, opts ...InputOption) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Input{}, fault.NotFound(path)
		}
		return Input{}, err
	}
	img, format, err := NormalizeImage(data)
	if err != nil {
		return Input{}, fault.InvalidFormat(path, err)
	}
	in := Input{ID: path, Image: img, Format: format, Path: path}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}
