package ocr

import (
	"context"
	"errors"
)

// ErrNoEngine is returned when no OCR engine is linked into the binary.
var ErrNoEngine = errors.New("no OCR engine available")

// ImageFormat is the content type of Input.Image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region is a rectangle in image pixels, origin at the top-left corner.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Max returns the lower-right corner of the region.
func (r Region) Max() (float64, float64) { return r.X + r.Width, r.Y + r.Height }

// Input is one page image submitted for recognition.
type Input struct {
	// ID is echoed back in Result.InputID.
	ID     string
	Image  []byte
	Format ImageFormat
	// PageIndex is the zero-based position of the image in its page sequence.
	PageIndex int
	// DPI is the scan resolution, zero when unknown.
	DPI int
	// Languages are engine language codes such as "eng" or "deu".
	Languages []string
	// Region restricts recognition; nil means the whole image.
	Region *Region
	// Metadata carries engine-specific variables, e.g. Tesseract's
	// tessedit_pageseg_mode.
	Metadata map[string]string
	// Path is the file the image was read from, if any.
	Path string
}

type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// TextBlock is a paragraph-level group of lines.
type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the recognition output for one Input. Confidences are in [0, 1].
type Result struct {
	InputID   string
	PlainText string
	Blocks    []TextBlock
	// Language is the dominant language, if the engine reports one.
	Language string
}

// Engine recognizes one image per call.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine recognizes several images per call. Results are returned in
// input order.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
