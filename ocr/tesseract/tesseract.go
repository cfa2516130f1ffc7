//go:build tesseract

// Package tesseract implements ocr.Engine with the Tesseract library via
// gosseract. The engine needs cgo and the tesseract headers, so it only
// builds with the tesseract build tag.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/pdfpages/ocr"
)

// TesseractEngine implements Engine and BatchEngine using the gosseract client.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image input.
func (e *TesseractEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	c := e.clientFactory()
	defer c.Close()
	return e.recognizeWithClient(ctx, c, in)
}

// RecognizeBatch processes inputs sequentially with a fresh client each, so
// variables set for one page never leak into the next.
func (e *TesseractEngine) RecognizeBatch(ctx context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := e.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *TesseractEngine) recognizeWithClient(ctx context.Context, c *gosseract.Client, in ocr.Input) (ocr.Result, error) {
	imgData, err := cropImage(in.Image, in.Region)
	if err != nil {
		return ocr.Result{}, err
	}
	if err := c.SetImageFromBytes(imgData); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}

	levels := make(map[gosseract.PageIteratorLevel][]box, 3)
	for _, level := range []gosseract.PageIteratorLevel{gosseract.RIL_BLOCK, gosseract.RIL_TEXTLINE, gosseract.RIL_WORD} {
		boxes, err := c.GetBoundingBoxes(level)
		if err != nil {
			return ocr.Result{}, fmt.Errorf("bounding boxes: %w", err)
		}
		levels[level] = toBoxes(boxes, in.Region)
	}

	return ocr.Result{
		InputID:   in.ID,
		PlainText: strings.TrimSpace(text),
		Blocks:    layout(levels[gosseract.RIL_BLOCK], levels[gosseract.RIL_TEXTLINE], levels[gosseract.RIL_WORD]),
		Language:  firstLanguage(in.Languages),
	}, nil
}

// toBoxes converts gosseract boxes, shifting them back into full-image
// coordinates when recognition ran on a cropped region.
func toBoxes(in []gosseract.BoundingBox, region *ocr.Region) []box {
	var dx, dy float64
	if region != nil && !region.IsEmpty() {
		dx, dy = math.Round(region.X), math.Round(region.Y)
	}
	out := make([]box, 0, len(in))
	for _, b := range in {
		out = append(out, box{
			text: strings.TrimSpace(b.Word),
			bounds: ocr.Region{
				X:      float64(b.Box.Min.X) + dx,
				Y:      float64(b.Box.Min.Y) + dy,
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			conf: b.Confidence / 100.0,
		})
	}
	return out
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}

func cropImage(data []byte, region *ocr.Region) ([]byte, error) {
	if region == nil || region.IsEmpty() {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for region: %w", err)
	}
	rect := image.Rect(
		int(math.Round(region.X)),
		int(math.Round(region.Y)),
		int(math.Round(region.X+region.Width)),
		int(math.Round(region.Y+region.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region outside image bounds")
	}
	subImg, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image does not support sub-image")
	}
	cropped := subImg.SubImage(rect)
	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
