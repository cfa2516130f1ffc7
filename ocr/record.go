package ocr

import (
	"encoding/json"
	"io"
	"strings"
)

// RecordSuffix is appended to an image stem to name its result file.
const RecordSuffix = "_res.json"

// Record is the per-page result file consumed by the aggregate package.
type Record struct {
	InputPath string        `json:"input_path"`
	PageIndex int           `json:"page_index"`
	Engine    string        `json:"engine,omitempty"`
	Language  string        `json:"language,omitempty"`
	Text      string        `json:"text"`
	Blocks    []ParsedBlock `json:"parsing_res_list"`
	Layout    Layout        `json:"layout_det_res"`
	Overall   OverallOCR    `json:"overall_ocr_res"`
}

type ParsedBlock struct {
	Label   string    `json:"block_label"`
	Content string    `json:"block_content"`
	BBox    []float64 `json:"block_bbox"`
}

type Layout struct {
	Boxes []LayoutBox `json:"boxes"`
}

type LayoutBox struct {
	Label      string    `json:"label"`
	Score      float64   `json:"score"`
	Coordinate []float64 `json:"coordinate"`
}

// OverallOCR holds one detection polygon, text and score per line.
type OverallOCR struct {
	Polys  [][][2]float64 `json:"dt_polys"`
	Texts  []string       `json:"rec_texts"`
	Scores []float64      `json:"rec_scores"`
}

// NewRecord flattens res into the record layout.
func NewRecord(engine string, in Input, res Result) Record {
	rec := Record{
		InputPath: in.Path,
		PageIndex: in.PageIndex,
		Engine:    engine,
		Language:  res.Language,
		Text:      res.PlainText,
		Blocks:    []ParsedBlock{},
		Layout:    Layout{Boxes: []LayoutBox{}},
		Overall:   OverallOCR{Polys: [][][2]float64{}, Texts: []string{}, Scores: []float64{}},
	}
	for _, b := range res.Blocks {
		text := b.Text
		if text == "" {
			text = joinLines(b.Lines)
		}
		rec.Blocks = append(rec.Blocks, ParsedBlock{Label: "text", Content: text, BBox: bbox(b.Bounds)})
		rec.Layout.Boxes = append(rec.Layout.Boxes, LayoutBox{Label: "text", Score: b.Confidence, Coordinate: bbox(b.Bounds)})
		for _, l := range b.Lines {
			rec.Overall.Polys = append(rec.Overall.Polys, poly(l.Bounds))
			rec.Overall.Texts = append(rec.Overall.Texts, l.Text)
			rec.Overall.Scores = append(rec.Overall.Scores, l.Confidence)
		}
	}
	return rec
}

// WriteRecord encodes rec as indented JSON.
func WriteRecord(w io.Writer, rec Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(rec)
}

func bbox(r Region) []float64 {
	x2, y2 := r.Max()
	return []float64{r.X, r.Y, x2, y2}
}

func poly(r Region) [][2]float64 {
	x2, y2 := r.Max()
	return [][2]float64{{r.X, r.Y}, {x2, r.Y}, {x2, y2}, {r.X, y2}}
}

func joinLines(lines []TextLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, "\n")
}
