package tesseract

import (
	"math"
	"strings"

	"github.com/wudi/pdfpages/ocr"
)

// box is one bounding box at a single iterator level.
type box struct {
	text   string
	bounds ocr.Region
	conf   float64
}

// layout nests words into lines and lines into blocks by center point
// containment. Lines that fall outside every block get a block of their own.
func layout(blocks, lines, words []box) []ocr.TextBlock {
	textLines := make([]ocr.TextLine, len(lines))
	for i, l := range lines {
		textLines[i] = ocr.TextLine{Bounds: l.bounds, Confidence: l.conf}
	}
	for _, w := range words {
		i := owner(w.bounds, lines)
		if i < 0 {
			continue
		}
		textLines[i].Words = append(textLines[i].Words, ocr.TextWord{Text: w.text, Bounds: w.bounds, Confidence: w.conf})
	}
	for i := range textLines {
		textLines[i].Text = lineText(textLines[i], lines[i].text)
	}

	out := make([]ocr.TextBlock, len(blocks))
	for i, b := range blocks {
		out[i] = ocr.TextBlock{Bounds: b.bounds, Confidence: b.conf}
	}
	for i, l := range textLines {
		j := owner(lines[i].bounds, blocks)
		if j < 0 {
			out = append(out, ocr.TextBlock{Bounds: l.Bounds, Confidence: l.Confidence})
			j = len(out) - 1
		}
		out[j].Lines = append(out[j].Lines, l)
	}
	kept := out[:0]
	for _, b := range out {
		if len(b.Lines) == 0 {
			continue
		}
		texts := make([]string, len(b.Lines))
		for i, l := range b.Lines {
			texts[i] = l.Text
		}
		b.Text = strings.Join(texts, "\n")
		kept = append(kept, b)
	}
	return kept
}

func lineText(l ocr.TextLine, fallback string) string {
	if len(l.Words) == 0 {
		return fallback
	}
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// owner returns the index of the candidate containing r's center, or the
// one with the largest overlap, or -1.
func owner(r ocr.Region, candidates []box) int {
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2
	best, bestArea := -1, 0.0
	for i, c := range candidates {
		x2, y2 := c.bounds.Max()
		if cx >= c.bounds.X && cx <= x2 && cy >= c.bounds.Y && cy <= y2 {
			return i
		}
		if a := overlap(r, c.bounds); a > bestArea {
			best, bestArea = i, a
		}
	}
	return best
}

func overlap(a, b ocr.Region) float64 {
	ax2, ay2 := a.Max()
	bx2, by2 := b.Max()
	w := math.Min(ax2, bx2) - math.Max(a.X, b.X)
	h := math.Min(ay2, by2) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}
