package aggregate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PageSummary holds the derived counts for one page.
type PageSummary struct {
	PageNumber    int
	SourceFile    string
	ParsingBlocks int
	LayoutBoxes   int
	OCRPolygons   int
}

type payloadShape struct {
	ParsingResList json.RawMessage `json:"parsing_res_list"`
	LayoutDetRes   struct {
		Boxes json.RawMessage `json:"boxes"`
	} `json:"layout_det_res"`
	OverallOCRRes struct {
		DtPolys json.RawMessage `json:"dt_polys"`
	} `json:"overall_ocr_res"`
}

// Summarize derives the per-page counts. Missing or wrongly typed
// substructures count as zero.
func Summarize(doc *Document) []PageSummary {
	out := make([]PageSummary, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		s := PageSummary{PageNumber: p.PageNumber, SourceFile: p.SourceFile}
		var shape payloadShape
		if err := json.Unmarshal(p.Payload, &shape); err != nil {
			// A wrongly typed branch fails the whole decode; count each
			// branch on its own instead.
			shape = decodeLoosely(p.Payload)
		}
		s.ParsingBlocks = arrayLen(shape.ParsingResList)
		s.LayoutBoxes = arrayLen(shape.LayoutDetRes.Boxes)
		s.OCRPolygons = arrayLen(shape.OverallOCRRes.DtPolys)
		out = append(out, s)
	}
	return out
}

func decodeLoosely(payload json.RawMessage) payloadShape {
	var shape payloadShape
	var top map[string]json.RawMessage
	if json.Unmarshal(payload, &top) != nil {
		return shape
	}
	shape.ParsingResList = top["parsing_res_list"]
	var layout, ocr map[string]json.RawMessage
	if json.Unmarshal(top["layout_det_res"], &layout) == nil {
		shape.LayoutDetRes.Boxes = layout["boxes"]
	}
	if json.Unmarshal(top["overall_ocr_res"], &ocr) == nil {
		shape.OverallOCRRes.DtPolys = ocr["dt_polys"]
	}
	return shape
}

func arrayLen(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

// WriteSummary writes the plain-text summary report.
func WriteSummary(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "OCR COMBINATION SUMMARY REPORT\n%s\n\n", strings.Repeat("=", 50))
	fmt.Fprintf(bw, "Total Pages: %d\n", doc.Info.TotalPages)
	fmt.Fprintf(bw, "Combined on: %s\n", doc.Info.CombinedTimestamp)
	fmt.Fprintf(bw, "Source Directory: %s\n\n", doc.Info.SourceDirectory)
	fmt.Fprintf(bw, "PAGE DETAILS:\n%s\n", strings.Repeat("-", 30))
	for _, s := range Summarize(doc) {
		fmt.Fprintf(bw, "Page %2d: %s\n", s.PageNumber, s.SourceFile)
		fmt.Fprintf(bw, "         Parsing blocks: %d\n", s.ParsingBlocks)
		fmt.Fprintf(bw, "         Layout boxes: %d\n", s.LayoutBoxes)
		fmt.Fprintf(bw, "         OCR polygons: %d\n\n", s.OCRPolygons)
	}
	return bw.Flush()
}

// WriteDocument writes doc as indented JSON without HTML escaping.
func WriteDocument(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}
