package aggregate

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// WriteMarkdownSummary writes the summary as a Markdown document with one
// table row per page.
func WriteMarkdownSummary(w io.Writer, doc *Document) error {
	var b bytes.Buffer
	b.WriteString("# OCR Combination Summary\n\n")
	fmt.Fprintf(&b, "- **Total Pages:** %d\n", doc.Info.TotalPages)
	fmt.Fprintf(&b, "- **Combined on:** %s\n", codeSpan(doc.Info.CombinedTimestamp))
	fmt.Fprintf(&b, "- **Source Directory:** %s\n\n", codeSpan(doc.Info.SourceDirectory))
	b.WriteString("| Page | Source file | Parsing blocks | Layout boxes | OCR polygons |\n")
	b.WriteString("|---:|---|---:|---:|---:|\n")
	for _, s := range Summarize(doc) {
		fmt.Fprintf(&b, "| %d | %s | %d | %d | %d |\n", s.PageNumber, codeSpan(s.SourceFile), s.ParsingBlocks, s.LayoutBoxes, s.OCRPolygons)
	}
	_, err := w.Write(b.Bytes())
	return err
}

// WriteHTMLSummary renders the Markdown summary to a standalone HTML page.
func WriteHTMLSummary(w io.Writer, doc *Document) error {
	var src bytes.Buffer
	if err := WriteMarkdownSummary(&src, doc); err != nil {
		return err
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			treeblood.MathML(),
		),
	)
	var body bytes.Buffer
	if err := md.Convert(src.Bytes(), &body); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	title := html.EscapeString("OCR summary: " + doc.Info.SourceDirectory)
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n", title, body.String())
	return err
}

// codeSpan quotes s as inline code so file names are never read as
// emphasis or math. Pipes are escaped for table cells.
func codeSpan(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}
