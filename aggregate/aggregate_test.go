package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/observability"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC) }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestAggregateOrdersByPageNumber(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc_page_10_res.json", `{"page_index": 9, "input_path": "/in/doc_page_10.png"}`)
	writeFile(t, dir, "doc_page_2_res.json", `{"page_index": 1, "input_path": "/in/doc_page_2.png", "parsing_res_list": [{}, {}]}`)
	writeFile(t, dir, "doc_page_9_res.json", `{"page_index": 8.0}`)
	writeFile(t, dir, "notes.txt", `ignored`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir_res.json"), 0o755))

	res, err := Aggregate(context.Background(), dir, "", Options{Now: fixedNow})
	require.NoError(t, err)
	require.False(t, res.Empty)
	require.Empty(t, res.Errors)
	doc := res.Document
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, 3, doc.Info.TotalPages)
	assert.Equal(t, dir, doc.Info.SourceDirectory)
	assert.Equal(t, "2025-01-02T03:04:05.0000006Z", doc.Info.CombinedTimestamp)

	assert.Equal(t, []int{2, 9, 10}, []int{doc.Pages[0].PageNumber, doc.Pages[1].PageNumber, doc.Pages[2].PageNumber})
	assert.Equal(t, "doc_page_2_res.json", doc.Pages[0].SourceFile)
	assert.Equal(t, 1, doc.Pages[0].PageIndex)
	assert.Equal(t, "/in/doc_page_2.png", doc.Pages[0].InputPath)
	assert.Equal(t, 8, doc.Pages[1].PageIndex)
	assert.Equal(t, "", doc.Pages[1].InputPath)
	assert.JSONEq(t, `{"page_index": 9, "input_path": "/in/doc_page_10.png"}`, string(doc.Pages[2].Payload))
}

func TestAggregatePositionalFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "beta_res.json", `{"page_index": "x"}`)
	writeFile(t, dir, "alpha_res.json", `{}`)
	writeFile(t, dir, "gamma_5_res.json", `{}`)

	res, err := Aggregate(context.Background(), dir, "*_res.json", Options{Now: fixedNow})
	require.NoError(t, err)
	pages := res.Document.Pages
	require.Len(t, pages, 3)
	// alpha and beta have no digits: positions 0 and 1 in natural order.
	assert.Equal(t, "alpha_res.json", pages[0].SourceFile)
	assert.Equal(t, 0, pages[0].PageNumber)
	assert.Equal(t, "beta_res.json", pages[1].SourceFile)
	assert.Equal(t, 1, pages[1].PageNumber)
	assert.Equal(t, 1, pages[1].PageIndex, "non-numeric page_index falls back to position")
	assert.Equal(t, 5, pages[2].PageNumber)
	assert.Equal(t, 2, pages[2].PageIndex)
}

func TestAggregateIsolatesParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "p_1_res.json", `{"page_index": 0}`)
	writeFile(t, dir, "p_2_res.json", `{"page_index": 1,`)
	writeFile(t, dir, "p_3_res.json", `[1, 2, 3]`)
	log := observability.NewMemoryLogger()

	res, err := Aggregate(context.Background(), dir, "", Options{Now: fixedNow, Logger: log})
	require.NoError(t, err)
	require.Len(t, res.Document.Pages, 1)
	assert.Equal(t, 1, res.Document.Info.TotalPages)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "p_2_res.json", res.Errors[0].SourceFile)
	assert.ErrorIs(t, res.Errors[0], fault.ErrParse)
	assert.ErrorIs(t, res.Errors[1], fault.ErrParse)
	assert.Equal(t, 2, log.Count("warn"))
}

func TestAggregateEmptyAndInvalid(t *testing.T) {
	dir := t.TempDir()
	res, err := Aggregate(context.Background(), dir, "", Options{})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Nil(t, res.Document)

	_, err = Aggregate(context.Background(), filepath.Join(dir, "missing"), "", Options{})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = Aggregate(context.Background(), dir, "[", Options{})
	assert.ErrorIs(t, err, fault.ErrInvalidFormat)
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 0, PageNumber("clean_data_combine_0_res.json", 7))
	assert.Equal(t, 12, PageNumber("scan12_res.json", 7))
	assert.Equal(t, 7, PageNumber("cover_res.json", 7))
	assert.Equal(t, 7, PageNumber("007_res", 3))
	assert.Equal(t, 4, PageNumber("x99999999999999999999999999", 4))
}

func TestSummarizeCountsAndDefaults(t *testing.T) {
	doc := &Document{Pages: []PageRecord{
		{PageNumber: 1, SourceFile: "a", Payload: json.RawMessage(`{
			"parsing_res_list": [{}, {}, {}],
			"layout_det_res": {"boxes": [{}, {}]},
			"overall_ocr_res": {"dt_polys": [[[0,0],[1,0],[1,1],[0,1]]]}}`)},
		{PageNumber: 2, SourceFile: "b", Payload: json.RawMessage(`{}`)},
		{PageNumber: 3, SourceFile: "c", Payload: json.RawMessage(`{
			"parsing_res_list": "oops",
			"layout_det_res": [],
			"overall_ocr_res": {"dt_polys": [[], []]}}`)},
	}}
	got := Summarize(doc)
	require.Len(t, got, 3)
	assert.Equal(t, PageSummary{PageNumber: 1, SourceFile: "a", ParsingBlocks: 3, LayoutBoxes: 2, OCRPolygons: 1}, got[0])
	assert.Equal(t, PageSummary{PageNumber: 2, SourceFile: "b"}, got[1])
	assert.Equal(t, PageSummary{PageNumber: 3, SourceFile: "c", OCRPolygons: 2}, got[2])
}

func TestWriteSummary(t *testing.T) {
	doc := &Document{
		Info: DocumentInfo{TotalPages: 1, SourceDirectory: "output_all", CombinedTimestamp: "2025-01-02T03:04:05Z"},
		Pages: []PageRecord{
			{PageNumber: 3, SourceFile: "x_3_res.json", Payload: json.RawMessage(`{"parsing_res_list": [1]}`)},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, doc))
	want := "OCR COMBINATION SUMMARY REPORT\n" +
		strings.Repeat("=", 50) + "\n\n" +
		"Total Pages: 1\n" +
		"Combined on: 2025-01-02T03:04:05Z\n" +
		"Source Directory: output_all\n\n" +
		"PAGE DETAILS:\n" +
		strings.Repeat("-", 30) + "\n" +
		"Page  3: x_3_res.json\n" +
		"         Parsing blocks: 1\n" +
		"         Layout boxes: 0\n" +
		"         OCR polygons: 0\n\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteDocumentShape(t *testing.T) {
	doc := &Document{
		Info:  DocumentInfo{TotalPages: 1, SourceDirectory: "d", CombinedTimestamp: "t"},
		Pages: []PageRecord{{SourceFile: "a<b>_1_res.json", PageNumber: 1, PageIndex: 0, InputPath: "p", Payload: json.RawMessage(`{"k":"<v>"}`)}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDocument(&buf, doc))
	assert.Contains(t, buf.String(), `"source_file": "a<b>_1_res.json"`)
	assert.Contains(t, buf.String(), "\n  \"document_info\": {")
	assert.JSONEq(t, `{
		"document_info": {"total_pages": 1, "source_directory": "d", "combined_timestamp": "t"},
		"pages": [{"source_file": "a<b>_1_res.json", "page_number": 1, "page_index": 0, "input_path": "p", "ocr_data": {"k": "<v>"}}]
	}`, buf.String())
}

func TestMarkdownAndHTMLSummary(t *testing.T) {
	doc := &Document{
		Info: DocumentInfo{TotalPages: 2, SourceDirectory: "out", CombinedTimestamp: "ts"},
		Pages: []PageRecord{
			{PageNumber: 1, SourceFile: "a_1_res.json", Payload: json.RawMessage(`{"parsing_res_list": [1, 2]}`)},
			{PageNumber: 2, SourceFile: "b|$x$_2_res.json", Payload: json.RawMessage(`{}`)},
		},
	}
	var md bytes.Buffer
	require.NoError(t, WriteMarkdownSummary(&md, doc))
	assert.Contains(t, md.String(), "| 1 | `a_1_res.json` | 2 | 0 | 0 |\n")
	assert.Contains(t, md.String(), "`b\\|$x$_2_res.json`")

	var out bytes.Buffer
	require.NoError(t, WriteHTMLSummary(&out, doc))
	html := out.String()
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<code>a_1_res.json</code>")
}

func TestRunWritesArtifacts(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, in, "p_2_res.json", `{"page_index": 1, "layout_det_res": {"boxes": [{}]}}`)
	writeFile(t, in, "p_1_res.json", `{"page_index": 0}`)
	jsonPath := filepath.Join(out, "combined.json")
	summaryPath := filepath.Join(out, "summary.md")
	require.NoError(t, os.WriteFile(jsonPath, []byte("stale"), 0o644))

	res, err := Run(context.Background(), RunConfig{
		InputDir:    in,
		Output:      jsonPath,
		SummaryPath: summaryPath,
		Format:      FormatMarkdown,
		Options:     Options{Now: fixedNow},
	})
	require.NoError(t, err)
	assert.Len(t, res.Document.Pages, 2)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded.Info.TotalPages)
	assert.Equal(t, "p_1_res.json", decoded.Pages[0].SourceFile)

	summary, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "| 2 | `p_2_res.json` | 0 | 1 | 0 |")
}

func TestRunEmptyWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "combined.json")
	res, err := Run(context.Background(), RunConfig{InputDir: t.TempDir(), Output: out, SummaryPath: out + ".txt"})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.NoFileExists(t, out)

	_, err = Run(context.Background(), RunConfig{InputDir: t.TempDir(), Format: "pdf"})
	assert.Error(t, err)
}
