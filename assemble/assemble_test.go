package assemble

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/pageset"
	"github.com/wudi/pdfpages/parser"
	"github.com/wudi/pdfpages/security"
	"github.com/wudi/pdfpages/writer"
)

// writeTestPDF writes a document whose page i draws contents[i]. Pages sit
// under a nested page tree that carries the inherited Resources and
// MediaBox; the first page links to the last one.
func writeTestPDF(t *testing.T, path string, contents []string) {
	t.Helper()
	var buf bytes.Buffer
	w, err := writer.NewStreamWriter(&buf, writer.Config{Deterministic: true})
	require.NoError(t, err)

	catalog := w.Reserve()
	root := w.Reserve()
	inner := w.Reserve()
	font := w.Reserve()

	fontDict := raw.Dict()
	fontDict.Set("Type", raw.NameLiteral("Font"))
	fontDict.Set("Subtype", raw.NameLiteral("Type1"))
	fontDict.Set("BaseFont", raw.NameLiteral("Helvetica"))
	require.NoError(t, w.WriteObject(font, fontDict))

	pageRefs := make([]raw.ObjectRef, len(contents))
	for i := range contents {
		pageRefs[i] = w.Reserve()
	}
	var rootKids, innerKids []raw.Object
	for i, text := range contents {
		content := w.Reserve()
		require.NoError(t, w.WriteObject(content, raw.NewStream(raw.Dict(), []byte(text))))

		page := raw.Dict()
		page.Set("Type", raw.NameLiteral("Page"))
		page.Set("Contents", raw.RefObj{R: content})
		parent := root
		if i > 0 {
			parent = inner
		}
		page.Set("Parent", raw.RefObj{R: parent})
		if i == 0 && len(contents) > 1 {
			annot := w.Reserve()
			link := raw.Dict()
			link.Set("Type", raw.NameLiteral("Annot"))
			link.Set("Subtype", raw.NameLiteral("Link"))
			link.Set("Rect", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(10), raw.NumberInt(10)))
			link.Set("P", raw.RefObj{R: pageRefs[0]})
			link.Set("Dest", raw.NewArray(raw.RefObj{R: pageRefs[len(contents)-1]}, raw.NameLiteral("Fit")))
			require.NoError(t, w.WriteObject(annot, link))
			page.Set("Annots", raw.NewArray(raw.RefObj{R: annot}))
		}
		require.NoError(t, w.WriteObject(pageRefs[i], page))
		if i == 0 {
			rootKids = append(rootKids, raw.RefObj{R: pageRefs[i]})
		} else {
			innerKids = append(innerKids, raw.RefObj{R: pageRefs[i]})
		}
	}

	innerDict := raw.Dict()
	innerDict.Set("Type", raw.NameLiteral("Pages"))
	innerDict.Set("Parent", raw.RefObj{R: root})
	innerDict.Set("Kids", raw.NewArray(innerKids...))
	innerDict.Set("Count", raw.NumberInt(int64(len(innerKids))))
	innerDict.Set("Rotate", raw.NumberInt(90))
	require.NoError(t, w.WriteObject(inner, innerDict))

	resources := raw.Dict()
	fonts := raw.Dict()
	fonts.Set("F1", raw.RefObj{R: font})
	resources.Set("Font", fonts)
	rootDict := raw.Dict()
	rootDict.Set("Type", raw.NameLiteral("Pages"))
	rootDict.Set("Kids", raw.NewArray(append(rootKids, raw.RefObj{R: inner})...))
	rootDict.Set("Count", raw.NumberInt(int64(len(contents))))
	rootDict.Set("Resources", resources)
	rootDict.Set("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
	require.NoError(t, w.WriteObject(root, rootDict))

	cat := raw.Dict()
	cat.Set("Type", raw.NameLiteral("Catalog"))
	cat.Set("Pages", raw.RefObj{R: root})
	require.NoError(t, w.WriteObject(catalog, cat))
	require.NoError(t, w.Close(catalog))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func pageText(i int) string {
	return fmt.Sprintf("BT /F1 24 Tf 72 700 Td (page %d) Tj ET", i+1)
}

func pageContents(t *testing.T, path string) []string {
	t.Helper()
	src, err := Open(context.Background(), path, parser.Config{})
	require.NoError(t, err)
	defer src.Close()
	var out []string
	for _, p := range src.Pages() {
		data, err := src.ContentStream(context.Background(), p)
		require.NoError(t, err)
		out = append(out, string(data))
	}
	return out
}

func TestOpenWalksPageTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeTestPDF(t, path, []string{pageText(0), pageText(1), pageText(2)})

	src, err := Open(context.Background(), path, parser.Config{})
	require.NoError(t, err)
	pages := src.Pages()
	require.Len(t, pages, 3)
	assert.Contains(t, pages[0].Inherited, "Resources")
	assert.Contains(t, pages[0].Inherited, "MediaBox")
	assert.NotContains(t, pages[0].Inherited, "Rotate")
	assert.Contains(t, pages[1].Inherited, "Rotate")
	assert.Equal(t, []string{pageText(0), pageText(1), pageText(2)}, pageContents(t, path))
}

func TestSplitThenMergeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "report.pdf")
	var want []string
	for i := 0; i < 11; i++ {
		want = append(want, pageText(i))
	}
	writeTestPDF(t, source, want)

	outDir := filepath.Join(dir, "pages")
	paths, err := Split(context.Background(), source, outDir, SplitOptions{})
	require.NoError(t, err)
	require.Len(t, paths, 11)
	assert.Equal(t, filepath.Join(outDir, "report_page_1.pdf"), paths[0])
	assert.Equal(t, filepath.Join(outDir, "report_page_11.pdf"), paths[10])
	for i, p := range paths {
		assert.Equal(t, []string{want[i]}, pageContents(t, p))
	}

	// Collect + dedupe + natural sort puts page_10 after page_9.
	res, err := pageset.Collect(context.Background(), []pageset.Input{{Path: outDir}}, pageset.CollectOptions{})
	require.NoError(t, err)
	ordered := pageset.Sort(pageset.Dedupe(res.Files))
	var inputs []string
	for _, f := range ordered {
		inputs = append(inputs, f.Path)
	}
	merged := filepath.Join(dir, "merged.pdf")
	require.NoError(t, Merge(context.Background(), inputs, merged, MergeOptions{}))
	assert.Equal(t, want, pageContents(t, merged))

	src, err := Open(context.Background(), merged, parser.Config{})
	require.NoError(t, err)
	assert.Equal(t, "pdfpages", src.Document().Metadata.Producer)
	for _, p := range src.Pages() {
		_, ok := p.Dict.Get("MediaBox")
		assert.True(t, ok, "MediaBox materialized on every page")
		_, ok = p.Dict.Get("Resources")
		assert.True(t, ok, "Resources materialized on every page")
	}
}

func TestMergePreservesLinksAndBackReferences(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	writeTestPDF(t, a, []string{pageText(0), pageText(1)})
	merged := filepath.Join(dir, "out.pdf")
	require.NoError(t, Merge(context.Background(), []string{a, a}, merged, MergeOptions{}))

	src, err := Open(context.Background(), merged, parser.Config{})
	require.NoError(t, err)
	pages := src.Pages()
	require.Len(t, pages, 4)
	doc := src.Document()
	for _, first := range []int{0, 2} {
		annots, ok := doc.Resolve(pages[first].Dict.KV["Annots"]).(*raw.ArrayObj)
		require.True(t, ok)
		link, ok := doc.ResolveDict(annots.Items[0])
		require.True(t, ok)
		p, ok := link.Ref("P")
		require.True(t, ok)
		assert.Equal(t, pages[first].Ref, p, "annotation /P points at its own page")
		dest := link.KV["Dest"].(*raw.ArrayObj)
		assert.Equal(t, raw.RefObj{R: pages[first+1].Ref}, dest.Items[0])
	}
}

func TestSplitDropsLinksToOtherPages(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, source, []string{pageText(0), pageText(1)})
	paths, err := Split(context.Background(), source, dir, SplitOptions{})
	require.NoError(t, err)

	src, err := Open(context.Background(), paths[0], parser.Config{})
	require.NoError(t, err)
	require.Len(t, src.Pages(), 1)
	annots := src.Document().Resolve(src.Pages()[0].Dict.KV["Annots"]).(*raw.ArrayObj)
	link, _ := src.Document().ResolveDict(annots.Items[0])
	dest := link.KV["Dest"].(*raw.ArrayObj)
	assert.Equal(t, raw.NullObj{}, dest.Items[0])
	// Only catalog, pages, page, contents, font, annotation and info.
	assert.Len(t, src.Document().Objects, 7)
}

func TestMergeEmptyInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	err := Merge(context.Background(), nil, out, MergeOptions{})
	assert.ErrorIs(t, err, fault.ErrEmptyInput)
	assert.NoFileExists(t, out)
}

func TestMergeOutputExists(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	writeTestPDF(t, a, []string{pageText(0)})
	out := filepath.Join(dir, "out.pdf")
	require.NoError(t, os.WriteFile(out, []byte("keep me"), 0o644))

	err := Merge(context.Background(), []string{a}, out, MergeOptions{})
	assert.ErrorIs(t, err, fault.ErrOutputExists)
	data, _ := os.ReadFile(out)
	assert.Equal(t, "keep me", string(data))

	require.NoError(t, Merge(context.Background(), []string{a}, out, MergeOptions{Overwrite: true}))
	assert.Equal(t, []string{pageText(0)}, pageContents(t, out))
}

func TestMergeFailuresLeaveNoOutput(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pdf")
	writeTestPDF(t, good, []string{pageText(0)})
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not a pdf"), 0o644))
	out := filepath.Join(dir, "out.pdf")

	err := Merge(context.Background(), []string{good, filepath.Join(dir, "missing.pdf")}, out, MergeOptions{})
	assert.ErrorIs(t, err, fault.ErrNotFound)
	assert.NoFileExists(t, out)

	log := observability.NewMemoryLogger()
	err = Merge(context.Background(), []string{good, bad}, out, MergeOptions{Logger: log})
	assert.ErrorIs(t, err, fault.ErrInvalidFormat)
	assert.ErrorIs(t, err, parser.ErrNotPDF)
	assert.Equal(t, bad, fault.Path(err))
	assert.NoFileExists(t, out)
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 2, "temp file must be removed")
	assert.Equal(t, 1, log.Count("info"))
}

func TestMergeRejectsEncrypted(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.pdf")
	writeTestPDF(t, plain, []string{pageText(0)})
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("/Info "), []byte("/Encrypt <</Filter /Standard /V 2 >> /Info "), 1)
	enc := filepath.Join(dir, "enc.pdf")
	require.NoError(t, os.WriteFile(enc, data, 0o644))

	err = Merge(context.Background(), []string{enc}, filepath.Join(dir, "out.pdf"), MergeOptions{})
	assert.ErrorIs(t, err, fault.ErrInvalidFormat)
	assert.ErrorIs(t, err, security.ErrEncrypted)
}

func TestSplitValidation(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	_, err := Split(context.Background(), filepath.Join(dir, "missing.pdf"), outDir, SplitOptions{})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	txt := filepath.Join(dir, "doc.txt")
	writeTestPDF(t, txt, []string{pageText(0)})
	_, err = Split(context.Background(), txt, outDir, SplitOptions{})
	assert.ErrorIs(t, err, fault.ErrInvalidFormat)

	empty := filepath.Join(dir, "empty.pdf")
	writeTestPDF(t, empty, nil)
	_, err = Split(context.Background(), empty, outDir, SplitOptions{})
	assert.ErrorIs(t, err, fault.ErrEmptyDocument)
	assert.NoDirExists(t, outDir)
}

func TestSplitOverwrite(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, source, []string{pageText(0), pageText(1)})
	outDir := filepath.Join(dir, "out")
	_, err := Split(context.Background(), source, outDir, SplitOptions{})
	require.NoError(t, err)

	_, err = Split(context.Background(), source, outDir, SplitOptions{})
	assert.ErrorIs(t, err, fault.ErrOutputExists)
	assert.Contains(t, err.Error(), "page 1")

	paths, err := Split(context.Background(), source, outDir, SplitOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestSplitAll(t *testing.T) {
	dir := t.TempDir()
	var sources []string
	for i, n := range []int{3, 1, 2} {
		path := filepath.Join(dir, fmt.Sprintf("doc%d.pdf", i))
		var contents []string
		for j := 0; j < n; j++ {
			contents = append(contents, pageText(j))
		}
		writeTestPDF(t, path, contents)
		sources = append(sources, path)
	}
	outDir := filepath.Join(dir, "out")
	results, err := SplitAll(context.Background(), sources, outDir, SplitOptions{Jobs: 2})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, results[0], 3)
	assert.Len(t, results[1], 1)
	assert.Len(t, results[2], 2)
	assert.Equal(t, filepath.Join(outDir, "doc2_page_2.pdf"), results[2][1])

	_, err = SplitAll(context.Background(), append(sources, filepath.Join(dir, "nope.pdf")), filepath.Join(dir, "out2"), SplitOptions{Jobs: 4})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = SplitAll(context.Background(), nil, outDir, SplitOptions{})
	assert.ErrorIs(t, err, fault.ErrEmptyInput)
}
