// Package aggregate combines per-page OCR result files into one document
// and derives a per-page summary from it.
package aggregate

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/pageset"
)

// DefaultPattern matches the per-page result files of the OCR pipeline.
const DefaultPattern = "*_res.json"

type PageRecord struct {
	SourceFile string          `json:"source_file"`
	PageNumber int             `json:"page_number"`
	PageIndex  int             `json:"page_index"`
	InputPath  string          `json:"input_path"`
	Payload    json.RawMessage `json:"ocr_data"`
}

type DocumentInfo struct {
	TotalPages        int    `json:"total_pages"`
	SourceDirectory   string `json:"source_directory"`
	CombinedTimestamp string `json:"combined_timestamp"`
}

// Document is the combined collection. Pages are in ascending page number
// order and Info.TotalPages equals len(Pages).
type Document struct {
	Info  DocumentInfo `json:"document_info"`
	Pages []PageRecord `json:"pages"`
}

// PageError records a result file that could not be read or parsed.
type PageError struct {
	SourceFile string
	Err        error
}

func (e PageError) Error() string { return fmt.Sprintf("%s: %v", e.SourceFile, e.Err) }
func (e PageError) Unwrap() error { return e.Err }

// Result is the outcome of Aggregate. Empty reports that no file matched;
// Document is nil in that case.
type Result struct {
	Document *Document
	Errors   []PageError
	Empty    bool
}

type Options struct {
	Now    func() time.Time
	Logger observability.Logger
}

type candidate struct {
	path       string
	name       string
	pageNumber int
	fallback   int
}

// Aggregate reads every file in inputDir matching pattern (DefaultPattern
// when empty), orders them by embedded page number and combines the ones
// that parse. Unparseable files are reported in Result.Errors.
func Aggregate(ctx context.Context, inputDir, pattern string, opts Options) (Result, error) {
	log := observability.OrNop(opts.Logger)
	if pattern == "" {
		pattern = DefaultPattern
	}
	info, err := os.Stat(inputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fault.NotFound(inputDir)
		}
		return Result{}, fmt.Errorf("stat %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return Result{}, fault.InvalidFormat(inputDir, errors.New("not a directory"))
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return Result{}, fault.InvalidFormat(pattern, err)
	}
	matches, err := filepath.Glob(filepath.Join(inputDir, pattern))
	if err != nil {
		return Result{}, fault.InvalidFormat(pattern, err)
	}

	var files []candidate
	for _, m := range matches {
		if st, err := os.Stat(m); err != nil || st.IsDir() {
			continue
		}
		files = append(files, candidate{path: m, name: filepath.Base(m)})
	}
	if len(files) == 0 {
		log.Warn("no result files found", observability.String("dir", inputDir), observability.String("pattern", pattern))
		return Result{Empty: true}, nil
	}
	log.Info(fmt.Sprintf("Found %d JSON files to combine", len(files)), observability.Int("files", len(files)))

	// Normalize discovery order first so the positional fallback is stable.
	slices.SortStableFunc(files, func(a, b candidate) int {
		return pageset.NaturalKey(a.name).Compare(pageset.NaturalKey(b.name))
	})
	for i := range files {
		files[i].fallback = i
		files[i].pageNumber = PageNumber(files[i].name, i)
	}
	slices.SortStableFunc(files, func(a, b candidate) int { return cmp.Compare(a.pageNumber, b.pageNumber) })

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	doc := &Document{Pages: make([]PageRecord, 0, len(files))}
	var res Result
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		log.Debug("processing result file", observability.String("file", f.name))
		rec, err := readRecord(f)
		if err != nil {
			perr := PageError{SourceFile: f.name, Err: fault.Parse(f.path, err)}
			log.Warn("skipping unreadable result file", observability.String("file", f.name), observability.Error("error", err))
			res.Errors = append(res.Errors, perr)
			continue
		}
		doc.Pages = append(doc.Pages, rec)
	}
	doc.Info = DocumentInfo{
		TotalPages:        len(doc.Pages),
		SourceDirectory:   inputDir,
		CombinedTimestamp: now().Format(time.RFC3339Nano),
	}
	res.Document = doc
	return res, nil
}

func readRecord(f candidate) (PageRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return PageRecord{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return PageRecord{}, err
	}
	if fields == nil {
		return PageRecord{}, errors.New("top-level value is not an object")
	}
	rec := PageRecord{
		SourceFile: f.name,
		PageNumber: f.pageNumber,
		PageIndex:  f.fallback,
		Payload:    json.RawMessage(bytes.TrimSpace(data)),
	}
	if n, ok := integral(fields["page_index"]); ok {
		rec.PageIndex = n
	}
	if raw, ok := fields["input_path"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			rec.InputPath = s
		}
	}
	return rec, nil
}

// integral reports the value of a JSON number without a fractional part.
func integral(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	if n, err := strconv.Atoi(num.String()); err == nil {
		return n, true
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// PageNumber returns the first run of ASCII digits in name, or fallback
// when there is none or it does not fit an int.
func PageNumber(name string, fallback int) int {
	start := -1
	for i := 0; i < len(name); i++ {
		isDigit := name[i] >= '0' && name[i] <= '9'
		if isDigit && start < 0 {
			start = i
		}
		if !isDigit && start >= 0 {
			return atoiOr(name[start:i], fallback)
		}
	}
	if start >= 0 {
		return atoiOr(name[start:], fallback)
	}
	return fallback
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
