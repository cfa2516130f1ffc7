package aggregate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wudi/pdfpages/fileutil"
	"github.com/wudi/pdfpages/observability"
)

// Summary formats accepted by RunConfig.Format.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

const (
	DefaultInputDir = "output_all"
	DefaultOutput   = "combined_ocr_results.json"
	DefaultSummary  = "ocr_summary.txt"
)

type RunConfig struct {
	InputDir string
	Pattern  string
	// Output is the combined JSON path; SummaryPath the report path. An
	// empty SummaryPath skips the report.
	Output      string
	SummaryPath string
	Format      string
	Options     Options
}

// SummaryWriter returns the report writer for format.
func SummaryWriter(format string) (func(io.Writer, *Document) error, error) {
	switch format {
	case "", FormatText:
		return WriteSummary, nil
	case FormatMarkdown, "md":
		return WriteMarkdownSummary, nil
	case FormatHTML:
		return WriteHTMLSummary, nil
	default:
		return nil, fmt.Errorf("unknown summary format %q", format)
	}
}

// Run aggregates cfg.InputDir and writes the combined JSON and the summary.
// Both artifacts are replaced atomically. Nothing is written when no file
// matched.
func Run(ctx context.Context, cfg RunConfig) (Result, error) {
	log := observability.OrNop(cfg.Options.Logger)
	writeSummary, err := SummaryWriter(cfg.Format)
	if err != nil {
		return Result{}, err
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	res, err := Aggregate(ctx, cfg.InputDir, cfg.Pattern, cfg.Options)
	if err != nil || res.Empty {
		return res, err
	}
	doc := res.Document
	err = fileutil.WriteAtomic(ctx, cfg.Output, true, func(w io.Writer) error {
		return WriteDocument(w, doc)
	})
	if err != nil {
		return res, fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	fields := []observability.Field{
		observability.Int("pages", len(doc.Pages)),
		observability.String("output", cfg.Output),
	}
	if st, err := os.Stat(cfg.Output); err == nil {
		fields = append(fields, observability.String("size", fmt.Sprintf("%.2f MB", float64(st.Size())/(1024*1024))))
	}
	log.Info(fmt.Sprintf("Successfully combined %d pages", len(doc.Pages)), fields...)

	if cfg.SummaryPath == "" {
		return res, nil
	}
	err = fileutil.WriteAtomic(ctx, cfg.SummaryPath, true, func(w io.Writer) error {
		return writeSummary(w, doc)
	})
	if err != nil {
		return res, fmt.Errorf("write %s: %w", cfg.SummaryPath, err)
	}
	log.Info("summary report saved", observability.String("path", cfg.SummaryPath))
	return res, nil
}
