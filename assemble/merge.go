package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/fileutil"
	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/parser"
	"github.com/wudi/pdfpages/writer"
)

type MergeOptions struct {
	Overwrite bool
	Logger    observability.Logger
	Parser    parser.Config
	Writer    writer.Config
}

// Merge concatenates the pages of files, in the given order, into output.
// Inputs are opened one at a time. The output appears only once it is
// complete.
func Merge(ctx context.Context, files []string, output string, opts MergeOptions) error {
	log := observability.OrNop(opts.Logger)
	if len(files) == 0 {
		return fault.ErrEmptyInput
	}
	if !opts.Overwrite {
		if _, err := os.Lstat(output); err == nil {
			return fault.OutputExists(output)
		}
	}
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fault.NotFound(path)
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}

	log.Info(fmt.Sprintf("Merging %d PDFs into %s", len(files), output),
		observability.Int("inputs", len(files)), observability.String("output", output))
	total := 0
	err := fileutil.WriteAtomic(ctx, output, opts.Overwrite, func(w io.Writer) error {
		out, err := newOutput(w, opts.Writer)
		if err != nil {
			return err
		}
		for _, path := range files {
			n, err := mergeOne(ctx, out, path, opts.Parser)
			if err != nil {
				return err
			}
			log.Debug("merged input", observability.String("path", path), observability.Int("pages", n))
			total += n
		}
		return out.finish()
	})
	if err != nil {
		return err
	}
	log.Info("merge complete", observability.String("output", output), observability.Int("pages", total))
	return nil
}

func mergeOne(ctx context.Context, out *output, path string, cfg parser.Config) (int, error) {
	src, err := Open(ctx, path, cfg)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	pages := src.Pages()
	if err := out.importPages(ctx, src, pages); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return len(pages), nil
}
