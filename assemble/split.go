package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/fileutil"
	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/parser"
	"github.com/wudi/pdfpages/writer"
)

type SplitOptions struct {
	Overwrite bool
	// Jobs bounds how many sources SplitAll processes at once.
	Jobs   int
	Logger observability.Logger
	Parser parser.Config
	Writer writer.Config
}

// PageFileName is the output name of page index i (0-based) of stem.
func PageFileName(stem string, i int) string {
	return fmt.Sprintf("%s_page_%d.pdf", stem, i+1)
}

// Split writes every page of source to outputDir as <stem>_page_<n>.pdf and
// returns the paths in page order. Pages written before a failure are left
// in place.
func Split(ctx context.Context, source, outputDir string, opts SplitOptions) ([]string, error) {
	log := observability.OrNop(opts.Logger)
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fault.NotFound(source)
		}
		return nil, fmt.Errorf("stat %s: %w", source, err)
	}
	if !hasPDFExt(source) {
		return nil, fault.InvalidFormat(source, errors.New("not a .pdf file"))
	}
	src, err := Open(ctx, source, opts.Parser)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	pages := src.Pages()
	if len(pages) == 0 {
		return nil, fault.New(fault.ErrEmptyDocument, source, nil)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	paths := make([]string, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		dest := filepath.Join(outputDir, PageFileName(stem, i))
		err := fileutil.WriteAtomic(ctx, dest, opts.Overwrite, func(w io.Writer) error {
			out, err := newOutput(w, opts.Writer)
			if err != nil {
				return err
			}
			if err := out.importPages(ctx, src, []Page{page}); err != nil {
				return err
			}
			return out.finish()
		})
		if err != nil {
			return paths, fmt.Errorf("page %d: %w", i+1, err)
		}
		log.Debug("wrote page", observability.String("path", dest), observability.Int("page", i+1))
		paths = append(paths, dest)
	}
	log.Info("split complete", observability.String("source", source), observability.Int("pages", len(paths)))
	return paths, nil
}

// SplitAll splits sources concurrently, at most opts.Jobs at a time. Each
// worker owns its source. Results are in source order; the first error
// cancels the remaining work.
func SplitAll(ctx context.Context, sources []string, outputDir string, opts SplitOptions) ([][]string, error) {
	if len(sources) == 0 {
		return nil, fault.ErrEmptyInput
	}
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	results := make([][]string, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, source := range sources {
		g.Go(func() error {
			paths, err := Split(gctx, source, outputDir, opts)
			if err != nil {
				return err
			}
			results[i] = paths
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
