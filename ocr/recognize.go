package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/fileutil"
	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/pageset"
)

// Recognize runs engine over inputs. If the engine supports batch
// operation, it is used; otherwise calls are executed sequentially.
func Recognize(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if b, ok := engine.(BatchEngine); ok {
		results, err := b.RecognizeBatch(ctx, inputs)
		if err != nil {
			return nil, err
		}
		if len(results) != len(inputs) {
			return nil, fmt.Errorf("%s returned %d results for %d inputs", engine.Name(), len(results), len(inputs))
		}
		return results, nil
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

type DirOptions struct {
	Input  []InputOption
	Logger observability.Logger
}

// RecognizeDir recognizes every page image in inputDir, in natural order,
// and writes one <stem>_res.json record per image to outputDir. Existing
// records are replaced. It returns the written paths.
func RecognizeDir(ctx context.Context, engine Engine, inputDir, outputDir string, opts DirOptions) ([]string, error) {
	log := observability.OrNop(opts.Logger)
	if engine == nil {
		return nil, ErrNoEngine
	}
	info, err := os.Stat(inputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fault.NotFound(inputDir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fault.InvalidFormat(inputDir, errors.New("not a directory"))
	}
	found, err := pageset.Collect(ctx, []pageset.Input{{Path: inputDir}}, pageset.CollectOptions{
		Extensions: ImageExtensions,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	files := pageset.Sort(found.Files)
	if len(files) == 0 {
		return nil, fault.New(fault.ErrEmptyInput, inputDir, nil)
	}
	log.Info(fmt.Sprintf("Recognizing %d images", len(files)), observability.String("engine", engine.Name()))

	inputs := make([]Input, 0, len(files))
	for i, f := range files {
		in, err := LoadImage(f.Path, opts.Input...)
		if err != nil {
			return nil, err
		}
		in.ID = f.Stem()
		in.PageIndex = i
		inputs = append(inputs, in)
	}
	results, err := Recognize(ctx, engine, inputs)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	written := make([]string, 0, len(files))
	for i, f := range files {
		rec := NewRecord(engine.Name(), inputs[i], results[i])
		dest := filepath.Join(outputDir, f.Stem()+RecordSuffix)
		err := fileutil.WriteAtomic(ctx, dest, true, func(w io.Writer) error {
			return WriteRecord(w, rec)
		})
		if err != nil {
			return written, fmt.Errorf("write %s: %w", dest, err)
		}
		log.Debug("wrote result", observability.String("path", dest), observability.Int("blocks", len(rec.Blocks)))
		written = append(written, dest)
	}
	return written, nil
}
