// Package pageset discovers, deduplicates and orders page-numbered files.
package pageset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/observability"
)

// Input is a file or directory to collect from. Recursive only matters for
// directories.
type Input struct {
	Path      string
	Recursive bool
}

// File is a discovered candidate with an absolute path.
type File struct {
	Path string
	Name string
}

// Stem is the file name without its extension.
func (f File) Stem() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

type CollectOptions struct {
	// Extensions lists accepted extensions including the dot; matching is
	// case-insensitive. Empty means ".pdf".
	Extensions []string
	// Recursive descends into subdirectories of every directory input.
	Recursive bool
	Logger    observability.Logger
}

// Skipped is an explicit file input rejected for its extension.
type Skipped struct {
	Path   string
	Reason string
}

type CollectResult struct {
	Files   []File
	Skipped []Skipped
}

// DefaultExtensions is used when CollectOptions.Extensions is empty.
var DefaultExtensions = []string{".pdf"}

// Collect resolves inputs into candidate files. Directory listings are
// returned in traversal order; callers order them with Sort.
func Collect(ctx context.Context, inputs []Input, opts CollectOptions) (CollectResult, error) {
	log := observability.OrNop(opts.Logger)
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	var res CollectResult
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return CollectResult{}, err
		}
		abs, err := filepath.Abs(in.Path)
		if err != nil {
			return CollectResult{}, fault.New(fault.ErrNotFound, in.Path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return CollectResult{}, fault.NotFound(in.Path)
			}
			return CollectResult{}, fmt.Errorf("stat %s: %w", in.Path, err)
		}
		if !info.IsDir() {
			if !matchExt(abs, exts) {
				log.Warn("skipping file with unsupported extension", observability.String("path", abs))
				res.Skipped = append(res.Skipped, Skipped{Path: abs, Reason: "unsupported extension"})
				continue
			}
			res.Files = append(res.Files, File{Path: abs, Name: filepath.Base(abs)})
			continue
		}
		files, err := collectDir(ctx, abs, exts, opts.Recursive || in.Recursive)
		if err != nil {
			return CollectResult{}, err
		}
		log.Debug("collected directory", observability.String("path", abs), observability.Int("files", len(files)))
		res.Files = append(res.Files, files...)
	}
	return res, nil
}

func collectDir(ctx context.Context, dir string, exts []string, recursive bool) ([]File, error) {
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}
		var files []File
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if f, ok := candidate(filepath.Join(dir, e.Name()), exts); ok {
				files = append(files, f)
			}
		}
		return files, nil
	}
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if f, ok := candidate(path, exts); ok {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// candidate stats path so symlinked files are followed and directories
// (including symlinks to them) never match.
func candidate(path string, exts []string) (File, bool) {
	if !matchExt(path, exts) {
		return File{}, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return File{}, false
	}
	return File{Path: path, Name: filepath.Base(path)}, true
}

func matchExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
