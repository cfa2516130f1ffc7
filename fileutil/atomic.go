// Package fileutil writes output files through a temporary file in the
// destination directory so readers never observe partial output.
package fileutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wudi/pdfpages/fault"
)

const bufSize = 64 * 1024

// WriteAtomic calls fn with a buffered writer backed by a temp file next to
// dest, then fsyncs and moves it onto dest. Without overwrite an existing
// dest yields fault.ErrOutputExists and is left untouched. On failure the
// temp file is removed.
func WriteAtomic(ctx context.Context, dest string, overwrite bool, fn func(w io.Writer) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Lstat(dest); err == nil {
			return fault.OutputExists(dest)
		}
	}
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = os.Chmod(tmpPath, 0o644)

	bw := bufio.NewWriterSize(tmp, bufSize)
	if err := fn(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := replace(tmpPath, dest, overwrite); err != nil {
		return err
	}
	_ = syncDir(dir)
	return nil
}

// replace moves tmp onto dest. Without overwrite it links instead of
// renaming so a file created concurrently at dest is never clobbered.
func replace(tmp, dest string, overwrite bool) error {
	if overwrite {
		return os.Rename(tmp, dest)
	}
	if err := os.Link(tmp, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fault.OutputExists(dest)
		}
		// Filesystems without hard links: fall back to a checked rename.
		if _, statErr := os.Lstat(dest); statErr == nil {
			return fault.OutputExists(dest)
		}
		return os.Rename(tmp, dest)
	}
	return os.Remove(tmp)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
