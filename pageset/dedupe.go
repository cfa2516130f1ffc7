package pageset

import "path/filepath"

// Canonical returns the absolute, symlink-resolved form of path, or the
// cleaned absolute path when symlinks cannot be evaluated.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Dedupe drops files whose canonical path was already seen, keeping the
// first occurrence and the relative order of the rest.
func Dedupe(files []File) []File {
	seen := make(map[string]struct{}, len(files))
	out := make([]File, 0, len(files))
	for _, f := range files {
		key := Canonical(f.Path)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
