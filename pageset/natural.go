package pageset

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// KeyPart is one run of a natural key: either all ASCII digits or none.
type KeyPart struct {
	Digits bool
	// Text is the folded text for non-digit runs and the raw digits for
	// digit runs.
	Text string
	// Value is the digit run without leading zeros ("" for zero).
	Value string
}

// Key is a natural sort key; compare keys with Compare.
type Key []KeyPart

// NaturalKey splits s into alternating non-digit and digit runs. Text runs
// are NFC-normalized and case-folded.
func NaturalKey(s string) Key {
	folder := cases.Fold()
	s = norm.NFC.String(s)
	var key Key
	for i := 0; i < len(s); {
		j := i
		digits := isDigit(s[i])
		for j < len(s) && isDigit(s[j]) == digits {
			j++
		}
		run := s[i:j]
		if digits {
			key = append(key, KeyPart{Digits: true, Text: run, Value: strings.TrimLeft(run, "0")})
		} else {
			key = append(key, KeyPart{Text: folder.String(run)})
		}
		i = j
	}
	return key
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Compare orders keys element-wise. Digit runs compare numerically and sort
// before text runs at the same position; a prefix sorts first.
func (k Key) Compare(other Key) int {
	for i := 0; i < len(k) && i < len(other); i++ {
		if c := comparePart(k[i], other[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(k), len(other))
}

func comparePart(a, b KeyPart) int {
	switch {
	case a.Digits && !b.Digits:
		return -1
	case !a.Digits && b.Digits:
		return 1
	case !a.Digits:
		return strings.Compare(a.Text, b.Text)
	}
	if c := cmp.Compare(len(a.Value), len(b.Value)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	// Equal values: "1" before "01".
	return cmp.Compare(len(a.Text), len(b.Text))
}

// Less reports whether name a sorts before name b.
func Less(a, b string) bool {
	return NaturalKey(a).Compare(NaturalKey(b)) < 0
}

// Sort returns files stably ordered by the natural key of their stems.
func Sort(files []File) []File {
	type keyed struct {
		f   File
		key Key
	}
	tmp := make([]keyed, len(files))
	for i, f := range files {
		tmp[i] = keyed{f: f, key: NaturalKey(f.Stem())}
	}
	slices.SortStableFunc(tmp, func(a, b keyed) int { return a.key.Compare(b.key) })
	out := make([]File, len(files))
	for i, k := range tmp {
		out[i] = k.f
	}
	return out
}

// SortNames returns names stably ordered by natural key. Extensions take
// part in the comparison.
func SortNames(names []string) []string {
	out := slices.Clone(names)
	slices.SortStableFunc(out, func(a, b string) int { return NaturalKey(a).Compare(NaturalKey(b)) })
	return out
}
