package pageset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortNamesPageNumbers(t *testing.T) {
	got := SortNames([]string{"a_page_9.pdf", "a_page_10.pdf", "a_page_2.pdf"})
	assert.Equal(t, []string{"a_page_2.pdf", "a_page_9.pdf", "a_page_10.pdf"}, got)
}

func TestNaturalKeyOrdering(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"page_9", "page_10"},
		{"page_10", "page_11"},
		{"Page_2", "page_3"},
		{"a", "a1"},
		{"1abc", "abc"},
		{"x1", "x01"},
		{"x99999999999999999999998", "x99999999999999999999999"},
		{"file00010", "file11"},
		{"Éclair2", "éCLAIR10"},
	}
	for _, tc := range cases {
		assert.True(t, Less(tc.a, tc.b), "%q < %q", tc.a, tc.b)
		assert.False(t, Less(tc.b, tc.a), "%q !< %q", tc.b, tc.a)
	}
	assert.Equal(t, 0, NaturalKey("ABC").Compare(NaturalKey("abc")))
}

func TestNaturalKeyNormalization(t *testing.T) {
	// Composed and decomposed forms of "é" produce the same key.
	assert.Equal(t, 0, NaturalKey("caf\u00e9_1").Compare(NaturalKey("cafe\u0301_1")))
}

func TestSortStable(t *testing.T) {
	files := []File{
		{Path: "/b/Doc_1.pdf", Name: "Doc_1.pdf"},
		{Path: "/a/doc_1.pdf", Name: "doc_1.pdf"},
		{Path: "/a/doc_0.pdf", Name: "doc_0.pdf"},
	}
	got := Sort(files)
	assert.Equal(t, []string{"/a/doc_0.pdf", "/b/Doc_1.pdf", "/a/doc_1.pdf"}, paths(got))
	assert.Equal(t, "/b/Doc_1.pdf", files[0].Path, "input must not be reordered")
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
