// Package assemble merges PDF page sequences into one document and splits
// documents into single-page files.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfpages/fault"
	"github.com/wudi/pdfpages/filters"
	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/parser"
)

// inheritable page attributes that are materialized on copied pages.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// maxTreeDepth bounds page tree recursion.
const maxTreeDepth = 64

// Page is one leaf of a source page tree.
type Page struct {
	Ref  raw.ObjectRef
	Dict *raw.DictObj
	// Inherited holds attributes found on ancestors and missing on Dict.
	Inherited map[string]raw.Object
}

// Source is a parsed input document. The file handle is released once the
// document is loaded; Close drops the object graph.
type Source struct {
	Path  string
	doc   *raw.Document
	pages []Page
	// nodes are intermediate page tree nodes plus the catalog; they are
	// never copied into an output.
	nodes   map[raw.ObjectRef]bool
	pageSet map[raw.ObjectRef]bool
}

// Open parses the PDF at path and walks its page tree.
func Open(ctx context.Context, path string, cfg parser.Config) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fault.NotFound(path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.IsDir() {
		return nil, fault.InvalidFormat(path, errors.New("is a directory"))
	}

	doc, err := parser.NewDocumentParser(cfg).Parse(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.InvalidFormat(path, err)
	}
	src := &Source{
		Path:    path,
		doc:     doc,
		nodes:   make(map[raw.ObjectRef]bool),
		pageSet: make(map[raw.ObjectRef]bool),
	}
	if err := src.walk(); err != nil {
		return nil, fault.InvalidFormat(path, err)
	}
	return src, nil
}

// Pages returns the leaves of the page tree in document order.
func (s *Source) Pages() []Page { return s.pages }

// Document exposes the parsed object graph.
func (s *Source) Document() *raw.Document { return s.doc }

func (s *Source) Close() error {
	s.doc = nil
	s.pages = nil
	return nil
}

func (s *Source) walk() error {
	catalog, err := s.doc.Catalog()
	if err != nil {
		return err
	}
	if root, ok := s.doc.Trailer.Ref("Root"); ok {
		s.nodes[root] = true
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return nil
	}
	ref, ok := pagesObj.(raw.RefObj)
	if !ok {
		return errors.New("catalog /Pages is not an indirect reference")
	}
	return s.visit(ref.R, map[string]raw.Object{}, 0)
}

func (s *Source) visit(ref raw.ObjectRef, inherited map[string]raw.Object, depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("page tree deeper than %d levels", maxTreeDepth)
	}
	if s.nodes[ref] || s.pageSet[ref] {
		// Cycles and repeated kids are ignored.
		return nil
	}
	dict, ok := s.doc.ResolveDict(raw.RefObj{R: ref})
	if !ok {
		return nil
	}
	typ, _ := dict.Name("Type")
	kidsObj, hasKids := dict.Get("Kids")
	if typ == "Page" || (typ != "Pages" && !hasKids) {
		page := Page{Ref: ref, Dict: dict, Inherited: make(map[string]raw.Object)}
		for _, key := range inheritable {
			if _, own := dict.Get(key); own {
				continue
			}
			if v, ok := inherited[key]; ok {
				page.Inherited[key] = v
			}
		}
		s.pageSet[ref] = true
		s.pages = append(s.pages, page)
		return nil
	}

	s.nodes[ref] = true
	next := make(map[string]raw.Object, len(inherited))
	for k, v := range inherited {
		next[k] = v
	}
	for _, key := range inheritable {
		if v, ok := dict.Get(key); ok {
			next[key] = v
		}
	}
	kids, ok := s.doc.Resolve(kidsObj).(*raw.ArrayObj)
	if !ok {
		return nil
	}
	for _, kid := range kids.Items {
		kref, ok := kid.(raw.RefObj)
		if !ok {
			continue
		}
		if err := s.visit(kref.R, next, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// ContentStream returns the decoded, concatenated content of page p.
func (s *Source) ContentStream(ctx context.Context, p Page) ([]byte, error) {
	pipeline := filters.NewDefaultPipeline(filters.Limits{})
	var out []byte
	decode := func(obj raw.Object) error {
		stm, ok := s.doc.Resolve(obj).(*raw.StreamObj)
		if !ok {
			return nil
		}
		names, params := filters.ExtractFilters(stm.Dict)
		data, err := pipeline.Decode(ctx, stm.Data, names, params)
		if err != nil {
			return err
		}
		out = append(out, data...)
		return nil
	}
	contents, ok := p.Dict.Get("Contents")
	if !ok {
		return nil, nil
	}
	if arr, ok := s.doc.Resolve(contents).(*raw.ArrayObj); ok {
		for _, item := range arr.Items {
			if err := decode(item); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	if err := decode(contents); err != nil {
		return nil, err
	}
	return out, nil
}

func hasPDFExt(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
