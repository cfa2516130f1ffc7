package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wudi/pdfpages/filters"
	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/recovery"
	"github.com/wudi/pdfpages/security"
	"github.com/wudi/pdfpages/xref"
)

// ErrNotPDF is returned when no %PDF- header appears near the start of the input.
var ErrNotPDF = errors.New("missing %PDF- header")

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// Config controls high-level PDF parsing (xref resolution + object loading).
// A nil Recovery parses strictly.
type Config struct {
	Recovery recovery.Strategy
	XRef     xref.ResolverConfig
	Limits   security.Limits
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

var _ raw.Parser = (*DocumentParser)(nil)

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Limits == (security.Limits{}) {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.XRef.Recovery == nil {
		cfg.XRef.Recovery = cfg.Recovery
	}
	if cfg.XRef.MaxXRefDepth == 0 {
		cfg.XRef.MaxXRefDepth = cfg.Limits.MaxXRefDepth
	}
	if cfg.XRef.Filters == nil {
		cfg.XRef.Filters = filters.NewDefaultPipeline(filters.Limits{MaxDecompressedSize: cfg.Limits.MaxDecompressedSize})
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	if p.cfg.Limits.MaxParseTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Limits.MaxParseTime)
		defer cancel()
	}

	version, base, err := detectHeader(r)
	if err != nil {
		return nil, err
	}
	xcfg := p.cfg.XRef
	xcfg.BaseOffset = base
	table, err := xref.NewResolver(xcfg).Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if _, ok := table.Trailer().Get("Encrypt"); ok {
		return nil, security.ErrEncrypted
	}

	doc, err := p.loadAll(ctx, r, table, base)
	if err != nil && p.canRepair(ctx, table, err) {
		// Offsets in the xref are wrong; rebuild it from a scan and retry once.
		if table, err = xref.Repair(ctx, r, xcfg.Filters); err == nil {
			doc, err = p.loadAll(ctx, r, table, 0)
		}
	}
	if err != nil {
		return nil, err
	}
	if _, ok := table.Trailer().Get("Encrypt"); ok {
		return nil, security.ErrEncrypted
	}
	doc.Version = version
	doc.Trailer = table.Trailer()

	if _, err := doc.Catalog(); err != nil {
		if p.cfg.Recovery == nil || p.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "catalog"}) == recovery.ActionFail {
			return nil, err
		}
		if ref, ok := findCatalog(doc); ok {
			trailer := raw.Dict()
			for _, k := range doc.Trailer.Keys() {
				v, _ := doc.Trailer.Get(k)
				trailer.Set(k, v)
			}
			trailer.Set("Root", raw.RefObj{R: ref})
			doc.Trailer = trailer
		}
	}
	p.populateMetadata(doc)
	return doc, nil
}

func (p *DocumentParser) canRepair(ctx context.Context, table xref.Table, err error) bool {
	if ctx.Err() != nil || p.cfg.Recovery == nil || table.Type() == "repaired" {
		return false
	}
	return p.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref:offsets"}) != recovery.ActionFail
}

func (p *DocumentParser) loadAll(ctx context.Context, r io.ReaderAt, table xref.Table, base int64) (*raw.Document, error) {
	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithLimits(p.cfg.Limits).
		WithRecovery(p.cfg.Recovery).
		WithFilters(p.cfg.XRef.Filters).
		WithBaseOffset(base).
		Build()
	if err != nil {
		return nil, err
	}
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object)}
	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free head entry
		}
		gen := 0
		if _, g, found := table.Lookup(objNum); found {
			gen = g
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Header mismatches mean a bad table; let the caller decide on a repair.
			if errors.Is(err, ErrHeaderMismatch) && table.Type() != "repaired" {
				return nil, fmt.Errorf("load object %d: %w", objNum, err)
			}
			if p.cfg.Recovery == nil || p.cfg.Recovery.OnError(ctx, err, recovery.Location{ObjectNum: objNum, ObjectGen: gen, Component: "loader"}) == recovery.ActionFail {
				return nil, fmt.Errorf("load object %d: %w", objNum, err)
			}
			continue
		}
		doc.Objects[ref] = obj
	}
	return doc, nil
}

// findCatalog returns the highest-numbered /Type /Catalog dictionary, which
// in an incrementally updated file is normally the newest.
func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	var best raw.ObjectRef
	found := false
	for ref, obj := range doc.Objects {
		d, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		if t, _ := d.Name("Type"); t != "Catalog" {
			continue
		}
		if !found || ref.Num > best.Num {
			best, found = ref, true
		}
	}
	return best, found
}

func (p *DocumentParser) populateMetadata(doc *raw.Document) {
	if doc.Trailer == nil {
		return
	}
	infoObj, ok := doc.Trailer.Get("Info")
	if !ok {
		return
	}
	dict, ok := doc.ResolveDict(infoObj)
	if !ok {
		return
	}
	doc.Metadata = raw.DocumentMetadata{
		Title:    stringValue(doc, dict, "Title"),
		Author:   stringValue(doc, dict, "Author"),
		Creator:  stringValue(doc, dict, "Creator"),
		Producer: stringValue(doc, dict, "Producer"),
		Subject:  stringValue(doc, dict, "Subject"),
	}
}

func stringValue(doc *raw.Document, dict *raw.DictObj, key string) string {
	obj, ok := dict.Get(key)
	if !ok {
		return ""
	}
	str, ok := doc.Resolve(obj).(raw.StringObj)
	if !ok {
		return ""
	}
	return string(str.Value())
}

// detectHeader finds "%PDF-x.y" in the first headerWindow bytes and returns
// the version together with the marker offset.
func detectHeader(r io.ReaderAt) (string, int64, error) {
	buf := make([]byte, headerWindow)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", 0, err
	}
	buf = buf[:n]
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 {
		return "", 0, ErrNotPDF
	}
	line := string(buf[idx+5:])
	if end := strings.IndexAny(line, "\r\n %"); end >= 0 {
		line = line[:end]
	}
	return strings.TrimSpace(line), int64(idx), nil
}
