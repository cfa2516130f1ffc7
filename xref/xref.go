package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/wudi/pdfpages/filters"
	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/recovery"
	"github.com/wudi/pdfpages/scanner"
)

// Table maps object numbers to their storage location.
type Table interface {
	// Lookup returns the file offset of an uncompressed object.
	Lookup(objNum int) (offset int64, gen int, found bool)
	// ObjStream returns the object stream holding a compressed object.
	ObjStream(objNum int) (streamNum int, index int, found bool)
	// Objects lists every in-use object number in ascending order.
	Objects() []int
	Trailer() *raw.DictObj
	Type() string
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Filters      *filters.Pipeline
	// BaseOffset is the position of the %PDF header. Offsets written by
	// producers that ignore leading garbage are retried relative to it.
	BaseOffset int64
}

// NewResolver returns a resolver for classic tables, xref streams and hybrid
// files. When the recovery strategy allows it, unreadable xref data is
// replaced by a table rebuilt from a full scan.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.Filters == nil {
		cfg.Filters = filters.NewDefaultPipeline(filters.Limits{})
	}
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	return &resolver{cfg: cfg}
}

type resolver struct {
	cfg ResolverConfig
}

// ErrNoStartXRef is returned when the file tail has no startxref marker.
var ErrNoStartXRef = errors.New("startxref not found")

func (res *resolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	t, err := res.resolveChain(ctx, r)
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if res.cfg.Recovery == nil {
		return nil, err
	}
	if res.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"}) == recovery.ActionFail {
		return nil, err
	}
	return Repair(ctx, r, res.cfg.Filters)
}

func (res *resolver) resolveChain(ctx context.Context, r io.ReaderAt) (*table, error) {
	size, err := ReaderSize(r)
	if err != nil {
		return nil, err
	}
	start, err := findStartXRef(r, size)
	if err != nil {
		return nil, err
	}

	t := &table{entries: make(map[int]entry), kind: "table"}
	s := scanner.New(r, scanner.Config{})
	or := raw.NewObjectReader(s)
	visited := make(map[int64]bool)
	queue := []int64{start}
	for depth := 0; len(queue) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= res.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain exceeds %d sections", res.cfg.MaxXRefDepth)
		}
		off := queue[0]
		queue = queue[1:]
		if visited[off] {
			continue
		}
		visited[off] = true

		sec, err := res.readSectionAt(ctx, or, off, size)
		if err != nil {
			return nil, err
		}
		for num, e := range sec.entries {
			if _, seen := t.entries[num]; !seen {
				t.entries[num] = e
			}
		}
		if sec.stream && depth == 0 {
			t.kind = "xref-stream"
		}
		t.mergeTrailer(sec.trailer)

		// Hybrid files: the XRefStm section takes precedence over Prev.
		var next []int64
		if stm, ok := sec.trailer.Int("XRefStm"); ok {
			next = append(next, stm)
			if depth == 0 {
				t.kind = "hybrid"
			}
		}
		if prev, ok := sec.trailer.Int("Prev"); ok {
			next = append(next, prev)
		}
		queue = append(next, queue...)
	}
	if t.trailer == nil {
		return nil, errors.New("xref has no trailer")
	}
	// Free entries only shadow older sections; they are not objects.
	for num, e := range t.entries {
		if e.kind == kindFree {
			delete(t.entries, num)
		}
	}
	return t, nil
}

type section struct {
	entries map[int]entry
	trailer *raw.DictObj
	stream  bool
}

func (res *resolver) readSectionAt(ctx context.Context, or *raw.ObjectReader, off, size int64) (*section, error) {
	sec, err := res.readSection(ctx, or, off, size)
	if err != nil && res.cfg.BaseOffset > 0 && off+res.cfg.BaseOffset < size {
		if alt, altErr := res.readSection(ctx, or, off+res.cfg.BaseOffset, size); altErr == nil {
			return alt, nil
		}
	}
	return sec, err
}

func (res *resolver) readSection(ctx context.Context, or *raw.ObjectReader, off, size int64) (*section, error) {
	if off <= 0 || off >= size {
		return nil, fmt.Errorf("xref offset out of range: %d", off)
	}
	if err := or.SeekTo(off); err != nil {
		return nil, err
	}
	tok, err := or.Next()
	if err != nil {
		return nil, fmt.Errorf("xref at %d: %w", off, err)
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		return readClassic(or)
	}
	or.Unread(tok)
	return res.readStream(ctx, or)
}

// readClassic parses subsections of "offset gen n|f" entries up to and
// including the trailer dictionary.
func readClassic(or *raw.ObjectReader) (*section, error) {
	sec := &section{entries: make(map[int]entry)}
	for {
		tok, err := or.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := or.ReadObject()
			if err != nil {
				return nil, fmt.Errorf("xref trailer: %w", err)
			}
			d, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, errors.New("xref trailer is not a dictionary")
			}
			sec.trailer = d
			return sec, nil
		}
		countTok, err := or.Next()
		if err != nil {
			return nil, fmt.Errorf("xref subsection: %w", err)
		}
		if !isInt(tok) || !isInt(countTok) || tok.Int < 0 || countTok.Int < 0 {
			return nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		first := int(tok.Int)
		for i := 0; i < int(countTok.Int); i++ {
			offTok, err1 := or.Next()
			genTok, err2 := or.Next()
			kindTok, err3 := or.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("xref entry: %w", err)
			}
			if !isInt(offTok) || !isInt(genTok) || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at %d", offTok.Pos)
			}
			num := first + i
			if _, dup := sec.entries[num]; dup {
				continue
			}
			switch kindTok.Str {
			case "n":
				if offTok.Int > 0 {
					sec.entries[num] = entry{kind: kindInUse, offset: offTok.Int, gen: int(genTok.Int)}
				}
			case "f":
				sec.entries[num] = entry{kind: kindFree, gen: int(genTok.Int)}
			default:
				return nil, fmt.Errorf("invalid xref entry type %q", kindTok.Str)
			}
		}
	}
}

func (res *resolver) readStream(ctx context.Context, or *raw.ObjectReader) (*section, error) {
	_, obj, err := or.ReadIndirect(func(d *raw.DictObj) int64 {
		if n, ok := d.Int("Length"); ok {
			return n
		}
		return -1
	})
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("xref offset does not point to a table or stream")
	}
	if name, _ := stm.Dict.Name("Type"); name != "XRef" {
		return nil, errors.New("xref stream has wrong /Type")
	}
	names, params := filters.ExtractFilters(stm.Dict)
	data, err := res.cfg.Filters.Decode(ctx, stm.Data, names, params)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	entries, err := parseStreamEntries(stm.Dict, data)
	if err != nil {
		return nil, err
	}
	return &section{entries: entries, trailer: stm.Dict, stream: true}, nil
}

func parseStreamEntries(d *raw.DictObj, data []byte) (map[int]entry, error) {
	wObj, _ := d.Get("W")
	wArr, ok := wObj.(*raw.ArrayObj)
	if !ok || wArr.Len() != 3 {
		return nil, errors.New("xref stream missing /W")
	}
	var w [3]int
	for i, item := range wArr.Items {
		n, ok := item.(raw.NumberObj)
		if !ok || n.Int() < 0 || n.Int() > 8 {
			return nil, errors.New("invalid /W entry")
		}
		w[i] = int(n.Int())
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, errors.New("empty /W")
	}

	size, _ := d.Int("Size")
	index := []int64{0, size}
	if idxObj, ok := d.Get("Index"); ok {
		arr, ok := idxObj.(*raw.ArrayObj)
		if !ok || arr.Len()%2 != 0 {
			return nil, errors.New("invalid /Index")
		}
		index = index[:0]
		for _, item := range arr.Items {
			n, ok := item.(raw.NumberObj)
			if !ok {
				return nil, errors.New("invalid /Index entry")
			}
			index = append(index, n.Int())
		}
	}

	entries := make(map[int]entry)
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return entries, nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1) // default when W[0] is 0
			if w[0] > 0 {
				typ = be(row[:w[0]])
			}
			f2 := be(row[w[0] : w[0]+w[1]])
			f3 := be(row[w[0]+w[1]:])
			num := first + j
			if _, dup := entries[num]; dup {
				continue
			}
			switch typ {
			case 0:
				entries[num] = entry{kind: kindFree, gen: int(f3)}
			case 1:
				if f2 > 0 {
					entries[num] = entry{kind: kindInUse, offset: f2, gen: int(f3)}
				}
			case 2:
				entries[num] = entry{kind: kindCompressed, stream: int(f2), index: int(f3)}
			}
		}
	}
	return entries, nil
}

func be(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func isInt(tok scanner.Token) bool { return tok.Type == scanner.TokenNumber && tok.IsInt }

const tailWindow = 64 * 1024

func findStartXRef(r io.ReaderAt, size int64) (int64, error) {
	start := size - tailWindow
	if start < 0 {
		start = 0
	}
	buf := make([]byte, size-start)
	n, err := r.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	buf = buf[:n]
	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoStartXRef
	}
	rest := bytes.TrimLeft(buf[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	off, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	return off, nil
}

// ReaderSize reports the length of r for the reader types used in practice.
func ReaderSize(r io.ReaderAt) (int64, error) {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size(), nil
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := v.Stat()
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	}
	// Probe for the end with exponentially growing offsets, then bisect.
	probe := func(off int64) bool {
		var b [1]byte
		n, _ := r.ReadAt(b[:], off)
		return n == 1
	}
	lo, hi := int64(0), int64(1)
	for probe(hi - 1) {
		lo = hi
		hi *= 2
	}
	for lo < hi {
		mid := (lo + hi) / 2
		if probe(mid) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

type entryKind int

const (
	kindFree entryKind = iota
	kindInUse
	kindCompressed
)

type entry struct {
	kind   entryKind
	offset int64
	gen    int
	stream int
	index  int
}

type table struct {
	entries map[int]entry
	trailer *raw.DictObj
	kind    string
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.kind != kindInUse {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.kind != kindCompressed {
		return 0, 0, false
	}
	return e.stream, e.index, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.kind != kindFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) Type() string          { return t.kind }

// trailerKeys are inherited from older sections when the newest omits them.
var trailerKeys = []string{"Root", "Info", "ID", "Encrypt", "Size"}

func (t *table) mergeTrailer(d *raw.DictObj) {
	if d == nil {
		return
	}
	if t.trailer == nil {
		t.trailer = raw.Dict()
	}
	for _, k := range trailerKeys {
		if _, have := t.trailer.Get(k); have {
			continue
		}
		if v, ok := d.Get(k); ok {
			t.trailer.Set(k, v)
		}
	}
}
