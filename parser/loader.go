package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wudi/pdfpages/filters"
	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/recovery"
	"github.com/wudi/pdfpages/scanner"
	"github.com/wudi/pdfpages/security"
	"github.com/wudi/pdfpages/xref"
)

// ErrObjectNotFound is returned for object numbers absent from the xref table.
var ErrObjectNotFound = errors.New("object not found in xref")

// ErrHeaderMismatch means the xref offset does not point at the requested object.
var ErrHeaderMismatch = errors.New("object header mismatch")

type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

type ObjectLoaderBuilder struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	limits    security.Limits
	recovery  recovery.Strategy
	pipeline  *filters.Pipeline
	base      int64
}

func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}
func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithRecovery(r recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = r
	return b
}

func (b *ObjectLoaderBuilder) WithFilters(p *filters.Pipeline) *ObjectLoaderBuilder {
	b.pipeline = p
	return b
}

// WithBaseOffset sets the %PDF header position. Objects that are not found
// at their xref offset are retried relative to it.
func (b *ObjectLoaderBuilder) WithBaseOffset(off int64) *ObjectLoaderBuilder {
	b.base = off
	return b
}

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.reader == nil || b.xrefTable == nil {
		return nil, errors.New("reader and xrefTable required")
	}
	limits := b.limits
	if limits == (security.Limits{}) {
		limits = security.DefaultLimits()
	}
	pipeline := b.pipeline
	if pipeline == nil {
		pipeline = filters.NewDefaultPipeline(filters.Limits{MaxDecompressedSize: limits.MaxDecompressedSize})
	}
	cfg := scanner.Config{
		Recovery:        b.recovery,
		MaxStringLength: limits.MaxStringLength,
		MaxArrayDepth:   limits.MaxIndirectDepth,
		MaxDictDepth:    limits.MaxIndirectDepth,
		MaxStreamLength: limits.MaxStreamLength,
	}
	newReader := func() *raw.ObjectReader {
		or := raw.NewObjectReader(scanner.New(b.reader, cfg))
		or.Recovery = b.recovery
		or.MaxArraySize = limits.MaxArraySize
		or.MaxDictSize = limits.MaxDictSize
		return or
	}
	return &objectLoader{
		xrefTable: b.xrefTable,
		recovery:  b.recovery,
		pipeline:  pipeline,
		base:      b.base,
		objects:   newReader(),
		lengths:   newReader(),
		objstm:    make(map[int]*xref.ObjectStream),
		lenCache:  make(map[raw.ObjectRef]int64),
	}, nil
}

type objectLoader struct {
	xrefTable xref.Table
	recovery  recovery.Strategy
	pipeline  *filters.Pipeline
	base      int64

	mu sync.Mutex
	// objects reads whole objects; lengths resolves indirect /Length values
	// while objects is positioned inside a stream dictionary.
	objects  *raw.ObjectReader
	lengths  *raw.ObjectReader
	objstm   map[int]*xref.ObjectStream
	lenCache map[raw.ObjectRef]int64
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offset, gen, found := o.xrefTable.Lookup(ref.Num)
	if !found {
		if osNum, idx, ok := o.xrefTable.ObjStream(ref.Num); ok {
			return o.loadFromObjectStream(ctx, ref, osNum, idx)
		}
		return nil, ErrObjectNotFound
	}
	return o.loadAtOffset(o.objects, raw.ObjectRef{Num: ref.Num, Gen: gen}, offset, o.streamLength)
}

func (o *objectLoader) loadAtOffset(or *raw.ObjectReader, ref raw.ObjectRef, offset int64, length func(*raw.DictObj) int64) (raw.Object, error) {
	obj, err := o.readIndirectAt(or, ref, offset, length)
	if err != nil && o.base > 0 && errors.Is(err, ErrHeaderMismatch) {
		if alt, altErr := o.readIndirectAt(or, ref, offset+o.base, length); altErr == nil {
			return alt, nil
		}
	}
	return obj, err
}

func (o *objectLoader) readIndirectAt(or *raw.ObjectReader, ref raw.ObjectRef, offset int64, length func(*raw.DictObj) int64) (raw.Object, error) {
	if err := or.SeekTo(offset); err != nil {
		return nil, err
	}
	got, obj, err := or.ReadIndirect(length)
	if err != nil {
		if errors.Is(err, raw.ErrNotIndirect) {
			return nil, fmt.Errorf("%w: %v at offset %d", ErrHeaderMismatch, ref, offset)
		}
		return nil, err
	}
	if got.Num != ref.Num {
		return nil, fmt.Errorf("%w: want %v, found %v at offset %d", ErrHeaderMismatch, ref, got, offset)
	}
	return obj, nil
}

// streamLength resolves /Length for the scanner, or returns -1 so the
// scanner searches for endstream instead.
func (o *objectLoader) streamLength(dict *raw.DictObj) int64 {
	val, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch v := val.(type) {
	case raw.NumberObj:
		return v.Int()
	case raw.RefObj:
		if n, ok := o.lenCache[v.R]; ok {
			return n
		}
		n := int64(-1)
		if offset, gen, found := o.xrefTable.Lookup(v.R.Num); found {
			obj, err := o.loadAtOffset(o.lengths, raw.ObjectRef{Num: v.R.Num, Gen: gen}, offset, nil)
			if num, ok := obj.(raw.NumberObj); err == nil && ok {
				n = num.Int()
			}
		}
		o.lenCache[v.R] = n
		return n
	default:
		return -1
	}
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, objStreamNum int, idx int) (raw.Object, error) {
	os, ok := o.objstm[objStreamNum]
	if !ok {
		offset, gen, found := o.xrefTable.Lookup(objStreamNum)
		if !found {
			return nil, fmt.Errorf("object stream %d missing from xref", objStreamNum)
		}
		obj, err := o.loadAtOffset(o.objects, raw.ObjectRef{Num: objStreamNum, Gen: gen}, offset, o.streamLength)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", objStreamNum, err)
		}
		stm, ok := obj.(*raw.StreamObj)
		if !ok {
			return nil, fmt.Errorf("object stream %d is not a stream", objStreamNum)
		}
		os, err = xref.ParseObjectStreamHeader(ctx, o.pipeline, stm)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", objStreamNum, err)
		}
		o.objstm[objStreamNum] = os
	}
	// The index from the xref is authoritative; fall back to a search by
	// number when a producer wrote a wrong one.
	if idx < len(os.Entries) && os.Entries[idx].Num == ref.Num {
		return os.Object(idx)
	}
	for i, e := range os.Entries {
		if e.Num == ref.Num {
			return os.Object(i)
		}
	}
	return nil, fmt.Errorf("object %d not found in object stream %d", ref.Num, objStreamNum)
}
