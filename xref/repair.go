package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfpages/filters"
	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/scanner"
)

// ErrRepairFailed is returned when a full scan finds no objects at all.
var ErrRepairFailed = errors.New("repair failed: no objects found")

// Repair scans the entire file to reconstruct the xref table. It looks for
// "<num> <gen> obj" headers, trailer dictionaries and xref streams, and
// indexes the members of object streams that have no top-level definition.
func Repair(ctx context.Context, r io.ReaderAt, pipeline *filters.Pipeline) (Table, error) {
	if pipeline == nil {
		pipeline = filters.NewDefaultPipeline(filters.Limits{})
	}
	res, err := raw.Scan(ctx, r, scanner.Config{})
	if err != nil {
		return nil, err
	}
	if len(res.Objects) == 0 {
		return nil, ErrRepairFailed
	}

	t := &table{entries: make(map[int]entry), kind: "repaired"}
	var objStreams []raw.ScannedObject
	var xrefDicts []*raw.DictObj
	for _, so := range res.Objects {
		// Later definitions win, matching incremental update semantics.
		t.entries[so.Ref.Num] = entry{kind: kindInUse, offset: so.Offset, gen: so.Ref.Gen}
		if stm, ok := so.Object.(*raw.StreamObj); ok {
			switch name, _ := stm.Dict.Name("Type"); name {
			case "ObjStm":
				objStreams = append(objStreams, so)
			case "XRef":
				xrefDicts = append(xrefDicts, stm.Dict)
			}
		}
	}

	for _, so := range objStreams {
		nums, err := objectStreamMembers(ctx, pipeline, so.Object.(*raw.StreamObj))
		if err != nil {
			continue
		}
		for idx, num := range nums {
			if _, defined := t.entries[num]; !defined {
				t.entries[num] = entry{kind: kindCompressed, stream: so.Ref.Num, index: idx}
			}
		}
	}

	// Newest trailer first so mergeTrailer keeps the most recent values.
	for i := len(res.Trailers) - 1; i >= 0; i-- {
		t.mergeTrailer(res.Trailers[i])
	}
	for i := len(xrefDicts) - 1; i >= 0; i-- {
		t.mergeTrailer(xrefDicts[i])
	}
	if t.trailer == nil {
		t.trailer = raw.Dict()
	}
	if _, ok := t.trailer.Get("Size"); !ok {
		max := 0
		for num := range t.entries {
			if num > max {
				max = num
			}
		}
		t.trailer.Set("Size", raw.NumberInt(int64(max+1)))
	}
	return t, nil
}

// objectStreamMembers decodes the header of an object stream and returns the
// object numbers it contains, in index order.
func objectStreamMembers(ctx context.Context, pipeline *filters.Pipeline, stm *raw.StreamObj) ([]int, error) {
	header, err := ParseObjectStreamHeader(ctx, pipeline, stm)
	if err != nil {
		return nil, err
	}
	nums := make([]int, len(header.Entries))
	for i, e := range header.Entries {
		nums[i] = e.Num
	}
	return nums, nil
}
