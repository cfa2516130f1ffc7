package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfpages/filters"
	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/scanner"
)

// ObjectStream is a decoded /Type /ObjStm stream.
type ObjectStream struct {
	Entries []ObjectStreamEntry
	Data    []byte // decoded payload; Entries offsets are relative to First
	First   int64
}

type ObjectStreamEntry struct {
	Num    int
	Offset int64
}

// ParseObjectStreamHeader decodes an object stream and reads its
// "num offset" header pairs.
func ParseObjectStreamHeader(ctx context.Context, pipeline *filters.Pipeline, stm *raw.StreamObj) (*ObjectStream, error) {
	n, ok := stm.Dict.Int("N")
	if !ok || n < 0 {
		return nil, errors.New("object stream missing /N")
	}
	first, ok := stm.Dict.Int("First")
	if !ok || first < 0 {
		return nil, errors.New("object stream missing /First")
	}
	names, params := filters.ExtractFilters(stm.Dict)
	data, err := pipeline.Decode(ctx, stm.Data, names, params)
	if err != nil {
		return nil, fmt.Errorf("decode object stream: %w", err)
	}
	if first > int64(len(data)) {
		return nil, errors.New("object stream /First beyond data")
	}
	s := scanner.New(bytes.NewReader(data[:first]), scanner.Config{})
	out := &ObjectStream{Data: data, First: first}
	for i := int64(0); i < n; i++ {
		numTok, err1 := s.Next()
		offTok, err2 := s.Next()
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		if !isInt(numTok) || !isInt(offTok) {
			return nil, errors.New("object stream header is not numeric")
		}
		out.Entries = append(out.Entries, ObjectStreamEntry{Num: int(numTok.Int), Offset: offTok.Int})
	}
	return out, nil
}

// Object parses the object at index idx.
func (o *ObjectStream) Object(idx int) (raw.Object, error) {
	if idx < 0 || idx >= len(o.Entries) {
		return nil, fmt.Errorf("object stream index %d out of range", idx)
	}
	start := o.First + o.Entries[idx].Offset
	if start < 0 || start > int64(len(o.Data)) {
		return nil, errors.New("object stream offset out of range")
	}
	or := raw.NewObjectReader(scanner.New(bytes.NewReader(o.Data[start:]), scanner.Config{}))
	return or.ReadObject()
}
