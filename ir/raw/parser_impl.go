package raw

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfpages/scanner"
)

// ScannedObject is an indirect object found by a linear scan, together with
// the byte offset of its "N G obj" header.
type ScannedObject struct {
	Ref    ObjectRef
	Offset int64
	Object Object
}

// ScanResult is everything a linear scan recovered from the input.
type ScanResult struct {
	Objects  []ScannedObject
	Trailers []*DictObj
}

// Scan walks the input from start to end collecting every parsable indirect
// object and trailer dictionary, ignoring cross-reference data entirely.
// Objects that fail to parse are skipped.
func Scan(ctx context.Context, r io.ReaderAt, cfg scanner.Config) (*ScanResult, error) {
	s := scanner.New(r, cfg)
	or := NewObjectReader(s)
	or.Recovery = cfg.Recovery
	res := &ScanResult{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := or.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Skip the offending byte and keep looking for headers.
			if serr := or.SeekTo(s.Position() + 1); serr != nil {
				break
			}
			continue
		}
		switch {
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := or.ReadObject(); err == nil {
				if d, ok := obj.(*DictObj); ok {
					res.Trailers = append(res.Trailers, d)
				}
			}
			continue
		case tok.Type != scanner.TokenNumber || !tok.IsInt:
			continue
		}
		genTok, err := or.Next()
		if err != nil {
			continue
		}
		if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
			or.Unread(genTok)
			continue
		}
		kw, err := or.Next()
		if err != nil {
			continue
		}
		if kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
			or.Unread(kw)
			or.Unread(genTok)
			continue
		}
		or.Unread(kw)
		or.Unread(genTok)
		or.Unread(tok)
		ref, obj, err := or.ReadIndirect(directLength)
		if err != nil {
			continue
		}
		res.Objects = append(res.Objects, ScannedObject{Ref: ref, Offset: tok.Pos, Object: obj})
	}
	return res, nil
}

func directLength(d *DictObj) int64 {
	if n, ok := d.Int("Length"); ok && n >= 0 {
		return n
	}
	return -1
}
