package raw

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfpages/recovery"
	"github.com/wudi/pdfpages/scanner"
)

// ErrNotIndirect is returned by ReadIndirect when the input does not start
// with an "N G obj" header.
var ErrNotIndirect = errors.New("not an indirect object")

// ObjectReader assembles PDF objects from scanner tokens. It keeps a small
// push-back buffer so callers can peek at upcoming tokens.
type ObjectReader struct {
	s            scanner.Scanner
	buf          []scanner.Token
	Recovery     recovery.Strategy
	MaxArraySize int
	MaxDictSize  int
}

func NewObjectReader(s scanner.Scanner) *ObjectReader {
	return &ObjectReader{s: s}
}

// Scanner exposes the underlying token source.
func (r *ObjectReader) Scanner() scanner.Scanner { return r.s }

func (r *ObjectReader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *ObjectReader) Unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}

// SeekTo repositions the scanner and drops any pushed-back tokens.
func (r *ObjectReader) SeekTo(offset int64) error {
	r.buf = r.buf[:0]
	return r.s.SeekTo(offset)
}

// ReadIndirect parses "N G obj <object> [stream] endobj" at the current
// position. length reports the declared payload length of a stream
// dictionary, or a negative value when unknown; it may be nil.
func (r *ObjectReader) ReadIndirect(length func(*DictObj) int64) (ObjectRef, Object, error) {
	numTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	genTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt || genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return ObjectRef{}, nil, ErrNotIndirect
	}
	kw, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return ObjectRef{}, nil, ErrNotIndirect
	}
	ref := ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}
	if rc, ok := r.s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "object"})
	}

	obj, err := r.ReadObject()
	if err != nil {
		return ref, nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, err)
	}
	if dict, ok := obj.(*DictObj); ok {
		if len(r.buf) == 0 {
			hint := int64(-1)
			if length != nil {
				hint = length(dict)
			}
			r.s.SetNextStreamLength(hint)
		}
		tok, err := r.Next()
		switch {
		case err == nil && tok.Type == scanner.TokenStream:
			obj = NewStream(dict, tok.Bytes)
		case err == nil:
			r.Unread(tok)
		case !errors.Is(err, io.EOF):
			return ref, nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, err)
		}
	}
	if t, err := r.Next(); err == nil {
		if t.Type != scanner.TokenKeyword || t.Str != "endobj" {
			r.Unread(t)
		}
	}
	return ref, obj, nil
}

// ReadObject parses one direct object.
func (r *ObjectReader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return NumberObj{F: tok.Float}, nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenArray:
		return r.readArray()
	case scanner.TokenDict:
		return r.readDict()
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	}
	return nil, fmt.Errorf("unexpected token %v %q at offset %d", tok.Type, tok.Str, tok.Pos)
}

func (r *ObjectReader) readArray() (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			if fixed := r.recover(err, "array"); fixed {
				return arr, nil
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			break
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
			r.Unread(tok)
			if r.recover(errors.New("unterminated array"), "array") {
				return arr, nil
			}
			return nil, errors.New("unterminated array")
		}
		r.Unread(tok)
		item, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		arr.Append(item)
		if r.MaxArraySize > 0 && arr.Len() > r.MaxArraySize {
			return nil, fmt.Errorf("array exceeds %d elements", r.MaxArraySize)
		}
	}
	return arr, nil
}

func (r *ObjectReader) readDict() (Object, error) {
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			if r.recover(err, "dict") {
				return d, nil
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			break
		}
		if tok.Type != scanner.TokenName {
			// A missing ">>" usually shows up as a stray endobj or stream.
			if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" || tok.Type == scanner.TokenStream {
				r.Unread(tok)
				if r.recover(errors.New("unterminated dictionary"), "dict") {
					return d, nil
				}
				return nil, errors.New("unterminated dictionary")
			}
			return nil, fmt.Errorf("expected name in dict, got %v", tok.Type)
		}
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		// Null values are equivalent to an absent key.
		if _, isNull := val.(NullObj); !isNull {
			d.Set(tok.Str, val)
		}
		if r.MaxDictSize > 0 && d.Len() > r.MaxDictSize {
			return nil, fmt.Errorf("dictionary exceeds %d entries", r.MaxDictSize)
		}
	}
	return d, nil
}

func (r *ObjectReader) recover(err error, component string) bool {
	if r.Recovery == nil {
		return false
	}
	loc := recovery.Location{ByteOffset: r.s.Position(), Component: "raw:" + component}
	switch r.Recovery.OnError(nil, err, loc) {
	case recovery.ActionFix, recovery.ActionWarn, recovery.ActionSkip:
		return true
	default:
		return false
	}
}
