package raw

import (
	"context"
	"fmt"
	"io"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// DocumentMetadata contains common PDF info fields.
type DocumentMetadata struct {
	Producer string
	Creator  string
	Title    string
	Author   string
	Subject  string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string // e.g., "1.7"
	Metadata  DocumentMetadata
	Encrypted bool
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}

// maxResolveDepth bounds reference chains such as "1 0 R" -> "2 0 R" -> ...
const maxResolveDepth = 32

// Resolve follows indirect references until it reaches a direct object.
// Dangling references resolve to nil.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < maxResolveDepth; i++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return nil
		}
		obj = next
	}
	return nil
}

// ResolveDict resolves obj and returns its dictionary, including the
// dictionary of a stream.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	switch v := d.Resolve(obj).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, v.Dict != nil
	default:
		return nil, false
	}
}

// Catalog returns the document catalog named by the trailer /Root entry.
func (d *Document) Catalog() (*DictObj, error) {
	if d.Trailer == nil {
		return nil, fmt.Errorf("missing trailer")
	}
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, fmt.Errorf("trailer has no /Root")
	}
	cat, ok := d.ResolveDict(root)
	if !ok {
		return nil, fmt.Errorf("/Root does not resolve to a dictionary")
	}
	return cat, nil
}
