package assemble

import (
	"context"
	"fmt"
	"io"

	"github.com/wudi/pdfpages/ir/raw"
	"github.com/wudi/pdfpages/writer"
)

// output is a document being written: a catalog, one flat Pages node and
// the pages imported into it.
type output struct {
	w       *writer.StreamWriter
	catalog raw.ObjectRef
	pages   raw.ObjectRef
	kids    []raw.Object
}

func newOutput(out io.Writer, cfg writer.Config) (*output, error) {
	w, err := writer.NewStreamWriter(out, cfg)
	if err != nil {
		return nil, err
	}
	return &output{w: w, catalog: w.Reserve(), pages: w.Reserve()}, nil
}

// importPages copies pages from src, in order, together with every object
// reachable from them.
func (o *output) importPages(ctx context.Context, src *Source, pages []Page) error {
	c := &copier{
		src:     src,
		w:       o.w,
		mapping: make(map[raw.ObjectRef]raw.ObjectRef, len(pages)),
	}
	// Pages are numbered up front so links between imported pages survive.
	newRefs := make([]raw.ObjectRef, len(pages))
	for i, p := range pages {
		newRefs[i] = o.w.Reserve()
		c.mapping[p.Ref] = newRefs[i]
	}
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		dict := raw.Dict()
		for k, v := range p.Dict.KV {
			if k == "Parent" {
				continue
			}
			dict.Set(k, c.rewrite(v))
		}
		for k, v := range p.Inherited {
			dict.Set(k, c.rewrite(v))
		}
		dict.Set("Type", raw.NameLiteral("Page"))
		dict.Set("Parent", raw.RefObj{R: o.pages})
		if err := o.w.WriteObject(newRefs[i], dict); err != nil {
			return fmt.Errorf("write page %d: %w", i+1, err)
		}
		if err := c.drain(ctx); err != nil {
			return err
		}
		o.kids = append(o.kids, raw.RefObj{R: newRefs[i]})
	}
	return nil
}

// finish writes the page tree root, the catalog and the trailer.
func (o *output) finish() error {
	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", raw.NewArray(o.kids...))
	pages.Set("Count", raw.NumberInt(int64(len(o.kids))))
	if err := o.w.WriteObject(o.pages, pages); err != nil {
		return err
	}
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.RefObj{R: o.pages})
	if err := o.w.WriteObject(o.catalog, catalog); err != nil {
		return err
	}
	return o.w.Close(o.catalog)
}

// copier renumbers objects of one source into the output. References to
// page tree nodes, the catalog and pages outside the import set become null.
type copier struct {
	src     *Source
	w       *writer.StreamWriter
	mapping map[raw.ObjectRef]raw.ObjectRef
	queue   []raw.ObjectRef
}

func (c *copier) rewrite(obj raw.Object) raw.Object {
	switch v := obj.(type) {
	case raw.RefObj:
		return c.mapRef(v.R)
	case *raw.ArrayObj:
		items := make([]raw.Object, len(v.Items))
		for i, it := range v.Items {
			items[i] = c.rewrite(it)
		}
		return raw.NewArray(items...)
	case *raw.DictObj:
		out := raw.Dict()
		for k, val := range v.KV {
			out.Set(k, c.rewrite(val))
		}
		return out
	case *raw.StreamObj:
		dict := raw.Dict()
		if v.Dict != nil {
			dict = c.rewrite(v.Dict).(*raw.DictObj)
		}
		return raw.NewStream(dict, v.Data)
	default:
		return obj
	}
}

func (c *copier) mapRef(ref raw.ObjectRef) raw.Object {
	if n, ok := c.mapping[ref]; ok {
		return raw.RefObj{R: n}
	}
	if c.src.nodes[ref] || c.src.pageSet[ref] {
		return raw.NullObj{}
	}
	if _, ok := c.src.doc.Objects[ref]; !ok {
		return raw.NullObj{}
	}
	n := c.w.Reserve()
	c.mapping[ref] = n
	c.queue = append(c.queue, ref)
	return raw.RefObj{R: n}
}

// drain writes every object queued by mapRef, following new references as
// they are discovered.
func (c *copier) drain(ctx context.Context) error {
	for len(c.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref := c.queue[0]
		c.queue = c.queue[1:]
		obj := c.rewrite(c.src.doc.Objects[ref])
		if err := c.w.WriteObject(c.mapping[ref], obj); err != nil {
			return fmt.Errorf("write object %v: %w", ref, err)
		}
	}
	return nil
}
