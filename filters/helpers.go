package filters

import "github.com/wudi/pdfpages/ir/raw"

// ExtractFilters returns the /Filter names of a stream dictionary and a
// parameter slice of the same length; entries without /DecodeParms are nil.
// Indirect values must already be resolved by the caller.
func ExtractFilters(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	if dict == nil {
		return nil, nil
	}
	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	var names []string
	switch f := filterObj.(type) {
	case raw.NameObj:
		names = []string{f.Value()}
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Value())
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	params := make([]*raw.DictObj, len(names))
	p, _ := dict.Get("DecodeParms")
	switch p := p.(type) {
	case *raw.DictObj:
		params[0] = p
	case *raw.ArrayObj:
		for i, item := range p.Items {
			if i == len(params) {
				break
			}
			params[i], _ = item.(*raw.DictObj)
		}
	}
	return names, params
}
