package writer

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"math"
	"strconv"

	"github.com/wudi/pdfpages/ir/raw"
)

// Serialize renders a direct object in PDF syntax.
func Serialize(obj raw.Object) []byte {
	return appendObject(nil, obj)
}

func appendObject(buf []byte, o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return appendName(buf, v.Val)
	case raw.NumberObj:
		if v.IsInt {
			return strconv.AppendInt(buf, v.I, 10)
		}
		return appendReal(buf, v.F)
	case raw.BoolObj:
		return strconv.AppendBool(buf, v.V)
	case raw.NullObj, nil:
		return append(buf, "null"...)
	case raw.StringObj:
		if v.Hex {
			return appendHexString(buf, v.Bytes)
		}
		return appendLiteralString(buf, v.Bytes)
	case *raw.ArrayObj:
		buf = append(buf, '[')
		for i, it := range v.Items {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendObject(buf, it)
		}
		return append(buf, ']')
	case *raw.DictObj:
		return appendDict(buf, v)
	case *raw.StreamObj:
		dict := raw.Dict()
		if v.Dict != nil {
			for k, val := range v.Dict.KV {
				dict.KV[k] = val
			}
		}
		// Indirect lengths are not carried across documents.
		dict.Set("Length", raw.NumberInt(int64(len(v.Data))))
		buf = appendDict(buf, dict)
		buf = append(buf, "\nstream\n"...)
		buf = append(buf, v.Data...)
		return append(buf, "\nendstream"...)
	case raw.RefObj:
		return fmt.Appendf(buf, "%d %d R", v.R.Num, v.R.Gen)
	default:
		return append(buf, "null"...)
	}
}

func appendDict(buf []byte, d *raw.DictObj) []byte {
	buf = append(buf, "<<"...)
	for _, k := range d.Keys() {
		v := d.KV[k]
		if v == nil {
			continue
		}
		buf = appendName(buf, k)
		buf = append(buf, ' ')
		buf = appendObject(buf, v)
		buf = append(buf, ' ')
	}
	return append(buf, ">>"...)
}

// appendName writes /name, escaping delimiters, whitespace, '#' and
// non-printable bytes as #xx.
func appendName(buf []byte, name string) []byte {
	buf = append(buf, '/')
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch < 0x21 || ch > 0x7E || ch == '#' || isDelimiter(ch) {
			buf = fmt.Appendf(buf, "#%02X", ch)
			continue
		}
		buf = append(buf, ch)
	}
	return buf
}

func isDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func appendReal(buf []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(buf, '0')
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(buf, int64(f), 10)
	}
	return strconv.AppendFloat(buf, f, 'f', -1, 64)
}

func appendLiteralString(buf []byte, s []byte) []byte {
	buf = append(buf, '(')
	for _, ch := range s {
		switch ch {
		case '\\', '(', ')':
			buf = append(buf, '\\', ch)
		case '\n':
			buf = append(buf, `\n`...)
		case '\r':
			buf = append(buf, `\r`...)
		case '\t':
			buf = append(buf, `\t`...)
		case '\b':
			buf = append(buf, `\b`...)
		case '\f':
			buf = append(buf, `\f`...)
		default:
			if ch < 0x20 || ch >= 0x80 {
				buf = fmt.Appendf(buf, "\\%03o", ch)
			} else {
				buf = append(buf, ch)
			}
		}
	}
	return append(buf, ')')
}

func appendHexString(buf []byte, s []byte) []byte {
	const digits = "0123456789ABCDEF"
	buf = append(buf, '<')
	for _, ch := range s {
		buf = append(buf, digits[ch>>4], digits[ch&0x0F])
	}
	return append(buf, '>')
}

func zlibEncode(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compressStream flate-encodes streams that carry no filter yet.
func compressStream(stm *raw.StreamObj, level int) (*raw.StreamObj, error) {
	if _, filtered := stm.Dict.Get("Filter"); filtered {
		return stm, nil
	}
	data, err := zlibEncode(stm.Data, level)
	if err != nil {
		return nil, err
	}
	if len(data) >= len(stm.Data) {
		return stm, nil
	}
	dict := raw.Dict()
	for k, v := range stm.Dict.KV {
		dict.KV[k] = v
	}
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	dict.Delete("DecodeParms")
	return raw.NewStream(dict, data), nil
}

// xrefStreamIndexAndEntries builds /Index segments and W [1 4 1] rows for
// the object numbers in nums (sorted, without 0).
func xrefStreamIndexAndEntries(offsets map[int]int64, nums []int) (*raw.ArrayObj, []byte) {
	keys := append([]int{0}, nums...)
	indexArr := raw.NewArray()
	var entries []byte
	segStart, prev := -1, -1
	for _, k := range keys {
		if segStart == -1 {
			segStart = k
		} else if k != prev+1 {
			indexArr.Append(raw.NumberInt(int64(segStart)))
			indexArr.Append(raw.NumberInt(int64(prev - segStart + 1)))
			segStart = k
		}
		prev = k
		if k == 0 {
			entries = appendXRefStreamEntry(entries, 0, 0, 255)
			continue
		}
		entries = appendXRefStreamEntry(entries, 1, offsets[k], 0)
	}
	indexArr.Append(raw.NumberInt(int64(segStart)))
	indexArr.Append(raw.NumberInt(int64(prev - segStart + 1)))
	return indexArr, entries
}

func appendXRefStreamEntry(buf []byte, typ int, field2 int64, gen int) []byte {
	buf = append(buf, byte(typ))
	offset := uint32(field2)
	buf = append(buf, byte(offset>>24), byte(offset>>16), byte(offset>>8), byte(offset))
	return append(buf, byte(gen))
}
