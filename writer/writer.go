package writer

import (
	"bufio"
	"crypto/md5"
	"crypto/rand"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"time"

	"github.com/wudi/pdfpages/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

// DefaultProducer is written to /Info when Config.Producer is empty.
const DefaultProducer = "pdfpages"

type Config struct {
	Version PDFVersion
	// Compression is the zlib level applied to unfiltered streams; 0 keeps
	// stream data as-is.
	Compression int
	// XRefStreams writes a compressed cross-reference stream instead of a
	// classic table.
	XRefStreams bool
	// Deterministic omits CreationDate (unless Now is set) and derives /ID
	// from the written bytes only.
	Deterministic bool
	Producer      string
	Now           func() time.Time
}

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("writer closed")

// StreamWriter serializes indirect objects straight to an io.Writer and
// finishes the file with an xref section and trailer on Close.
type StreamWriter struct {
	cfg     Config
	out     *bufio.Writer
	sum     hash.Hash
	pos     int64
	next    int
	offsets map[int]int64
	written int
	closed  bool
	err     error
}

// NewStreamWriter writes the file header and returns a writer ready for
// objects. Object numbers are handed out by Reserve starting at 1.
func NewStreamWriter(out io.Writer, cfg Config) (*StreamWriter, error) {
	if cfg.Version == "" {
		cfg.Version = PDF17
	}
	if cfg.Producer == "" {
		cfg.Producer = DefaultProducer
	}
	if cfg.Compression < 0 || cfg.Compression > 9 {
		return nil, fmt.Errorf("compression level %d out of range", cfg.Compression)
	}
	w := &StreamWriter{
		cfg:     cfg,
		out:     bufio.NewWriterSize(out, 64*1024),
		sum:     md5.New(),
		next:    1,
		offsets: make(map[int]int64),
	}
	w.write([]byte("%PDF-" + string(cfg.Version) + "\n%\xE2\xE3\xCF\xD3\n"))
	return w, w.err
}

// Reserve allocates the next object number.
func (w *StreamWriter) Reserve() raw.ObjectRef {
	ref := raw.ObjectRef{Num: w.next}
	w.next++
	return ref
}

// Offset reports how many bytes have been written so far.
func (w *StreamWriter) Offset() int64 { return w.pos }

// Objects reports how many objects have been written.
func (w *StreamWriter) Objects() int { return w.written }

// WriteObject serializes obj as the indirect object ref. Each reserved
// number may be written once.
func (w *StreamWriter) WriteObject(ref raw.ObjectRef, obj raw.Object) error {
	if w.closed {
		return ErrClosed
	}
	if w.err != nil {
		return w.err
	}
	if ref.Num <= 0 || ref.Num >= w.next {
		return fmt.Errorf("object %v was not reserved", ref)
	}
	if _, dup := w.offsets[ref.Num]; dup {
		return fmt.Errorf("object %v written twice", ref)
	}
	if stm, ok := obj.(*raw.StreamObj); ok && w.cfg.Compression > 0 {
		var err error
		if obj, err = compressStream(stm, w.cfg.Compression); err != nil {
			return fmt.Errorf("compress object %v: %w", ref, err)
		}
	}
	w.offsets[ref.Num] = w.pos
	buf := make([]byte, 0, 256)
	buf = fmt.Appendf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf = appendObject(buf, obj)
	buf = append(buf, "\nendobj\n"...)
	w.write(buf)
	w.written++
	return w.err
}

// Close writes the /Info dictionary, the cross-reference section and the
// trailer pointing at root, then flushes. It does not close the
// underlying writer.
func (w *StreamWriter) Close(root raw.ObjectRef) error {
	if w.closed {
		return ErrClosed
	}
	if w.err != nil {
		return w.err
	}
	if _, ok := w.offsets[root.Num]; !ok {
		return fmt.Errorf("root object %v was never written", root)
	}
	infoRef := w.Reserve()
	if err := w.WriteObject(infoRef, w.info()); err != nil {
		return err
	}
	w.closed = true

	trailer := raw.Dict()
	trailer.Set("Root", raw.RefObj{R: root})
	trailer.Set("Info", raw.RefObj{R: infoRef})
	id := w.fileID()
	trailer.Set("ID", raw.NewArray(raw.HexStr(id), raw.HexStr(id)))

	xrefOffset := w.pos
	if w.cfg.XRefStreams {
		if err := w.writeXRefStream(trailer); err != nil {
			return err
		}
	} else {
		w.writeXRefTable(trailer)
	}
	w.write(fmt.Appendf(nil, "startxref\n%d\n%%%%EOF\n", xrefOffset))
	if w.err != nil {
		return w.err
	}
	return w.out.Flush()
}

func (w *StreamWriter) info() *raw.DictObj {
	info := raw.Dict()
	info.Set("Producer", raw.Str([]byte(w.cfg.Producer)))
	now := w.cfg.Now
	if now == nil && !w.cfg.Deterministic {
		now = time.Now
	}
	if now != nil {
		info.Set("CreationDate", raw.Str([]byte(FormatDate(now()))))
	}
	return info
}

// fileID hashes everything written so far; non-deterministic output mixes
// in random bytes so two runs over the same input differ.
func (w *StreamWriter) fileID() []byte {
	if !w.cfg.Deterministic {
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err == nil {
			w.sum.Write(salt)
		}
	}
	return w.sum.Sum(nil)
}

func (w *StreamWriter) writeXRefTable(trailer *raw.DictObj) {
	size := w.next
	buf := make([]byte, 0, 20*(size+1)+128)
	buf = fmt.Appendf(buf, "xref\n0 %d\n", size)
	buf = append(buf, "0000000000 65535 f \n"...)
	for num := 1; num < size; num++ {
		if off, ok := w.offsets[num]; ok {
			buf = fmt.Appendf(buf, "%010d 00000 n \n", off)
		} else {
			buf = append(buf, "0000000000 00001 f \n"...)
		}
	}
	trailer.Set("Size", raw.NumberInt(int64(size)))
	buf = append(buf, "trailer\n"...)
	buf = appendObject(buf, trailer)
	buf = append(buf, '\n')
	w.write(buf)
}

func (w *StreamWriter) writeXRefStream(trailer *raw.DictObj) error {
	ref := raw.ObjectRef{Num: w.next}
	w.next++
	w.offsets[ref.Num] = w.pos

	nums := make([]int, 0, len(w.offsets))
	for num := range w.offsets {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	index, rows := xrefStreamIndexAndEntries(w.offsets, nums)
	data, err := zlibEncode(rows, 6)
	if err != nil {
		return fmt.Errorf("xref stream: %w", err)
	}
	dict := raw.Dict()
	for _, k := range trailer.Keys() {
		v, _ := trailer.Get(k)
		dict.Set(k, v)
	}
	dict.Set("Type", raw.NameLiteral("XRef"))
	dict.Set("Size", raw.NumberInt(int64(w.next)))
	dict.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(1)))
	dict.Set("Index", index)
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))

	buf := fmt.Appendf(nil, "%d 0 obj\n", ref.Num)
	buf = appendObject(buf, raw.NewStream(dict, data))
	buf = append(buf, "\nendobj\n"...)
	w.write(buf)
	return w.err
}

func (w *StreamWriter) write(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.out.Write(p)
	w.sum.Write(p[:n])
	w.pos += int64(n)
	w.err = err
}

// FormatDate renders t as a PDF date string (D:YYYYMMDDHHmmSSOHH'mm').
func FormatDate(t time.Time) string {
	_, offset := t.Zone()
	sign := byte('+')
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	if offset == 0 {
		return t.Format("D:20060102150405") + "Z"
	}
	return fmt.Sprintf("%s%c%02d'%02d'", t.Format("D:20060102150405"), sign, offset/3600, (offset%3600)/60)
}
