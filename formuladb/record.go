package formuladb

import (
	"fmt"

	"github.com/arloliu/mws/compress"
	"github.com/arloliu/mws/endian"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/internal/pool"
)

// recordCodec compresses stored values. Every value starts with the
// compression type it was written with, so stores written with different
// settings stay readable.
type recordCodec struct {
	compression format.CompressionType
	codec       compress.Codec
}

func newRecordCodec(compression format.CompressionType) (*recordCodec, error) {
	codec, err := compress.CreateCodec(compression, "record")
	if err != nil {
		return nil, err
	}

	return &recordCodec{compression: compression, codec: codec}, nil
}

func (rc *recordCodec) seal(raw []byte) ([]byte, error) {
	payload, err := rc.codec.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compress record: %w", err)
	}

	out := make([]byte, 0, 1+len(payload))
	out = append(out, byte(rc.compression))

	return append(out, payload...), nil
}

func openRecord(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: empty value", errs.ErrCorruptRecord)
	}

	codec, err := compress.GetCodec(format.CompressionType(value[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCorruptRecord, err)
	}

	raw, err := codec.Decompress(value[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCorruptRecord, err)
	}

	return raw, nil
}

// encodeOccurrence lays an occurrence out as crawl id, xml id and xpath, the
// strings u32 length-prefixed.
func (rc *recordCodec) encodeOccurrence(occ Occurrence) ([]byte, error) {
	bb := pool.GetRecordBuffer()
	defer pool.PutRecordBuffer(bb)

	bb.Grow(12 + len(occ.Path.XMLID) + len(occ.Path.Xpath))
	bb.AppendUint32(uint32(occ.CrawlID))
	bb.AppendString(occ.Path.XMLID)
	bb.AppendString(occ.Path.Xpath)

	return rc.seal(bb.Bytes())
}

func decodeOccurrence(value []byte) (Occurrence, error) {
	raw, err := openRecord(value)
	if err != nil {
		return Occurrence{}, err
	}

	r := reader{buf: raw}
	occ := Occurrence{CrawlID: CrawlID(r.uint32())}
	occ.Path.XMLID = r.string()
	occ.Path.Xpath = r.string()
	if err := r.finish(); err != nil {
		return Occurrence{}, err
	}

	return occ, nil
}

func (rc *recordCodec) encodeCrawlData(data CrawlData) ([]byte, error) {
	bb := pool.GetRecordBuffer()
	defer pool.PutRecordBuffer(bb)

	bb.Grow(8 + len(data.URL) + len(data.Data))
	bb.AppendString(data.URL)
	bb.AppendString(data.Data)

	return rc.seal(bb.Bytes())
}

func decodeCrawlData(value []byte) (CrawlData, error) {
	raw, err := openRecord(value)
	if err != nil {
		return CrawlData{}, err
	}

	r := reader{buf: raw}
	data := CrawlData{URL: r.string(), Data: r.string()}
	if err := r.finish(); err != nil {
		return CrawlData{}, err
	}

	return data, nil
}

// reader decodes a record, remembering the first short read.
type reader struct {
	buf []byte
	pos int
	bad bool
}

func (r *reader) uint32() uint32 {
	if r.bad || len(r.buf)-r.pos < 4 {
		r.bad = true
		return 0
	}
	v := endian.GetLittleEndianEngine().Uint32(r.buf[r.pos:])
	r.pos += 4

	return v
}

func (r *reader) string() string {
	n := int(r.uint32())
	if r.bad || len(r.buf)-r.pos < n {
		r.bad = true
		return ""
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n

	return s
}

func (r *reader) finish() error {
	if r.bad {
		return fmt.Errorf("%w: truncated", errs.ErrCorruptRecord)
	}
	if r.pos != len(r.buf) {
		return fmt.Errorf("%w: %d trailing bytes", errs.ErrCorruptRecord, len(r.buf)-r.pos)
	}

	return nil
}
