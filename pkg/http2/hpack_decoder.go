package http2

import (
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// intOctets bounds an encoded integer, prefix octet included.
const intOctets = 4

type decodeStep uint8

const (
	stepField decodeStep = iota
	stepNameLen
	stepName
	stepValueLen
	stepValue
)

type representation uint8

const (
	reprIndexed representation = iota
	reprIncremental
	reprSizeUpdate
	reprNeverIndexed
	reprWithoutIndexing
)

// intReader decodes a prefixed integer that may arrive split over
// several writes.
type intReader struct {
	value  uint64
	shift  uint
	octets int
	active bool
}

// read consumes integer octets from p. It reports done once the last
// octet has been seen; errIntTooLong means the encoding is over-long.
func (r *intReader) read(p []byte, prefix uint8) (n int, done bool, err error) {
	if !r.active {
		mask := uint64(1)<<prefix - 1
		r.value = uint64(p[0]) & mask
		n = 1
		if r.value < mask {
			return n, true, nil
		}
		r.active = true
		r.shift = 0
		r.octets = 1
	}

	for n < len(p) {
		b := p[n]
		n++
		r.octets++
		r.value += uint64(b&0x7f) << r.shift
		r.shift += 7
		if b&0x80 == 0 {
			r.active = false
			return n, true, nil
		}
		if r.octets >= intOctets {
			r.active = false
			return n, false, errIntTooLong
		}
	}
	return n, false, nil
}

func (r *intReader) reset() {
	*r = intReader{}
}

var errIntTooLong = compressionError("integer encoding is too long")

// HeaderDecoder decodes header blocks. Input may be written in pieces of
// any size: a field cut by the end of a read or of a frame is completed by
// a later Write. Decoded fields are passed to the emit function.
type HeaderDecoder struct {
	table        headerTable
	maxFieldSize int
	emit         func(HeaderField) error

	step    decodeStep
	repr    representation
	integer intReader
	field   HeaderField
	huffman bool
	rest    int
	buf     []byte
	skip    bool
	discard bool
	fields  int
	// a block must open with a size update
	sizeUpdate bool
}

// NewHeaderDecoder returns a decoder whose dynamic table may grow up to
// tableSize octets and which rejects strings longer than maxFieldSize.
func NewHeaderDecoder(tableSize uint32, maxFieldSize int, emit func(HeaderField) error) *HeaderDecoder {
	return &HeaderDecoder{
		table:        newHeaderTable(tableSize),
		maxFieldSize: maxFieldSize,
		emit:         emit,
	}
}

// SetDiscard makes the decoder drop literal fields that leave no trace in
// the dynamic table. Table state is kept in sync either way.
func (d *HeaderDecoder) SetDiscard(v bool) {
	d.discard = v
}

// SetMaxDynamicTableSizeLimit changes the limit for dynamic table size
// updates once the peer has acknowledged it. When the table is larger than
// the new limit, the next block must begin with a size update.
func (d *HeaderDecoder) SetMaxDynamicTableSizeLimit(v uint32) {
	if d.table.setAllowed(v) {
		d.sizeUpdate = true
	}
}

// DynamicTableSize returns the current size of the dynamic table.
func (d *HeaderDecoder) DynamicTableSize() uint32 {
	return d.table.size
}

// Write decodes p. Any error is fatal for the connection: the dynamic
// table can no longer be trusted.
func (d *HeaderDecoder) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		var n int
		var err error

		switch d.step {
		case stepField:
			n, err = d.readRepresentation(p)
		case stepNameLen, stepValueLen:
			n, err = d.readStringLength(p)
		default:
			n, err = d.readString(p)
		}
		if err != nil {
			d.reset()
			return total - len(p) + n, err
		}
		p = p[n:]
	}
	return total, nil
}

// EndBlock is called once the last fragment of a block has been written.
func (d *HeaderDecoder) EndBlock() error {
	d.fields = 0
	if d.step != stepField || d.integer.active {
		d.reset()
		return compressionError("header block ends inside a field")
	}
	return nil
}

func (d *HeaderDecoder) reset() {
	d.step = stepField
	d.integer.reset()
	d.field = HeaderField{}
	d.buf = d.buf[:0]
	d.rest = 0
	d.skip = false
	d.fields = 0
}

func (d *HeaderDecoder) readRepresentation(p []byte) (int, error) {
	var prefix uint8

	if !d.integer.active {
		switch ch := p[0]; {
		case ch >= 1<<7:
			d.repr = reprIndexed
		case ch >= 1<<6:
			d.repr = reprIncremental
		case ch >= 1<<5:
			d.repr = reprSizeUpdate
		case ch >= 1<<4:
			d.repr = reprNeverIndexed
		default:
			d.repr = reprWithoutIndexing
		}
	}

	switch d.repr {
	case reprIndexed:
		prefix = 7
	case reprIncremental:
		prefix = 6
	case reprSizeUpdate:
		prefix = 5
	default:
		prefix = 4
	}

	n, done, err := d.integer.read(p, prefix)
	if err != nil || !done {
		return n, err
	}
	v := d.integer.value

	if d.sizeUpdate && d.repr != reprSizeUpdate {
		return n, compressionError("missing dynamic table size update to at most %d", d.table.allowed)
	}

	switch d.repr {
	case reprIndexed:
		f, ok := d.table.get(v)
		if !ok {
			return n, compressionError("invalid header index %d", v)
		}
		f.Indexed = true
		d.fields++
		if d.discard {
			return n, nil
		}
		return n, d.emit(f)

	case reprSizeUpdate:
		if d.fields > 0 {
			return n, compressionError("dynamic table size update after header field")
		}
		if !d.table.setMaxSize(v) {
			return n, compressionError("dynamic table size update to %d exceeds limit %d", v, d.table.allowed)
		}
		d.sizeUpdate = false
		return n, nil
	}

	d.field = HeaderField{
		Incremental: d.repr == reprIncremental,
		Sensitive:   d.repr == reprNeverIndexed,
	}
	d.skip = d.discard && !d.field.Incremental

	if v == 0 {
		d.step = stepNameLen
		return n, nil
	}

	f, ok := d.table.get(v)
	if !ok {
		return n, compressionError("invalid header name index %d", v)
	}
	d.field.Name = f.Name
	d.field.Indexed = true
	d.step = stepValueLen
	return n, nil
}

func (d *HeaderDecoder) readStringLength(p []byte) (int, error) {
	if !d.integer.active {
		d.huffman = p[0]&0x80 != 0
	}

	n, done, err := d.integer.read(p, 7)
	if err != nil || !done {
		return n, err
	}

	// Huffman codes are at least 5 bits long
	size := d.integer.value
	if d.huffman {
		size = size * 8 / 5
	}
	if size > uint64(d.maxFieldSize) {
		return n, ConnectionError{
			Code:   http2.ErrCodeEnhanceYourCalm,
			Reason: "client exceeded max field size limit",
		}
	}

	d.rest = int(d.integer.value)
	d.buf = d.buf[:0]
	if d.step == stepNameLen {
		d.step = stepName
	} else {
		d.step = stepValue
	}

	if d.rest == 0 {
		return n, d.finishString()
	}
	return n, nil
}

func (d *HeaderDecoder) readString(p []byte) (int, error) {
	n := min(len(p), d.rest)
	if !d.skip {
		d.buf = append(d.buf, p[:n]...)
	}
	d.rest -= n

	if d.rest == 0 {
		return n, d.finishString()
	}
	return n, nil
}

func (d *HeaderDecoder) finishString() error {
	var s string
	if !d.skip {
		if d.huffman {
			var err error
			if s, err = hpack.HuffmanDecodeToString(d.buf); err != nil {
				return compressionError("client sent invalid encoded header field")
			}
		} else {
			s = string(d.buf)
		}
	}

	if d.step == stepName {
		d.field.Name = s
		d.step = stepValueLen
		return nil
	}

	d.field.Value = s
	f := d.field
	skip := d.skip

	d.step = stepField
	d.field = HeaderField{}
	d.skip = false
	d.fields++

	if f.Incremental {
		d.table.add(f)
	}
	if skip || d.discard {
		return nil
	}
	return d.emit(f)
}
