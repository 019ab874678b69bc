// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package xsettings

import (
	"encoding/binary"
	"fmt"
)

const (
	lsbFirst = 0
	msbFirst = 1

	headerLen = 12
	// type, pad, name length, serial and the smallest payload
	minRecordLen = 12
)

// Blob is a decoded _XSETTINGS_SETTINGS property.
type Blob struct {
	Order    binary.ByteOrder
	Serial   uint32
	Settings []Setting
}

type decoder struct {
	buf   []byte
	off   int
	order binary.ByteOrder
}

func (d *decoder) errorf(format string, args ...interface{}) error {
	return &DecodeError{Offset: d.off, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) need(n int, what string) error {
	if d.remaining() < n {
		return d.errorf("truncated %s: need %d bytes, have %d", what, n, d.remaining())
	}
	return nil
}

func (d *decoder) card16(what string) (uint16, error) {
	if err := d.need(2, what); err != nil {
		return 0, err
	}
	v := d.order.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) card32(what string) (uint32, error) {
	if err := d.need(4, what); err != nil {
		return 0, err
	}
	v := d.order.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

// padded returns the next n bytes and skips the padding that follows them.
// The result aliases the input buffer.
func (d *decoder) padded(n uint64, what string) ([]byte, error) {
	if n > uint64(d.remaining()) {
		return nil, d.errorf("%s length %d exceeds the %d bytes left", what, n, d.remaining())
	}
	size := int(n)
	if pad4(size) > d.remaining() {
		return nil, d.errorf("padding after %s runs past the end of the blob", what)
	}
	b := d.buf[d.off : d.off+size : d.off+size]
	d.off += pad4(size)
	return b, nil
}

func (d *decoder) setting() (Setting, error) {
	if err := d.need(4, "setting header"); err != nil {
		return Setting{}, err
	}
	start := d.off
	typ := Type(d.buf[d.off])
	d.off += 2
	nameLen, _ := d.card16("name length")
	name, err := d.padded(uint64(nameLen), "name")
	if err != nil {
		return Setting{}, err
	}
	serial, err := d.card32("last-change serial")
	if err != nil {
		return Setting{}, err
	}

	s := Setting{Name: string(name), Serial: serial}
	switch typ {
	case TypeInt:
		v, err := d.card32("integer value")
		if err != nil {
			return Setting{}, err
		}
		s.Value = IntValue(int32(v))
	case TypeString:
		n, err := d.card32("string length")
		if err != nil {
			return Setting{}, err
		}
		b, err := d.padded(uint64(n), "string")
		if err != nil {
			return Setting{}, err
		}
		s.Value = StringValue(b)
	case TypeColor:
		if err := d.need(8, "color value"); err != nil {
			return Setting{}, err
		}
		// channels travel as red, blue, green, alpha
		var c Color
		c.Red, _ = d.card16("red")
		c.Blue, _ = d.card16("blue")
		c.Green, _ = d.card16("green")
		c.Alpha, _ = d.card16("alpha")
		s.Value = ColorValue(c)
	default:
		return Setting{}, &DecodeError{Offset: start, Reason: fmt.Sprintf("unknown type tag %d for %q", uint8(typ), s.Name)}
	}
	return s, nil
}

// Decode parses a serialized settings blob. Names are copied, but string
// payloads alias data. Any structural fault rejects the whole blob with a
// *DecodeError; bytes after the last declared setting are ignored.
func Decode(data []byte) (*Blob, error) {
	d := &decoder{buf: data}
	if err := d.need(headerLen, "header"); err != nil {
		return nil, err
	}
	switch data[0] {
	case lsbFirst:
		d.order = binary.LittleEndian
	case msbFirst:
		d.order = binary.BigEndian
	default:
		return nil, d.errorf("invalid byte order %d", data[0])
	}
	d.off = 4
	serial, _ := d.card32("serial")
	count, _ := d.card32("setting count")
	if uint64(count)*minRecordLen > uint64(d.remaining()) {
		return nil, d.errorf("blob declares %d settings but only %d bytes follow", count, d.remaining())
	}

	blob := &Blob{Order: d.order, Serial: serial, Settings: make([]Setting, 0, count)}
	seen := make(map[string]struct{}, count)
	for i := uint32(0); i < count; i++ {
		start := d.off
		s, err := d.setting()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s.Name]; dup {
			return nil, &DecodeError{Offset: start, Reason: fmt.Sprintf("setting %q appears twice", s.Name), Err: ErrDuplicateEntry}
		}
		seen[s.Name] = struct{}{}
		blob.Settings = append(blob.Settings, s)
	}
	return blob, nil
}

// Encode serializes settings in the given byte order. It is the inverse of
// Decode.
func Encode(order binary.ByteOrder, serial uint32, settings []Setting) ([]byte, error) {
	var marker byte
	switch order {
	case binary.LittleEndian:
		marker = lsbFirst
	case binary.BigEndian:
		marker = msbFirst
	default:
		return nil, fmt.Errorf("xsettings: unsupported byte order %v: %w", order, ErrFailed)
	}
	ap, ok := order.(binary.AppendByteOrder)
	if !ok {
		return nil, fmt.Errorf("xsettings: byte order %v cannot append: %w", order, ErrFailed)
	}

	buf := make([]byte, 0, headerLen+len(settings)*(minRecordLen+16))
	buf = append(buf, marker, 0, 0, 0)
	buf = ap.AppendUint32(buf, serial)
	buf = ap.AppendUint32(buf, uint32(len(settings)))

	seen := make(map[string]struct{}, len(settings))
	for _, s := range settings {
		if len(s.Name) > 0xffff {
			return nil, fmt.Errorf("xsettings: name of %d bytes is too long: %w", len(s.Name), ErrFailed)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("xsettings: encode %q: %w", s.Name, ErrDuplicateEntry)
		}
		seen[s.Name] = struct{}{}

		buf = append(buf, byte(s.Value.typ), 0)
		buf = ap.AppendUint16(buf, uint16(len(s.Name)))
		buf = appendPadded(buf, []byte(s.Name))
		buf = ap.AppendUint32(buf, s.Serial)
		switch s.Value.typ {
		case TypeInt:
			buf = ap.AppendUint32(buf, uint32(s.Value.i))
		case TypeString:
			buf = ap.AppendUint32(buf, uint32(len(s.Value.s)))
			buf = appendPadded(buf, s.Value.s)
		case TypeColor:
			c := s.Value.c
			buf = ap.AppendUint16(buf, c.Red)
			buf = ap.AppendUint16(buf, c.Blue)
			buf = ap.AppendUint16(buf, c.Green)
			buf = ap.AppendUint16(buf, c.Alpha)
		default:
			return nil, fmt.Errorf("xsettings: encode %q: cannot encode %v value: %w", s.Name, s.Value.typ, ErrFailed)
		}
	}
	return buf, nil
}

func appendPadded(buf, b []byte) []byte {
	buf = append(buf, b...)
	for i := len(b); i < pad4(len(b)); i++ {
		buf = append(buf, 0)
	}
	return buf
}

func pad4(n int) int { return (n + 3) &^ 3 }
