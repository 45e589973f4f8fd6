package wire

import (
	"encoding/binary"
	"errors"
	"strings"
)

var (
	// ErrTruncated indicates a field extends past the end of the buffer.
	ErrTruncated = errors.New("wire: truncated field")
	// ErrFieldTooLarge indicates a length-prefixed field exceeds the packet limit.
	ErrFieldTooLarge = errors.New("wire: field too large")
)

// Buffer accumulates SSH wire-format fields for transmission.
type Buffer struct {
	data []byte
}

// NewBuffer creates an empty write buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Bytes returns the accumulated encoding.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// PutByte appends a single byte.
func (b *Buffer) PutByte(v byte) {
	b.data = append(b.data, v)
}

// PutBool appends a boolean encoded as a single byte.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.data = append(b.data, 1)
	} else {
		b.data = append(b.data, 0)
	}
}

// PutUint32 appends a big-endian uint32.
func (b *Buffer) PutUint32(v uint32) {
	b.data = binary.BigEndian.AppendUint32(b.data, v)
}

// PutString appends a length-prefixed byte string.
func (b *Buffer) PutString(v []byte) {
	b.PutUint32(uint32(len(v)))
	b.data = append(b.data, v...)
}

// PutText appends a length-prefixed UTF-8 string.
func (b *Buffer) PutText(v string) {
	b.PutString([]byte(v))
}

// PutNameList appends a comma-joined, length-prefixed algorithm name list.
func (b *Buffer) PutNameList(names []string) {
	b.PutText(strings.Join(names, ","))
}

// PutMPInt appends a multiple-precision integer in SSH mpint encoding:
// minimal-length big-endian magnitude with a leading zero byte when the
// high bit of the first magnitude byte is set.
func (b *Buffer) PutMPInt(v []byte) {
	for len(v) > 0 && v[0] == 0 {
		v = v[1:]
	}
	if len(v) == 0 {
		b.PutUint32(0)
		return
	}
	if v[0]&0x80 != 0 {
		b.PutUint32(uint32(len(v) + 1))
		b.data = append(b.data, 0)
		b.data = append(b.data, v...)
		return
	}
	b.PutString(v)
}

// PutRaw appends bytes without a length prefix.
func (b *Buffer) PutRaw(v []byte) {
	b.data = append(b.data, v...)
}

// Reader parses SSH wire-format fields out of a byte slice.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a reader over data. The slice is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrTruncated
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

// Bool reads a single-byte boolean. Any non-zero value is true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Byte()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// String reads a length-prefixed byte string. The result is a copy.
func (r *Reader) String() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if n > MaxPacketSize {
		return nil, ErrFieldTooLarge
	}
	if r.Remaining() < int(n) {
		return nil, ErrTruncated
	}
	v := make([]byte, n)
	copy(v, r.data[r.off:])
	r.off += int(n)
	return v, nil
}

// Text reads a length-prefixed UTF-8 string.
func (r *Reader) Text() (string, error) {
	v, err := r.String()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// NameList reads a length-prefixed, comma-joined algorithm name list.
func (r *Reader) NameList() ([]string, error) {
	v, err := r.Text()
	if err != nil {
		return nil, err
	}
	if v == "" {
		return nil, nil
	}
	return strings.Split(v, ","), nil
}

// MPInt reads a multiple-precision integer, returning its big-endian
// magnitude with any leading zero byte stripped.
func (r *Reader) MPInt() ([]byte, error) {
	v, err := r.String()
	if err != nil {
		return nil, err
	}
	for len(v) > 0 && v[0] == 0 {
		v = v[1:]
	}
	return v, nil
}

// Rest returns all unread bytes. The result is a copy.
func (r *Reader) Rest() []byte {
	v := make([]byte, r.Remaining())
	copy(v, r.data[r.off:])
	r.off = len(r.data)
	return v
}
