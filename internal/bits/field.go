package bits

import "encoding/binary"

// MaxFieldLen is the size in bytes of the largest fixed-size field gathered by
// a Field, which is the file header chunk.
const MaxFieldLen = 14

// A Field gathers the bytes of a fixed-size field whose bytes may arrive
// across any number of calls to Fill. The zero value is ready for use.
type Field struct {
	buf [MaxFieldLen]byte
	n   int
}

// Fill copies bytes from buf into f until size bytes have been gathered. It
// returns the number of bytes consumed and whether the field is complete.
//
// Fill panics if size exceeds MaxFieldLen.
func (f *Field) Fill(size int, buf []byte) (n int, done bool) {
	if size > MaxFieldLen {
		panic("bits.Field.Fill: field size exceeds MaxFieldLen")
	}
	n = copy(f.buf[f.n:size], buf)
	f.n += n
	return n, f.n == size
}

// Bytes returns the bytes gathered so far. The slice aliases the storage of f
// and is valid until the next call to Fill or Reset.
func (f *Field) Bytes() []byte {
	return f.buf[:f.n]
}

// Len returns the number of bytes gathered so far.
func (f *Field) Len() int {
	return f.n
}

// Reset discards the gathered bytes.
func (f *Field) Reset() {
	*f = Field{}
}

// Uint16 decodes a big-endian 16-bit integer from the first two bytes of b.
func Uint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// Uint32 decodes a big-endian 32-bit integer from the first four bytes of b.
func Uint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
