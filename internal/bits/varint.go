package bits

import (
	"github.com/pkg/errors"
)

// MaxVarintLen is the maximum length in bytes of a variable-length quantity.
// Four 7-bit groups cover delta-times and lengths up to 0x0FFFFFFF.
const MaxVarintLen = 4

// ErrVarintOverflow is returned when a variable-length quantity has a
// continuation bit set on its last permitted byte.
var ErrVarintOverflow = errors.New("variable-length quantity exceeds 4 bytes")

// A Varint accumulates a variable-length quantity (VLQ) whose bytes may arrive
// across any number of calls to Read. The zero value is ready for use.
//
// Each byte contributes its 7 low bits, most significant group first; a byte
// with the high bit set is followed by at least one more byte.
//
// Examples of encoded bytes on the left and decoded values on the right:
//
//	00          => 0
//	40          => 0x40
//	7F          => 0x7F
//	81 00       => 0x80
//	C0 00       => 0x2000
//	FF 7F       => 0x3FFF
//	81 80 00    => 0x4000
//	FF FF FF 7F => 0x0FFFFFFF
type Varint struct {
	// Value accumulated so far.
	Value uint32
	// Number of bytes folded into Value so far.
	Len int
}

// Read folds bytes from buf into v until the terminating byte of the quantity
// has been seen. It returns the number of bytes consumed and whether the
// quantity is complete. When done is false all of buf has been consumed and
// the caller should invoke Read again with more input; no byte is read twice.
func (v *Varint) Read(buf []byte) (n int, done bool, err error) {
	for n < len(buf) {
		b := buf[n]
		n++
		v.Value = v.Value<<7 | uint32(b&0x7F)
		v.Len++
		if b&0x80 == 0 {
			return n, true, nil
		}
		if v.Len >= MaxVarintLen {
			return n, false, errors.WithStack(ErrVarintOverflow)
		}
	}
	return n, false, nil
}

// Reset clears the accumulated state of v.
func (v *Varint) Reset() {
	*v = Varint{}
}

// VarintLen returns the number of bytes required to encode x as a
// variable-length quantity.
func VarintLen(x uint32) int {
	n := 1
	for x >>= 7; x != 0; x >>= 7 {
		n++
	}
	return n
}

// AppendVarint appends the variable-length quantity encoding of x to dst and
// returns the extended buffer. Values of 1<<28 and above need more than
// MaxVarintLen bytes and are rejected by Varint.Read.
func AppendVarint(dst []byte, x uint32) []byte {
	n := VarintLen(x)
	for i := n - 1; i >= 0; i-- {
		b := byte(x>>(7*uint(i))) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}
