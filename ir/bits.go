package ir

import (
	"fmt"
	"log"
)

// Bits is a fixed-width unsigned bit-vector. The payload is stored masked to
// the declared width, so two Bits of the same width compare equal exactly
// when their in-range values are equal. Widths from 1 to 64 are supported.
type Bits struct {
	value uint64
	width int
}

// NewBits creates a bit-vector of the given width holding value truncated to
// that width.
func NewBits(value uint64, width int) Bits {
	if width < 1 || width > 64 {
		log.Panicf("bit-vector width %d out of range [1, 64]", width)
	}

	return Bits{value: value & widthMask(width), width: width}
}

func widthMask(width int) uint64 {
	if width == 64 {
		return ^uint64(0)
	}

	return (uint64(1) << uint(width)) - 1
}

// Uint64 returns the held value.
func (b Bits) Uint64() uint64 {
	return b.value
}

// Width returns the declared width in bits.
func (b Bits) Width() int {
	return b.width
}

// IsZero reports whether all bits are clear.
func (b Bits) IsZero() bool {
	return b.value == 0
}

func (b Bits) mustMatchWidth(o Bits) {
	if b.width != o.width {
		log.Panicf("bit-vector width mismatch: %d vs %d", b.width, o.width)
	}
}

// Add returns b+o modulo 2^width.
func (b Bits) Add(o Bits) Bits {
	b.mustMatchWidth(o)
	return NewBits(b.value+o.value, b.width)
}

// Sub returns b-o modulo 2^width.
func (b Bits) Sub(o Bits) Bits {
	b.mustMatchWidth(o)
	return NewBits(b.value-o.value, b.width)
}

// And returns the bitwise AND of b and o.
func (b Bits) And(o Bits) Bits {
	b.mustMatchWidth(o)
	return NewBits(b.value&o.value, b.width)
}

// Or returns the bitwise OR of b and o.
func (b Bits) Or(o Bits) Bits {
	b.mustMatchWidth(o)
	return NewBits(b.value|o.value, b.width)
}

// Xor returns the bitwise XOR of b and o.
func (b Bits) Xor(o Bits) Bits {
	b.mustMatchWidth(o)
	return NewBits(b.value^o.value, b.width)
}

// Not returns the bitwise complement of b.
func (b Bits) Not() Bits {
	return NewBits(^b.value, b.width)
}

// Eq returns a 1-bit vector holding 1 if b equals o.
func (b Bits) Eq(o Bits) Bits {
	b.mustMatchWidth(o)
	return boolBits(b.value == o.value)
}

// Ne returns a 1-bit vector holding 1 if b differs from o.
func (b Bits) Ne(o Bits) Bits {
	b.mustMatchWidth(o)
	return boolBits(b.value != o.value)
}

// ULt returns a 1-bit vector holding 1 if b is unsigned-less-than o.
func (b Bits) ULt(o Bits) Bits {
	b.mustMatchWidth(o)
	return boolBits(b.value < o.value)
}

// UGt returns a 1-bit vector holding 1 if b is unsigned-greater-than o.
func (b Bits) UGt(o Bits) Bits {
	b.mustMatchWidth(o)
	return boolBits(b.value > o.value)
}

// Slice extracts width bits starting at the given least-significant bit
// position.
func (b Bits) Slice(start, width int) Bits {
	if start < 0 || width < 1 || start+width > b.width {
		log.Panicf("bit slice [%d, %d) out of range for width %d",
			start, start+width, b.width)
	}

	return NewBits(b.value>>uint(start), width)
}

func boolBits(v bool) Bits {
	if v {
		return NewBits(1, 1)
	}
	return NewBits(0, 1)
}

func (b Bits) String() string {
	return fmt.Sprintf("bits[%d]:%d", b.width, b.value)
}
