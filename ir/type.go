package ir

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the kinds of value types.
type TypeKind int

// The closed set of type kinds.
const (
	BitsKind TypeKind = iota
	TupleKind
	ArrayKind
	TokenKind
)

// A Type describes the shape of a Value. Types are immutable after creation
// and compared structurally.
type Type struct {
	kind  TypeKind
	width int
	elems []*Type
	elem  *Type
	size  int
}

// BitsType returns the type of bit-vectors of the given width.
func BitsType(width int) *Type {
	return &Type{kind: BitsKind, width: width}
}

// TupleType returns the type of tuples with the given element types.
func TupleType(elems ...*Type) *Type {
	return &Type{kind: TupleKind, elems: elems}
}

// ArrayType returns the type of arrays of size elements of the given type.
func ArrayType(elem *Type, size int) *Type {
	return &Type{kind: ArrayKind, elem: elem, size: size}
}

// TokenType returns the type of synchronization tokens.
func TokenType() *Type {
	return &Type{kind: TokenKind}
}

// Kind returns the kind of the type.
func (t *Type) Kind() TypeKind {
	return t.kind
}

// Width returns the bit width. Only valid for bits types.
func (t *Type) Width() int {
	return t.width
}

// Elems returns the element types of a tuple type.
func (t *Type) Elems() []*Type {
	return t.elems
}

// Elem returns the element type of an array type.
func (t *Type) Elem() *Type {
	return t.elem
}

// Size returns the number of elements of an array type.
func (t *Type) Size() int {
	return t.size
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t.kind != o.kind {
		return false
	}

	switch t.kind {
	case BitsKind:
		return t.width == o.width
	case TupleKind:
		if len(t.elems) != len(o.elems) {
			return false
		}
		for i, e := range t.elems {
			if !e.Equal(o.elems[i]) {
				return false
			}
		}
		return true
	case ArrayKind:
		return t.size == o.size && t.elem.Equal(o.elem)
	case TokenKind:
		return true
	}

	return false
}

// ZeroValue returns the all-zeros value of the type.
func (t *Type) ZeroValue() Value {
	switch t.kind {
	case BitsKind:
		return BitsValue(NewBits(0, t.width))
	case TupleKind:
		elems := make([]Value, len(t.elems))
		for i, e := range t.elems {
			elems[i] = e.ZeroValue()
		}
		return TupleValue(elems...)
	case ArrayKind:
		elems := make([]Value, t.size)
		for i := range elems {
			elems[i] = t.elem.ZeroValue()
		}
		return ArrayValue(elems...)
	case TokenKind:
		return TokenValue()
	}

	panic("unknown type kind")
}

func (t *Type) String() string {
	switch t.kind {
	case BitsKind:
		return fmt.Sprintf("bits[%d]", t.width)
	case TupleKind:
		parts := make([]string, len(t.elems))
		for i, e := range t.elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case ArrayKind:
		return fmt.Sprintf("%s[%d]", t.elem, t.size)
	case TokenKind:
		return "token"
	}

	return "unknown"
}
