package ir

import (
	"fmt"
	"log"
	"strings"
)

// ValueKind enumerates the kinds of runtime values.
type ValueKind int

// The closed set of value kinds.
const (
	BitsValueKind ValueKind = iota
	TupleValueKind
	ArrayValueKind
	TokenValueKind
)

// A Value is an immutable, recursively structured datum: a bit-vector, a
// tuple or array of values, or an opaque synchronization token. Values are
// compared by structural equality and cloned whenever they cross an
// ownership boundary, so no two holders can observe a shared mutation.
type Value struct {
	kind  ValueKind
	bits  Bits
	elems []Value
}

// BitsValue wraps a bit-vector as a Value.
func BitsValue(b Bits) Value {
	return Value{kind: BitsValueKind, bits: b}
}

// UBits builds a bit-vector value of the given width. Shorthand used all
// over network construction and tests.
func UBits(value uint64, width int) Value {
	return BitsValue(NewBits(value, width))
}

// TupleValue builds a tuple from the given elements.
func TupleValue(elems ...Value) Value {
	return Value{kind: TupleValueKind, elems: elems}
}

// ArrayValue builds an array from the given elements.
func ArrayValue(elems ...Value) Value {
	return Value{kind: ArrayValueKind, elems: elems}
}

// TokenValue returns the opaque synchronization token.
func TokenValue() Value {
	return Value{kind: TokenValueKind}
}

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Bits returns the held bit-vector. Only valid for bits values.
func (v Value) Bits() Bits {
	if v.kind != BitsValueKind {
		log.Panicf("value %s is not a bit-vector", v)
	}

	return v.bits
}

// Len returns the number of elements of a tuple or array value.
func (v Value) Len() int {
	return len(v.elems)
}

// Element returns the i-th element of a tuple or array value.
func (v Value) Element(i int) Value {
	if v.kind != TupleValueKind && v.kind != ArrayValueKind {
		log.Panicf("value %s has no elements", v)
	}

	return v.elems[i]
}

// Elements returns a copy of the element list.
func (v Value) Elements() []Value {
	elems := make([]Value, len(v.elems))
	copy(elems, v.elems)
	return elems
}

// IsToken reports whether the value is the synchronization token.
func (v Value) IsToken() bool {
	return v.kind == TokenValueKind
}

// Type returns the type of the value.
func (v Value) Type() *Type {
	switch v.kind {
	case BitsValueKind:
		return BitsType(v.bits.Width())
	case TupleValueKind:
		elems := make([]*Type, len(v.elems))
		for i, e := range v.elems {
			elems[i] = e.Type()
		}
		return TupleType(elems...)
	case ArrayValueKind:
		var elem *Type
		if len(v.elems) > 0 {
			elem = v.elems[0].Type()
		}
		return ArrayType(elem, len(v.elems))
	case TokenValueKind:
		return TokenType()
	}

	panic("unknown value kind")
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case BitsValueKind:
		return v.bits == o.bits
	case TupleValueKind, ArrayValueKind:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i, e := range v.elems {
			if !e.Equal(o.elems[i]) {
				return false
			}
		}
		return true
	case TokenValueKind:
		return true
	}

	return false
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	if len(v.elems) == 0 {
		return v
	}

	elems := make([]Value, len(v.elems))
	for i, e := range v.elems {
		elems[i] = e.Clone()
	}

	return Value{kind: v.kind, elems: elems}
}

func (v Value) String() string {
	switch v.kind {
	case BitsValueKind:
		return fmt.Sprintf("%d", v.bits.Uint64())
	case TupleValueKind, ArrayValueKind:
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.String()
		}
		if v.kind == ArrayValueKind {
			return "[" + strings.Join(parts, ", ") + "]"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case TokenValueKind:
		return "token"
	}

	return "unknown"
}
