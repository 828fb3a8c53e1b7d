// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Vector is a position or direction in region coordinates (metres).
type Vector struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Len returns the magnitude of v.
func (v Vector) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dist returns the distance between v and o.
func (v Vector) Dist(o Vector) float64 {
	return v.Sub(o).Len()
}

// String formats v the way scripts see vectors cast to strings.
func (v Vector) String() string {
	return fmt.Sprintf("<%.5f, %.5f, %.5f>", v.X, v.Y, v.Z)
}

// ParseVector parses "<x, y, z>". The angle brackets are optional.
func ParseVector(s string) (Vector, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "<")
	trimmed = strings.TrimSuffix(trimmed, ">")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 3 {
		return Vector{}, oops.Code(CodeInvalidArgument).With("vector", s).Errorf("vector needs 3 components, got %d", len(parts))
	}
	var out [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vector{}, oops.Code(CodeInvalidArgument).With("vector", s).Wrapf(err, "invalid vector component %d", i)
		}
		out[i] = f
	}
	return Vector{X: out[0], Y: out[1], Z: out[2]}, nil
}

// ValueKind tags the dynamic type carried by a Value.
type ValueKind uint8

// Value kinds, mirroring the script type system.
const (
	KindString ValueKind = iota
	KindInteger
	KindFloat
	KindKey
	KindVector
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindKey:
		return "key"
	case KindVector:
		return "vector"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is one typed event argument.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	key  ulid.ULID
	vec  Vector
	list []Value
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Integer creates an integer value.
func Integer(i int64) Value { return Value{kind: KindInteger, num: i} }

// Float creates a float value.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Key creates a key value.
func Key(id ulid.ULID) Value { return Value{kind: KindKey, key: id} }

// Vec creates a vector value.
func Vec(v Vector) Value { return Value{kind: KindVector, vec: v} }

// List creates a list value. The items are copied.
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// Kind returns the dynamic type.
func (v Value) Kind() ValueKind { return v.kind }

// Int returns the integer content. Floats truncate, strings parse, anything
// else is 0.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInteger:
		return v.num
	case KindFloat:
		return int64(v.flt)
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Float returns the numeric content as a float.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.flt
	case KindInteger:
		return float64(v.num)
	default:
		return 0
	}
}

// KeyValue returns the key content, or NullKey.
func (v Value) KeyValue() ulid.ULID {
	if v.kind == KindKey {
		return v.key
	}
	return NullKey
}

// Vector returns the vector content, or the zero vector.
func (v Value) Vector() Vector {
	if v.kind == KindVector {
		return v.vec
	}
	return Vector{}
}

// Items returns a copy of the list content.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value(nil), v.list...)
}

// String renders the value as a script string cast would.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'f', 6, 64)
	case KindKey:
		return v.key.String()
	case KindVector:
		return v.vec.String()
	case KindList:
		var b strings.Builder
		for _, item := range v.list {
			b.WriteString(item.String())
		}
		return b.String()
	default:
		return ""
	}
}
