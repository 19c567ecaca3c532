// Package types defines the wew type system: sized integers, pointers,
// fixed-length arrays and function types, with const qualification.
package types

import (
	"fmt"
	"strings"
)

// PointerSize is the width of a pointer in bytes. The target VM is 16-bit.
const PointerSize = 2

// Type is the interface implemented by all wew types.
type Type interface {
	fmt.Stringer

	// Size returns the storage size of the type in bytes.
	// Returns an error for arrays without length information.
	Size() (int, error)

	// Signed reports whether the type holds signed values.
	Signed() bool

	// Const reports whether the type is const-qualified.
	Const() bool

	// WithConst returns a const-qualified copy of the type.
	WithConst() Type

	// Equal reports type equality including const qualifiers.
	Equal(other Type) bool

	// ImplicitlyCastsTo reports whether a value of this type can be
	// implicitly converted to other. Sizes are not considered.
	ImplicitlyCastsTo(other Type) bool
}

// MustSize returns the size of t and panics if it is unsized.
// Only for types already validated by the compiler.
func MustSize(t Type) int {
	n, err := t.Size()
	if err != nil {
		panic(err)
	}
	return n
}

// Void is the absent return type of a function.
type Void struct{}

func (Void) String() string                 { return "()" }
func (Void) Size() (int, error)             { return 0, nil }
func (Void) Signed() bool                   { return false }
func (Void) Const() bool                    { return false }
func (v Void) WithConst() Type              { return v }
func (Void) Equal(other Type) bool          { _, ok := other.(Void); return ok }
func (Void) ImplicitlyCastsTo(o Type) bool  { _, ok := o.(Void); return ok }

// Int is a sized integer type (u1..u8, s1..s8).
type Int struct {
	Width    int // bytes: 1, 2, 4 or 8
	IsSigned bool
	IsConst  bool
}

// IntFromName parses an integer type name like "u4" or "s8".
// ok is false if the name is not an integer type.
func IntFromName(name string) (Int, bool) {
	if len(name) != 2 {
		return Int{}, false
	}
	var signed bool
	switch name[0] {
	case 'u':
	case 's':
		signed = true
	default:
		return Int{}, false
	}
	switch name[1] {
	case '1', '2', '4', '8':
		return Int{Width: int(name[1] - '0'), IsSigned: signed}, true
	}
	return Int{}, false
}

// IntOfSize returns the integer type of the given width and signedness.
func IntOfSize(width int, signed bool) Int {
	return Int{Width: width, IsSigned: signed}
}

func (t Int) String() string {
	s := "u"
	if t.IsSigned {
		s = "s"
	}
	return constWrap(fmt.Sprintf("%s%d", s, t.Width), t.IsConst)
}

func (t Int) Size() (int, error) { return t.Width, nil }
func (t Int) Signed() bool       { return t.IsSigned }
func (t Int) Const() bool        { return t.IsConst }

func (t Int) WithConst() Type {
	t.IsConst = true
	return t
}

func (t Int) Equal(other Type) bool {
	o, ok := other.(Int)
	return ok && o.Width == t.Width && o.IsSigned == t.IsSigned && o.IsConst == t.IsConst
}

func (t Int) ImplicitlyCastsTo(other Type) bool {
	_, ok := other.(Int)
	return ok
}

// Pointer is a typed pointer.
type Pointer struct {
	To      Type
	IsConst bool
}

func (t Pointer) String() string {
	return constWrap("*"+t.To.String(), t.IsConst)
}

func (t Pointer) Size() (int, error) { return PointerSize, nil }
func (t Pointer) Signed() bool       { return false }
func (t Pointer) Const() bool        { return t.IsConst }

func (t Pointer) WithConst() Type {
	t.IsConst = true
	return t
}

func (t Pointer) Equal(other Type) bool {
	o, ok := other.(Pointer)
	return ok && o.To.Equal(t.To) && o.IsConst == t.IsConst
}

func (t Pointer) ImplicitlyCastsTo(other Type) bool {
	switch other.(type) {
	case Pointer, Func:
		return true
	}
	return false
}

// Array is a fixed-length array type. Length < 0 means the length is not
// known (e.g. `[u1]` before initialiser inference).
type Array struct {
	To      Type
	Length  int
	IsConst bool
}

// NoLength marks an array type with no length information.
const NoLength = -1

func (t Array) String() string {
	var s string
	if t.Length >= 0 {
		s = fmt.Sprintf("[%s@%d]", t.To, t.Length)
	} else {
		s = fmt.Sprintf("[%s]", t.To)
	}
	return constWrap(s, t.IsConst)
}

func (t Array) Size() (int, error) {
	if t.Length < 0 {
		return 0, fmt.Errorf("array %s has no size information", t)
	}
	elem, err := t.To.Size()
	if err != nil {
		return 0, err
	}
	return elem * t.Length, nil
}

// CellSize returns the size of one array element.
func (t Array) CellSize() (int, error) { return t.To.Size() }

func (t Array) Signed() bool { return false }
func (t Array) Const() bool  { return t.IsConst }

func (t Array) WithConst() Type {
	t.IsConst = true
	return t
}

func (t Array) Equal(other Type) bool {
	o, ok := other.(Array)
	if !ok || !o.To.Equal(t.To) || o.IsConst != t.IsConst {
		return false
	}
	// if we don't know our length, don't check the other's
	return t.Length < 0 || t.Length == o.Length
}

func (t Array) ImplicitlyCastsTo(other Type) bool {
	switch other.(type) {
	case Pointer, Func, Array:
		return true
	}
	return false
}

// Func is a function type.
type Func struct {
	Returns Type
	Params  []Type
	IsConst bool
}

func (t Func) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return constWrap(fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), t.Returns), t.IsConst)
}

// Functions are referenced through code pointers.
func (t Func) Size() (int, error) { return PointerSize, nil }
func (t Func) Signed() bool       { return false }
func (t Func) Const() bool        { return t.IsConst }

func (t Func) WithConst() Type {
	t.IsConst = true
	return t
}

func (t Func) Equal(other Type) bool {
	o, ok := other.(Func)
	if !ok || !o.Returns.Equal(t.Returns) || o.IsConst != t.IsConst || len(o.Params) != len(t.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

func (t Func) ImplicitlyCastsTo(other Type) bool {
	switch other.(type) {
	case Pointer, Func:
		return true
	}
	return false
}

func constWrap(s string, isConst bool) string {
	if isConst {
		return "|" + s + "|"
	}
	return s
}

// Well-known types.
var (
	Char      = Int{Width: 1}
	ConstChar = Int{Width: 1, IsConst: true}
	StringLit = Pointer{To: ConstChar}
)
