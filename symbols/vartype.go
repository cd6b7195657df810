package symbols

// Vartype is the type of a value: a base type symbol plus modifiers.
type Vartype struct {
	Base     ID
	Const    bool
	Pointer  bool
	Dynarray bool
	// Array is the element count of a static array, 0 otherwise.
	Array int
}

// Of returns the plain vartype of base.
func Of(base ID) Vartype { return Vartype{Base: base} }

// PointerTo returns a managed pointer to base.
func PointerTo(base ID) Vartype { return Vartype{Base: base, Pointer: true} }

// IsZero reports whether no vartype is set.
func (v Vartype) IsZero() bool { return v == Vartype{} }

// IsArray reports whether v is a static array.
func (v Vartype) IsArray() bool { return v.Array > 0 }

// IsNull reports whether v is the type of the null literal.
func (v Vartype) IsNull() bool { return v.Base == Null }

// IsVoid reports whether v is void.
func (v Vartype) IsVoid() bool { return v.Base == Void && !v.Pointer && !v.Dynarray && v.Array == 0 }

// IsFloat reports whether v is a plain float.
func (v Vartype) IsFloat() bool { return v.Element() == Vartype{Base: Float} }

// IsInteger reports whether v is one of the integer types.
func (v Vartype) IsInteger() bool {
	if v.Pointer || v.Dynarray || v.Array > 0 {
		return false
	}
	switch v.Base {
	case Int, Char, Short, Long:
		return true
	}
	return false
}

// IsOldString reports whether v is the legacy fixed-size string type.
func (v Vartype) IsOldString() bool {
	return v.Base == String && !v.Pointer && !v.Dynarray && v.Array == 0
}

// Element strips array, dynarray and const modifiers, leaving the type of one
// element.
func (v Vartype) Element() Vartype {
	v.Array = 0
	v.Dynarray = false
	v.Const = false
	return v
}

// WithoutConst returns v without the const modifier.
func (v Vartype) WithoutConst() Vartype {
	v.Const = false
	return v
}

// WithConst returns v with the const modifier.
func (v Vartype) WithConst() Vartype {
	v.Const = true
	return v
}

// DynarrayOf returns a dynamic array of v.
func (v Vartype) DynarrayOf() Vartype {
	v.Dynarray = true
	v.Array = 0
	return v
}

// IsDynpointer reports whether v is a managed pointer that is not an array.
func (v Vartype) IsDynpointer() bool {
	return v.Pointer && !v.Dynarray && v.Array == 0
}

// IsManagedHandle reports whether v is held as a managed handle: a pointer
// or a dynamic array.
func (v Vartype) IsManagedHandle() bool {
	return v.Dynarray || (v.Pointer && v.Array == 0)
}
