package symbols

// ConvertibleTo reports whether a value of type from may be used where a
// value of type to is expected. The relation is directional: a string
// literal converts to a string object, but not the other way around.
func (t *Table) ConvertibleTo(from, to Vartype) bool {
	if from.IsVoid() || to.IsVoid() {
		return false
	}
	if from == to {
		return true
	}
	if from.IsNull() {
		return to.IsDynpointer() || to.Dynarray
	}

	// A string object may be read as a const string; a string converts to a
	// string object.
	if t.IsStringObject(from) && to.Const && to.WithoutConst().IsOldString() {
		return true
	}
	if from.WithoutConst().IsOldString() && t.IsStringObject(to) {
		return true
	}
	if from.WithoutConst().IsOldString() != to.WithoutConst().IsOldString() {
		return false
	}
	if from.Const && !to.Const {
		return false
	}
	if from.WithoutConst().IsOldString() {
		return true
	}

	from, to = from.WithoutConst(), to.WithoutConst()
	if from.IsFloat() != to.IsFloat() {
		return false
	}
	if from.IsInteger() && to == Of(Int) {
		return true
	}

	if from.Dynarray || to.Dynarray {
		if from.Dynarray != to.Dynarray {
			return false
		}
		from.Dynarray, to.Dynarray = false, false
		return from == to
	}

	if from.IsDynpointer() || to.IsDynpointer() {
		if from.IsDynpointer() != to.IsDynpointer() {
			return false
		}
		return t.Extends(from.Base, to.Base)
	}

	if t.IsStruct(from.Base) || t.IsStruct(to.Base) || from.IsArray() || to.IsArray() {
		return from == to
	}
	return true
}
