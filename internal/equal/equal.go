package equal

import (
	"reflect"
	"regexp"
	"time"
)

// Func reports whether a and b should be treated as equal.
type Func func(a, b any) bool

// Not inverts an equality function. Handy for "changed" predicates.
func Not(f Func) Func {
	return func(a, b any) bool {
		return !f(a, b)
	}
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	regexpPtrType = reflect.TypeOf((*regexp.Regexp)(nil))
)

// Identity reports whether a and b are the same value.
//
// Reference kinds compare by address (slices by data pointer and length),
// everything else by value. It never dereferences.
func Identity(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return identical(reflect.ValueOf(a), reflect.ValueOf(b))
}

// Shallow reports whether a and b are identical or are aggregates of the same
// type whose direct members are identical.
func Shallow(a, b any) bool {
	if Identity(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return shallow(reflect.ValueOf(a), reflect.ValueOf(b))
}

// Deep reports whether a and b are structurally equal at every depth.
func Deep(a, b any) bool {
	if Identity(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return deep(reflect.ValueOf(a), reflect.ValueOf(b))
}

func identical(x, y reflect.Value) bool {
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}

	switch x.Kind() {
	case reflect.Bool:
		return x.Bool() == y.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return x.Int() == y.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return x.Uint() == y.Uint()
	case reflect.Float32, reflect.Float64:
		return sameFloat(x.Float(), y.Float())
	case reflect.Complex64, reflect.Complex128:
		cx, cy := x.Complex(), y.Complex()
		return sameFloat(real(cx), real(cy)) && sameFloat(imag(cx), imag(cy))
	case reflect.String:
		return x.String() == y.String()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return x.Pointer() == y.Pointer()
	case reflect.Slice:
		return x.Pointer() == y.Pointer() && x.Len() == y.Len() && x.IsNil() == y.IsNil()
	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() && y.IsNil()
		}
		return identical(x.Elem(), y.Elem())
	case reflect.Array:
		for i := 0; i < x.Len(); i++ {
			if !identical(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < x.NumField(); i++ {
			if !identical(x.Field(i), y.Field(i)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func shallow(x, y reflect.Value) bool {
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}
	if eq, ok := normalized(x, y); ok {
		return eq
	}

	switch x.Kind() {
	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() && y.IsNil()
		}
		return identical(x.Elem(), y.Elem()) || shallow(x.Elem(), y.Elem())
	case reflect.Pointer:
		if x.IsNil() || y.IsNil() {
			return false
		}
		return shallow(x.Elem(), y.Elem())
	case reflect.Slice, reflect.Array:
		if x.Len() != y.Len() {
			return false
		}
		for i := 0; i < x.Len(); i++ {
			if !identical(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if x.Len() != y.Len() {
			return false
		}
		iter := x.MapRange()
		for iter.Next() {
			yv := y.MapIndex(iter.Key())
			if !yv.IsValid() || !identical(iter.Value(), yv) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < x.NumField(); i++ {
			if !identical(x.Field(i), y.Field(i)) {
				return false
			}
		}
		return true
	default:
		return identical(x, y)
	}
}

func deep(x, y reflect.Value) bool {
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}
	if eq, ok := normalized(x, y); ok {
		return eq
	}

	switch x.Kind() {
	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() && y.IsNil()
		}
		return deep(x.Elem(), y.Elem())
	case reflect.Pointer:
		if x.Pointer() == y.Pointer() {
			return true
		}
		if x.IsNil() || y.IsNil() {
			return false
		}
		return deep(x.Elem(), y.Elem())
	case reflect.Slice, reflect.Array:
		if x.Len() != y.Len() {
			return false
		}
		for i := 0; i < x.Len(); i++ {
			if !deep(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if x.Len() != y.Len() {
			return false
		}
		if x.Pointer() == y.Pointer() {
			return true
		}
		iter := x.MapRange()
		for iter.Next() {
			yv := y.MapIndex(iter.Key())
			if !yv.IsValid() {
				yv = findKey(y, iter.Key())
				if !yv.IsValid() {
					return false
				}
			}
			if !deep(iter.Value(), yv) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < x.NumField(); i++ {
			if !deep(x.Field(i), y.Field(i)) {
				return false
			}
		}
		return true
	default:
		return identical(x, y)
	}
}

// findKey looks up a map entry whose key is structurally equal to key.
// Only keys that can hold references need the scan; plain comparable keys
// already failed the direct lookup.
func findKey(m, key reflect.Value) reflect.Value {
	switch key.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Struct, reflect.Array:
	default:
		return reflect.Value{}
	}
	iter := m.MapRange()
	for iter.Next() {
		if deep(iter.Key(), key) {
			return iter.Value()
		}
	}
	return reflect.Value{}
}

// normalized compares the scalar-like aggregate types by their normalized
// value. ok is false when x is not one of those types.
func normalized(x, y reflect.Value) (eq, ok bool) {
	switch x.Type() {
	case timeType:
		if !x.CanInterface() || !y.CanInterface() {
			return false, false
		}
		return x.Interface().(time.Time).Equal(y.Interface().(time.Time)), true
	case regexpPtrType:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() && y.IsNil(), true
		}
		if !x.CanInterface() || !y.CanInterface() {
			return false, false
		}
		return x.Interface().(*regexp.Regexp).String() == y.Interface().(*regexp.Regexp).String(), true
	}
	return false, false
}

func sameFloat(a, b float64) bool {
	return a == b || (a != a && b != b)
}
