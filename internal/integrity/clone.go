package integrity

import (
	"reflect"

	"github.com/roach88/tstate/internal/equal"
)

// ShallowClone copies one level of v: slices and maps get a fresh backing
// store, pointers to structs get a fresh struct. Scalars, strings, structs
// and everything else are returned as is (they are already values).
func ShallowClone[T any](v T) T {
	rv := reflect.ValueOf(&v).Elem()
	return fromValue[T](shallowCopy(rv))
}

// DeepClone copies v recursively. Shared pointers stay shared in the copy.
// Unexported struct fields and Exempt values are carried over by reference.
func DeepClone[T any](v T) T {
	rv := reflect.ValueOf(&v).Elem()
	c := &cloner{memo: make(map[cloneKey]reflect.Value)}
	return fromValue[T](c.copy(rv))
}

// Share returns next with every subtree that is structurally equal to the
// matching subtree of prev replaced by prev's value, so unchanged parts keep
// their identity. next must be exclusively owned by the caller; it is
// updated in place where possible.
func Share[T any](prev, next T) T {
	p := reflect.ValueOf(&prev).Elem()
	n := reflect.ValueOf(&next).Elem()
	return fromValue[T](share(p, n))
}

func fromValue[T any](v reflect.Value) T {
	var out T
	if v.IsValid() {
		reflect.ValueOf(&out).Elem().Set(v)
	}
	return out
}

func shallowCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(c, v)
		return c
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), iter.Value())
		}
		return c
	case reflect.Pointer:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct || v.Type().Implements(exemptType) {
			return v
		}
		c := reflect.New(v.Elem().Type())
		c.Elem().Set(v.Elem())
		return c
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		c := reflect.New(v.Type()).Elem()
		c.Set(shallowCopy(v.Elem()))
		return c
	default:
		return v
	}
}

type cloner struct {
	memo map[cloneKey]reflect.Value
}

// cloneKey identifies an already copied pointer, map or slice so shared and
// cyclic references keep their shape in the copy.
type cloneKey struct {
	typ  reflect.Type
	addr uintptr
	n    int
}

func keyOf(v reflect.Value) cloneKey {
	k := cloneKey{typ: v.Type(), addr: v.Pointer()}
	if v.Kind() == reflect.Slice {
		k.n = v.Len()
	}
	return k
}

func (c *cloner) copy(v reflect.Value) reflect.Value {
	if !v.IsValid() || v.Type().Implements(exemptType) {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		if done, ok := c.memo[keyOf(v)]; ok {
			return done
		}
		out := reflect.New(v.Elem().Type())
		c.memo[keyOf(v)] = out
		out.Elem().Set(c.copy(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(c.copy(v.Elem()))
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		if done, ok := c.memo[keyOf(v)]; ok {
			return done
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.memo[keyOf(v)] = out
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.copy(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.copy(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		if done, ok := c.memo[keyOf(v)]; ok {
			return done
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.memo[keyOf(v)] = out
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), c.copy(iter.Value()))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(c.copy(v.Field(i)))
			}
		}
		return out
	default:
		return v
	}
}

func share(p, n reflect.Value) reflect.Value {
	if !p.IsValid() || !n.IsValid() || p.Type() != n.Type() {
		return n
	}
	if !p.CanInterface() || !n.CanInterface() {
		return n
	}
	if equal.Deep(p.Interface(), n.Interface()) {
		return p
	}

	switch n.Kind() {
	case reflect.Map:
		if p.IsNil() || n.IsNil() {
			return n
		}
		iter := n.MapRange()
		for iter.Next() {
			if pv := p.MapIndex(iter.Key()); pv.IsValid() {
				n.SetMapIndex(iter.Key(), share(pv, iter.Value()))
			}
		}
		return n
	case reflect.Pointer:
		if p.IsNil() || n.IsNil() {
			return n
		}
		n.Elem().Set(share(p.Elem(), n.Elem()))
		return n
	case reflect.Slice:
		if p.IsNil() || n.IsNil() {
			return n
		}
		for i := 0; i < n.Len() && i < p.Len(); i++ {
			n.Index(i).Set(share(p.Index(i), n.Index(i)))
		}
		return n
	case reflect.Struct:
		out := reflect.New(n.Type()).Elem()
		out.Set(n)
		for i := 0; i < n.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(share(p.Field(i), n.Field(i)))
			}
		}
		return out
	case reflect.Interface:
		if p.IsNil() || n.IsNil() || p.Elem().Type() != n.Elem().Type() {
			return n
		}
		out := reflect.New(n.Type()).Elem()
		out.Set(share(p.Elem(), n.Elem()))
		return out
	default:
		return n
	}
}
