package state

import (
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/tstate/internal/equal"
	"github.com/roach88/tstate/internal/integrity"
)

// SetKey replaces one field of the state. T must be a struct, a pointer to
// a struct or a map with string keys; struct fields are matched by name or
// by json tag. The mutation is skipped if the key already holds an
// identical value. The default cause is "<name>.set.<key>".
func (s *Store[T]) SetKey(key string, value any, opts ...SetOption) (bool, error) {
	return s.UpdateKey(key, func(any) any { return value }, opts...)
}

// UpdateKey replaces one field with fn applied to its current value. A key
// missing from a map state is passed as nil.
func (s *Store[T]) UpdateKey(key string, fn func(prev any) any, opts ...SetOption) (bool, error) {
	cur := s.State()
	prev, present, err := s.lookupKey(cur, key)
	if err != nil {
		return false, err
	}

	value := fn(prev)
	cfg := resolveSet(setConfig{
		eq: equal.Identity,
		action: Action{
			Type:   s.prefixed("set." + key),
			Fields: map[string]any{"key": key, "value": value},
		},
	}, opts)
	if present && cfg.eq != nil && cfg.eq(prev, value) {
		s.cfg.hooks.Skipped(s.cfg.name, cfg.action)
		return false, nil
	}

	next, err := s.withKey(cur, key, value)
	if err != nil {
		return false, err
	}
	return s.apply(func(T) (T, bool) { return next, true }, setConfig{action: cfg.action}), nil
}

// SetPartialState merges partial into the state key by key. It is skipped
// if the current values of the given keys are already equal to partial
// (Shallow unless overridden). The default cause is "<name>.setPartial".
func (s *Store[T]) SetPartialState(partial map[string]any, opts ...SetOption) (bool, error) {
	cur := s.State()

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	before := make(map[string]any, len(partial))
	for _, k := range keys {
		v, present, err := s.lookupKey(cur, k)
		if err != nil {
			return false, err
		}
		if present {
			before[k] = v
		}
	}

	cfg := resolveSet(setConfig{
		eq: equal.Shallow,
		action: Action{
			Type:   s.prefixed("setPartial"),
			Fields: map[string]any{"partial": partial},
		},
	}, opts)
	if cfg.eq != nil && cfg.eq(before, partial) {
		s.cfg.hooks.Skipped(s.cfg.name, cfg.action)
		return false, nil
	}

	next := cur
	for _, k := range keys {
		var err error
		if next, err = s.withKey(next, k, partial[k]); err != nil {
			return false, err
		}
	}
	return s.apply(func(T) (T, bool) { return next, true }, setConfig{action: cfg.action}), nil
}

// ProduceState derives the next value by letting recipe edit a deep copy of
// the current one. The recipe may also assign a whole new value through the
// pointer. Parts of the result that equal the current value keep the
// current value's references, so an edit that changes nothing is skipped.
// The default cause is "produceState".
func (s *Store[T]) ProduceState(recipe func(draft *T), opts ...SetOption) bool {
	cfg := resolveSet(setConfig{eq: equal.Identity, action: Named("produceState")}, opts)
	return s.apply(func(cur T) (T, bool) {
		draft := integrity.DeepClone(cur)
		recipe(&draft)
		return integrity.Share(cur, draft), true
	}, cfg)
}

func (s *Store[T]) prefixed(suffix string) string {
	if s.cfg.name == "" {
		return suffix
	}
	return s.cfg.name + "." + suffix
}

// lookupKey returns the value stored under key and whether it is present.
func (s *Store[T]) lookupKey(v T, key string) (any, bool, error) {
	val, present, err := Lookup(v, key)
	if ce, ok := err.(*ConfigError); ok {
		ce.Store = s.cfg.name
	}
	return val, present, err
}

// Lookup returns the value stored under key in v and whether it is present.
// v must be a struct, a pointer to a struct or a map with string keys, the
// shapes SetKey accepts. A nil pointer reads as the zero struct.
func Lookup[T any](v T, key string) (any, bool, error) {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch {
	case isStringMap(rv.Type()):
		if rv.IsNil() {
			return nil, false, nil
		}
		e := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !e.IsValid() {
			return nil, false, nil
		}
		return e.Interface(), true, nil
	case isStructLike(rv.Type()):
		st := structType(rv.Type())
		idx, ok := fieldIndex(st, key)
		if !ok {
			return nil, false, newUnknownKeyError("", key)
		}
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Zero(st.Field(idx).Type).Interface(), true, nil
			}
			rv = rv.Elem()
		}
		return rv.Field(idx).Interface(), true, nil
	}
	return nil, false, newNotARecordError("", rv.Type())
}

// withKey returns a copy of v with key set to value. v is not modified.
func (s *Store[T]) withKey(v T, key string, value any) (T, error) {
	rv := reflect.ValueOf(&v).Elem()
	t := rv.Type()

	switch {
	case isStringMap(t):
		ev, ok := assignable(value, t.Elem())
		if !ok {
			return v, newKeyTypeError(s.cfg.name, key, t.Elem(), value)
		}
		out := reflect.MakeMapWithSize(t, rv.Len()+1)
		if !rv.IsNil() {
			iter := rv.MapRange()
			for iter.Next() {
				out.SetMapIndex(iter.Key(), iter.Value())
			}
		}
		out.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), ev)
		return out.Interface().(T), nil

	case isStructLike(t):
		st := structType(t)
		idx, ok := fieldIndex(st, key)
		if !ok {
			return v, newUnknownKeyError(s.cfg.name, key)
		}
		ev, ok := assignable(value, st.Field(idx).Type)
		if !ok {
			return v, newKeyTypeError(s.cfg.name, key, st.Field(idx).Type, value)
		}

		copied := reflect.New(st)
		if t.Kind() == reflect.Pointer {
			if !rv.IsNil() {
				copied.Elem().Set(rv.Elem())
			}
			copied.Elem().Field(idx).Set(ev)
			return copied.Interface().(T), nil
		}
		copied.Elem().Set(rv)
		copied.Elem().Field(idx).Set(ev)
		return copied.Elem().Interface().(T), nil
	}
	return v, newNotARecordError(s.cfg.name, t)
}

func isStringMap(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

func isStructLike(t reflect.Type) bool {
	return t.Kind() == reflect.Struct ||
		(t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct)
}

func structType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// fieldIndex finds the exported field named key or tagged json:"key".
func fieldIndex(t reflect.Type, key string) (int, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == key {
			return i, true
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag == key {
			return i, true
		}
	}
	return 0, false
}

// assignable converts value for storage in a slot of type t. nil is
// accepted for nillable slots only.
func assignable(value any, t reflect.Type) (reflect.Value, bool) {
	if value == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
			return reflect.Zero(t), true
		}
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, false
	}
	if t.Kind() == reflect.Interface {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, true
	}
	return rv, true
}
