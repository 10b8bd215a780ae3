package integrity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// ErrViolation is the sentinel wrapped by every *Violation.
var ErrViolation = errors.New("published snapshot was mutated in place")

// Exempt marks types the guard must not traverse. Stores implement it so a
// store embedded in another store's state keeps mutating its own internals.
type Exempt interface {
	ExemptFromIntegrity()
}

var exemptType = reflect.TypeOf((*Exempt)(nil)).Elem()

// Violation reports that a sealed value no longer matches its fingerprint.
type Violation struct {
	Want uint64
	Got  uint64
}

func (v *Violation) Error() string {
	return fmt.Sprintf("integrity: %v (fingerprint %016x, now %016x)", ErrViolation, v.Want, v.Got)
}

func (v *Violation) Unwrap() error {
	return ErrViolation
}

// Seal holds the fingerprint of a frozen value.
type Seal struct {
	value  reflect.Value
	ignore func(any) bool
	sum    uint64
}

// Freeze seals v and returns it unchanged together with its seal.
func Freeze[T any](v T, ignore func(any) bool) (T, *Seal) {
	rv := reflect.ValueOf(&v).Elem()
	s := &Seal{value: rv, ignore: ignore}
	s.sum = fingerprint(rv, ignore)
	return v, s
}

// Check recomputes the fingerprint and returns a *Violation if it moved.
// A nil seal always passes.
func (s *Seal) Check() error {
	if s == nil {
		return nil
	}
	if got := fingerprint(s.value, s.ignore); got != s.sum {
		return &Violation{Want: s.sum, Got: got}
	}
	return nil
}

// Sum returns the recorded fingerprint.
func (s *Seal) Sum() uint64 {
	if s == nil {
		return 0
	}
	return s.sum
}

// Fingerprint hashes everything reachable from v.
func Fingerprint(v any, ignore func(any) bool) uint64 {
	return fingerprint(reflect.ValueOf(v), ignore)
}

func fingerprint(v reflect.Value, ignore func(any) bool) uint64 {
	w := &walker{
		d:      xxhash.New(),
		ignore: ignore,
		path:   make(map[ref]struct{}),
	}
	w.walk(v)
	return w.d.Sum64()
}

// walker feeds a kind-tagged encoding of a value into a digest. path holds
// the references on the current descent only, so shared subtrees hash the
// same way wherever they are reached from.
type walker struct {
	d      *xxhash.Digest
	ignore func(any) bool
	path   map[ref]struct{}
	buf    [8]byte
}

const (
	tagInvalid byte = iota + 1
	tagNil
	tagSkipped
	tagCycle
)

func (w *walker) tag(b byte) {
	w.d.Write([]byte{b})
}

func (w *walker) u64(n uint64) {
	binary.LittleEndian.PutUint64(w.buf[:], n)
	w.d.Write(w.buf[:])
}

func (w *walker) skip(v reflect.Value) bool {
	if v.Type().Implements(exemptType) {
		return true
	}
	if w.ignore == nil || !v.CanInterface() {
		return false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Struct, reflect.Array, reflect.Interface:
		return w.ignore(v.Interface())
	}
	return false
}

// ref identifies a pointer, map or slice on the descent.
type ref struct {
	kind reflect.Kind
	addr uintptr
}

// enter records v on the path. It tags a cycle and returns false if v is
// already being walked.
func (w *walker) enter(v reflect.Value) bool {
	r := ref{kind: v.Kind(), addr: v.Pointer()}
	if _, onPath := w.path[r]; onPath {
		w.tag(tagCycle)
		return false
	}
	w.path[r] = struct{}{}
	return true
}

func (w *walker) leave(v reflect.Value) {
	delete(w.path, ref{kind: v.Kind(), addr: v.Pointer()})
}

func (w *walker) elems(v reflect.Value) {
	w.u64(uint64(v.Len()))
	for i := 0; i < v.Len(); i++ {
		w.walk(v.Index(i))
	}
}

func (w *walker) walk(v reflect.Value) {
	if !v.IsValid() {
		w.tag(tagInvalid)
		return
	}
	if w.skip(v) {
		w.tag(tagSkipped)
		return
	}

	kind := v.Kind()
	w.tag(byte(kind) + 16)

	switch kind {
	case reflect.Bool:
		if v.Bool() {
			w.u64(1)
		} else {
			w.u64(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.u64(uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.u64(v.Uint())
	case reflect.Float32, reflect.Float64:
		w.u64(math.Float64bits(v.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		w.u64(math.Float64bits(real(c)))
		w.u64(math.Float64bits(imag(c)))
	case reflect.String:
		w.u64(uint64(v.Len()))
		w.d.WriteString(v.String())
	case reflect.Pointer:
		if v.IsNil() {
			w.tag(tagNil)
			return
		}
		if !w.enter(v) {
			return
		}
		w.walk(v.Elem())
		w.leave(v)
	case reflect.Interface:
		if v.IsNil() {
			w.tag(tagNil)
			return
		}
		w.d.WriteString(v.Elem().Type().String())
		w.walk(v.Elem())
	case reflect.Slice:
		if v.IsNil() {
			w.tag(tagNil)
			return
		}
		if !w.enter(v) {
			return
		}
		w.elems(v)
		w.leave(v)
	case reflect.Array:
		w.elems(v)
	case reflect.Map:
		if v.IsNil() {
			w.tag(tagNil)
			return
		}
		if !w.enter(v) {
			return
		}
		defer w.leave(v)
		w.u64(uint64(v.Len()))
		// Entries are hashed independently and summed so iteration order
		// does not matter.
		var sum uint64
		iter := v.MapRange()
		for iter.Next() {
			entry := &walker{d: xxhash.New(), ignore: w.ignore, path: w.path}
			entry.walk(iter.Key())
			entry.walk(iter.Value())
			sum += entry.d.Sum64()
		}
		w.u64(sum)
	case reflect.Struct:
		w.d.WriteString(v.Type().String())
		for i := 0; i < v.NumField(); i++ {
			w.walk(v.Field(i))
		}
	default:
		// Func, Chan, UnsafePointer: not structurally freezable.
		w.tag(tagSkipped)
	}
}
