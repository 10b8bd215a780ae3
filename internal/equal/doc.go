// Package equal provides the equality predicates used wherever tstate has to
// decide whether something changed.
//
// Three predicates are provided, from cheapest to most thorough:
//
//   - Identity: reference identity for reference kinds (pointers, maps,
//     slices, chans, funcs) and value equality for scalars. NaN equals NaN.
//     This is the default check for SetState and SetKey.
//   - Shallow: Identity, or same-typed aggregates (slice, array, map, struct,
//     pointer-to-aggregate) whose direct members are Identity-equal. Nested
//     aggregates are compared by reference, not recursively.
//   - Deep: Identity, or recursive structural equality.
//
// time.Time values compare by instant and regexp values by source pattern in
// both Shallow and Deep. Values of different dynamic types are never equal, and
// a map key that is absent is never equal to a key that holds nil.
//
// Traversal is a closed switch over reflect.Kind. Cyclic input is not
// supported by Deep.
package equal
