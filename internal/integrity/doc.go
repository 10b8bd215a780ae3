// Package integrity guards published snapshots against in-place mutation and
// provides the clone helpers the store uses around its commit path.
//
// Go cannot mark memory read-only, so a snapshot is sealed instead: Freeze
// walks the value (a closed switch over reflect.Kind) and records an xxhash
// fingerprint of everything reachable from it. Seal.Check walks it again and
// reports a *Violation if anything changed. Stores check the seal of their
// current snapshot on every commit and flush, so code that writes into a map
// or slice it got from State() fails loudly on the next mutation. State()
// itself never walks the value.
//
// The guard is a development aid. Building with -tags production turns
// Enabled off and stores skip sealing entirely, which also makes commits
// O(1) in the size of the value. In that mode writing into a published snapshot silently corrupts the store.
//
// Values whose type implements Exempt are skipped, as are values rejected by
// the caller's ignore predicate and values that cannot be traversed
// structurally (funcs, chans, unsafe pointers).
package integrity
