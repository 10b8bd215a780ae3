// Package computed derives read-only stores from other stores.
//
// A computed store wraps an internal state.Store whose value is a pure
// combinator applied to the current values of 1..N sources. Nothing is
// computed until the value is first read or the store is first subscribed
// to, and the sources are only subscribed to on activation:
//
//	Inactive --Activate/Subscribe--> Active --Destroy--> Inactive
//
// Both transitions are idempotent. While active, every source change is
// screened by the store equality (did the source really change?) and the
// recombined value by the computed equality (did the result change?) before
// the internal store publishes it. Both default to equal.Shallow.
package computed
