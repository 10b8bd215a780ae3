// Package inspect connects stores to an external inspection tool.
//
// A Session implements state.Inspector. Every named store created with
// state.WithInspector(session) gets a Connection, registered in the
// session's Registry under the store's name. A later store with the same
// name replaces the earlier connection and closes it, which is what a hot
// reload needs.
//
// Connections forward every published change to the session's Tool and
// accept commands back from it:
//
//	START, STOP                       tool lifecycle
//	DISPATCH RESET                    restore the value first seen
//	DISPATCH JUMP_TO_STATE            restore a JSON snapshot
//	DISPATCH JUMP_TO_ACTION           restore a JSON snapshot
//	DISPATCH COMMIT                   re-initialize the tool at the last value
//
// Restores go through the store's normal SetState pipeline, so equality
// checks and middleware apply to them.
//
// Journal is a Tool that records sessions into SQLite, with snapshots
// encoded as canonical JSON (RFC 8785 key order, NFC strings).
package inspect
