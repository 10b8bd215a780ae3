// Package harness runs store scenarios and checks what they publish.
//
// # Scenario Format
//
// Scenarios are YAML (or CUE, same fields) files:
//
//	name: batch_collapses
//	description: "three set_key calls inside a batch notify once"
//	state: {a: 0, b: 0}
//	debounce: {wait: 5ms, max_wait: 20ms}
//	computed:
//	  - name: sum
//	    expr: "a + b"
//	middleware:
//	  - name: no_negative
//	    veto_if: "next.a < 0"
//	observers:
//	  - name: a_changed
//	    keys: [a]
//	steps:
//	  - batch:
//	      action: bulk
//	      steps:
//	        - set_key: {key: a, value: 1}
//	  - advance: 10ms
//	  - reset: true
//	assertions:
//	  - type: notify_count
//	    count: 1
//	  - type: computed_value
//	    store: sum
//	    value: 1
//
// Expressions use github.com/expr-lang/expr. Computed expressions and
// selectors see the store's fields as variables; middleware rules see
// current, next and action.
//
// # Assertion Types
//
//   - notify_count: a store notified exactly count times
//   - final_state: the final value holds the expected fields
//   - computed_value: a computed store ended at value
//   - observer_count: an observer fired exactly count times
//   - trace_actions: a store's notifications carried exactly these actions
//   - trace_contains: some notification of a store carried action
//
// # Deterministic Testing
//
// Stores run on a testutil.ManualClock that only moves on advance steps,
// and the inspection session ID is derived from the scenario name, so a
// scenario always yields the same trace. Traces are compared against golden
// files as canonical JSON.
package harness
