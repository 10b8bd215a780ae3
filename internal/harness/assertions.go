package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries the trace
// of the store the assertion read.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%s #%d] %s %v -> %v\n", event.Store, event.Seq, event.Action, event.Prev, event.Current)
		}
	}
	return buf.String()
}

func storeOf(a Assertion) string {
	if a.Store == "" {
		return MainStore
	}
	return a.Store
}

func assertNotifyCount(result *Result, a Assertion) error {
	trace := result.StoreTrace(storeOf(a))
	if len(trace) != a.Count {
		return &AssertionError{
			Type:     AssertNotifyCount,
			Expected: fmt.Sprintf("%d notifications of %s", a.Count, storeOf(a)),
			Actual:   fmt.Sprintf("%d notifications", len(trace)),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalState(result *Result, a Assertion) error {
	store := storeOf(a)
	actual, ok := result.State[store].(map[string]any)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s to hold a record", store),
			Actual:   fmt.Sprintf("%T", result.State[store]),
		}
	}
	if key, ok := matchSubset(actual, a.Expect); !ok {
		got, present := actual[key]
		actualDesc := fmt.Sprintf("field %q = %v", key, got)
		if !present {
			actualDesc = fmt.Sprintf("field %q not present", key)
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("field %q = %v", key, a.Expect[key]),
			Actual:   actualDesc,
			Trace:    result.StoreTrace(store),
		}
	}
	return nil
}

func assertComputedValue(result *Result, a Assertion) error {
	got := result.State[a.Store]
	if !valuesEqual(got, a.Value) {
		return &AssertionError{
			Type:     AssertComputedValue,
			Expected: fmt.Sprintf("%s = %v", a.Store, a.Value),
			Actual:   fmt.Sprintf("%s = %v", a.Store, got),
			Trace:    result.StoreTrace(a.Store),
		}
	}
	return nil
}

func assertObserverCount(result *Result, a Assertion) error {
	if got := result.Observers[a.Observer]; got != a.Count {
		return &AssertionError{
			Type:     AssertObserverCount,
			Expected: fmt.Sprintf("observer %s fired %d times", a.Observer, a.Count),
			Actual:   fmt.Sprintf("fired %d times", got),
			Trace:    result.StoreTrace(MainStore),
		}
	}
	return nil
}

func assertTraceActions(result *Result, a Assertion) error {
	trace := result.StoreTrace(storeOf(a))
	actions := make([]string, len(trace))
	for i, e := range trace {
		actions[i] = e.Action
	}
	if !slices.Equal(actions, a.Actions) {
		return &AssertionError{
			Type:     AssertTraceActions,
			Expected: fmt.Sprintf("actions %v", a.Actions),
			Actual:   fmt.Sprintf("actions %v", actions),
			Trace:    trace,
		}
	}
	return nil
}

func assertTraceContains(result *Result, a Assertion) error {
	trace := result.StoreTrace(storeOf(a))
	for _, e := range trace {
		if e.Action == a.Action {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s in the trace of %s", a.Action, storeOf(a)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertNotifyCount:
			err = assertNotifyCount(result, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		case AssertComputedValue:
			err = assertComputedValue(result, a)
		case AssertObserverCount:
			err = assertObserverCount(result, a)
		case AssertTraceActions:
			err = assertTraceActions(result, a)
		case AssertTraceContains:
			err = assertTraceContains(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
