package harness

// TraceEvent is one notification pass of one store.
type TraceEvent struct {
	Store   string         `json:"store"`
	Seq     int64          `json:"seq"`
	Action  string         `json:"action"`
	Fields  map[string]any `json:"fields,omitempty"`
	Prev    any            `json:"prev"`
	Current any            `json:"current"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every notification of every store, in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final value of every store by name.
	State map[string]any `json:"state,omitempty"`

	// Observers holds how often each observer fired.
	Observers map[string]int `json:"observers,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		State:     make(map[string]any),
		Observers: make(map[string]int),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace records a notification.
func (r *Result) addTrace(store string, seq int64, action string, fields map[string]any, prev, current any) {
	r.Trace = append(r.Trace, TraceEvent{
		Store:   store,
		Seq:     seq,
		Action:  action,
		Fields:  normalizeMap(fields),
		Prev:    normalize(prev),
		Current: normalize(current),
	})
}

// StoreTrace returns the events of one store.
func (r *Result) StoreTrace(store string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Store == store {
			out = append(out, e)
		}
	}
	return out
}
