package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tstate/internal/state"
)

// MainStore is the name of the store every scenario drives.
const MainStore = "main"

// Scenario describes one store, what is attached to it, the mutations to
// apply and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// State is the initial value of the main store.
	State map[string]any `yaml:"state" json:"state"`

	// Debounce enables debounced flushes on the main store, driven by the
	// scenario's manual clock.
	Debounce *DebounceSpec `yaml:"debounce,omitempty" json:"debounce,omitempty"`

	// Computed declares derived stores over the main store.
	Computed []ComputedSpec `yaml:"computed,omitempty" json:"computed,omitempty"`

	// Middleware declares rules run before every commit, in order.
	Middleware []MiddlewareSpec `yaml:"middleware,omitempty" json:"middleware,omitempty"`

	// Observers declare change queries evaluated on every notification.
	Observers []ObserverSpec `yaml:"observers,omitempty" json:"observers,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions validate the trace and final values.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// DebounceSpec mirrors state.Debounce with durations as strings ("5ms").
type DebounceSpec struct {
	Wait    string `yaml:"wait" json:"wait"`
	MaxWait string `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`
	Leading bool   `yaml:"leading,omitempty" json:"leading,omitempty"`
}

func (d *DebounceSpec) resolve() (state.Debounce, error) {
	out := state.Debounce{Leading: d.Leading}
	var err error
	if out.Wait, err = parseDuration(d.Wait); err != nil {
		return state.Debounce{}, fmt.Errorf("debounce.wait: %w", err)
	}
	if d.MaxWait != "" {
		if out.MaxWait, err = parseDuration(d.MaxWait); err != nil {
			return state.Debounce{}, fmt.Errorf("debounce.max_wait: %w", err)
		}
	}
	return out, nil
}

// ComputedSpec declares a derived store whose value is an expression over
// the main store's fields.
type ComputedSpec struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// MiddlewareSpec declares a rule. Expressions see current, next and action.
// VetoIf rejects the mutation when true. ReplaceIf merges Replace into the
// proposed value when true.
type MiddlewareSpec struct {
	Name      string         `yaml:"name" json:"name"`
	VetoIf    string         `yaml:"veto_if,omitempty" json:"veto_if,omitempty"`
	ReplaceIf string         `yaml:"replace_if,omitempty" json:"replace_if,omitempty"`
	Replace   map[string]any `yaml:"replace,omitempty" json:"replace,omitempty"`
}

// ObserverSpec declares a change query on the main store. Exactly one of
// Keys, ChangeTo or Selector is set. Selector is an expression over the
// store's fields; with SelectTo set it must change to that value.
type ObserverSpec struct {
	Name     string         `yaml:"name" json:"name"`
	Keys     []string       `yaml:"keys,omitempty" json:"keys,omitempty"`
	ChangeTo map[string]any `yaml:"change_to,omitempty" json:"change_to,omitempty"`
	Selector string         `yaml:"selector,omitempty" json:"selector,omitempty"`
	SelectTo any            `yaml:"select_to,omitempty" json:"select_to,omitempty"`
}

// Step is one operation. Exactly one field other than Action is set.
type Step struct {
	// Action overrides the default action of set_key, set_partial and
	// set_state.
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	SetKey      *KeyValue      `yaml:"set_key,omitempty" json:"set_key,omitempty"`
	SetPartial  map[string]any `yaml:"set_partial,omitempty" json:"set_partial,omitempty"`
	SetState    map[string]any `yaml:"set_state,omitempty" json:"set_state,omitempty"`
	Batch       *BatchStep     `yaml:"batch,omitempty" json:"batch,omitempty"`
	StopFlush   bool           `yaml:"stop_flush,omitempty" json:"stop_flush,omitempty"`
	ResumeFlush bool           `yaml:"resume_flush,omitempty" json:"resume_flush,omitempty"`
	Advance     string         `yaml:"advance,omitempty" json:"advance,omitempty"`
	Reset       bool           `yaml:"reset,omitempty" json:"reset,omitempty"`
	Jump        map[string]any `yaml:"jump,omitempty" json:"jump,omitempty"`
}

// KeyValue is the argument of set_key.
type KeyValue struct {
	Key   string `yaml:"key" json:"key"`
	Value any    `yaml:"value" json:"value"`
}

// BatchStep groups steps into one notification.
type BatchStep struct {
	Action string `yaml:"action,omitempty" json:"action,omitempty"`
	Steps  []Step `yaml:"steps" json:"steps"`
}

// Assertion validates the trace or final values.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type" json:"type"`

	// Store selects the store the assertion reads (default main).
	Store string `yaml:"store,omitempty" json:"store,omitempty"`

	// Count is the expected number (notify_count, observer_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Observer names the observer (observer_count).
	Observer string `yaml:"observer,omitempty" json:"observer,omitempty"`

	// Expect holds expected fields, subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Value is the expected derived value (computed_value).
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Action is the action to look for (trace_contains).
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// Actions is the exact action sequence (trace_actions).
	Actions []string `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertNotifyCount   = "notify_count"
	AssertFinalState    = "final_state"
	AssertComputedValue = "computed_value"
	AssertObserverCount = "observer_count"
	AssertTraceActions  = "trace_actions"
	AssertTraceContains = "trace_contains"
)

// LoadScenario reads a scenario from a .yaml, .yml or .cue file.
// YAML is decoded strictly: unknown fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		scenario, err = ParseYAML(data)
	case ".cue":
		scenario, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

// ParseYAML parses and validates a YAML scenario.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return finish(&scenario)
}

// ParseCUE parses and validates a CUE scenario. filename is used in error
// positions only.
func ParseCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CUE: %w", err)
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return finish(&scenario)
}

func finish(s *Scenario) (*Scenario, error) {
	normalizeScenario(s)
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return s, nil
}

// normalizeScenario brings numbers from either decoder to the same types.
func normalizeScenario(s *Scenario) {
	s.State = normalizeMap(s.State)
	for i := range s.Middleware {
		s.Middleware[i].Replace = normalizeMap(s.Middleware[i].Replace)
	}
	for i := range s.Observers {
		s.Observers[i].ChangeTo = normalizeMap(s.Observers[i].ChangeTo)
		s.Observers[i].SelectTo = normalize(s.Observers[i].SelectTo)
	}
	normalizeSteps(s.Steps)
	for i := range s.Assertions {
		s.Assertions[i].Expect = normalizeMap(s.Assertions[i].Expect)
		s.Assertions[i].Value = normalize(s.Assertions[i].Value)
	}
}

func normalizeSteps(steps []Step) {
	for i := range steps {
		st := &steps[i]
		if st.SetKey != nil {
			st.SetKey.Value = normalize(st.SetKey.Value)
		}
		st.SetPartial = normalizeMap(st.SetPartial)
		st.SetState = normalizeMap(st.SetState)
		st.Jump = normalizeMap(st.Jump)
		if st.Batch != nil {
			normalizeSteps(st.Batch.Steps)
		}
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.State == nil {
		return fmt.Errorf("state is required (use {} for an empty state)")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Debounce != nil {
		if _, err := s.Debounce.resolve(); err != nil {
			return err
		}
	}

	stores := map[string]bool{MainStore: true}
	for i, c := range s.Computed {
		if c.Name == "" || c.Expr == "" {
			return fmt.Errorf("computed[%d]: name and expr are required", i)
		}
		if stores[c.Name] {
			return fmt.Errorf("computed[%d]: duplicate store name %q", i, c.Name)
		}
		stores[c.Name] = true
	}

	for i, m := range s.Middleware {
		if m.Name == "" {
			return fmt.Errorf("middleware[%d]: name is required", i)
		}
		if (m.VetoIf == "") == (m.ReplaceIf == "") {
			return fmt.Errorf("middleware[%d]: exactly one of veto_if or replace_if is required", i)
		}
		if m.ReplaceIf != "" && m.Replace == nil {
			return fmt.Errorf("middleware[%d]: replace is required with replace_if", i)
		}
	}

	observers := map[string]bool{}
	for i, o := range s.Observers {
		if o.Name == "" {
			return fmt.Errorf("observers[%d]: name is required", i)
		}
		kinds := 0
		for _, set := range []bool{len(o.Keys) > 0, o.ChangeTo != nil, o.Selector != ""} {
			if set {
				kinds++
			}
		}
		if kinds != 1 {
			return fmt.Errorf("observers[%d]: exactly one of keys, change_to or selector is required", i)
		}
		observers[o.Name] = true
	}

	if err := validateSteps("steps", s.Steps); err != nil {
		return err
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, stores, observers); err != nil {
			return err
		}
	}
	return nil
}

func validateSteps(path string, steps []Step) error {
	for i, st := range steps {
		where := fmt.Sprintf("%s[%d]", path, i)
		ops := 0
		for _, set := range []bool{
			st.SetKey != nil, st.SetPartial != nil, st.SetState != nil, st.Batch != nil,
			st.StopFlush, st.ResumeFlush, st.Advance != "", st.Reset, st.Jump != nil,
		} {
			if set {
				ops++
			}
		}
		if ops != 1 {
			return fmt.Errorf("%s: exactly one operation is required, found %d", where, ops)
		}
		if st.SetKey != nil && st.SetKey.Key == "" {
			return fmt.Errorf("%s.set_key: key is required", where)
		}
		if st.Advance != "" {
			if _, err := parseDuration(st.Advance); err != nil {
				return fmt.Errorf("%s.advance: %w", where, err)
			}
		}
		if st.Batch != nil {
			if err := validateSteps(where+".batch.steps", st.Batch.Steps); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, stores, observers map[string]bool) error {
	store := a.Store
	if store == "" {
		store = MainStore
	}
	if !stores[store] {
		return fmt.Errorf("assertions[%d]: unknown store %q", index, a.Store)
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertNotifyCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for notify_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertComputedValue:
		if store == MainStore {
			return fmt.Errorf("assertions[%d]: store must name a computed store for computed_value", index)
		}
	case AssertObserverCount:
		if !observers[a.Observer] {
			return fmt.Errorf("assertions[%d]: unknown observer %q", index, a.Observer)
		}
	case AssertTraceActions:
		if a.Actions == nil {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_actions", index)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}
