package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tstate/internal/computed"
	"github.com/roach88/tstate/internal/inspect"
	"github.com/roach88/tstate/internal/integrity"
	"github.com/roach88/tstate/internal/observe"
	"github.com/roach88/tstate/internal/state"
	"github.com/roach88/tstate/internal/testutil"
)

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	tool   inspect.Tool
	hooks  state.Hooks
	logger *slog.Logger
}

// WithTool sends the run's inspection events to tool instead of an
// in-memory one.
func WithTool(tool inspect.Tool) Option {
	return func(c *runConfig) {
		c.tool = tool
	}
}

// WithHooks instruments every store of the run.
func WithHooks(h state.Hooks) Option {
	return func(c *runConfig) {
		c.hooks = h
	}
}

// WithLogger sets the stores' logger. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Harness holds the stores of one scenario run. Time only moves through
// advance steps, and session IDs derive from the scenario name, so a
// scenario always produces the same trace.
type Harness struct {
	scenario *Scenario
	prog     *program
	clock    *testutil.ManualClock
	session  *inspect.Session
	logger   *slog.Logger
	main     *state.Store[map[string]any]
	computed map[string]*computed.Store[any]
	result   *Result
	failure  error
}

// Run executes a scenario and evaluates its assertions.
//
// The returned error reports a scenario that could not be executed (a bad
// expression, a rejected set_key). Failed assertions are reported in the
// Result instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tool == nil {
		cfg.tool = &inspect.MemoryTool{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	prog, err := compileScenario(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		prog:     prog,
		clock:    testutil.NewManualClock(),
		logger:   cfg.logger,
		computed: make(map[string]*computed.Store[any]),
		result:   NewResult(),
	}
	h.session = inspect.NewSession(cfg.tool,
		inspect.WithIDGenerator(inspect.NewFixedGenerator(scenario.Name)),
		inspect.WithLogger(cfg.logger),
	)

	if err := h.setup(cfg); err != nil {
		return nil, err
	}
	if err := h.execute(); err != nil {
		return nil, err
	}

	h.result.State[MainStore] = normalize(h.main.State())
	for name, cs := range h.computed {
		h.result.State[name] = normalize(cs.State())
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// storeOptions are shared by the main and the computed stores.
func (h *Harness) storeOptions(hooks state.Hooks) []state.Option {
	opts := []state.Option{
		state.WithClock(h.clock),
		state.WithLogger(h.logger),
		state.WithInspector(h.session),
	}
	if hooks != nil {
		opts = append(opts, state.WithHooks(hooks))
	}
	return opts
}

// setup creates the main store and attaches middleware, tracing, computed
// stores and observers, in that order.
func (h *Harness) setup(cfg runConfig) error {
	opts := append(h.storeOptions(cfg.hooks), state.WithName(MainStore))
	if d := h.scenario.Debounce; d != nil {
		debounce, err := d.resolve()
		if err != nil {
			return err
		}
		opts = append(opts, state.WithDebounce(debounce))
	}
	h.main = state.New(integrity.DeepClone(h.scenario.State), opts...)

	for i, mw := range h.scenario.Middleware {
		h.main.AddMiddleware(middlewareFor(mw, h.prog.middleware[i], h.fail))
	}

	h.main.OnChange(tracer[map[string]any](h.result, MainStore))

	for i, c := range h.scenario.Computed {
		r := h.prog.computed[i]
		name := c.Name
		cs := computed.From(h.main, func(v map[string]any) any {
			out, err := r.eval(v)
			if err != nil {
				h.fail(fmt.Errorf("computed %q: %w", name, err))
				return nil
			}
			return out
		},
			computed.WithName(name),
			computed.WithStateOptions(h.storeOptions(cfg.hooks)...),
		)
		cs.OnChange(tracer[any](h.result, name))
		h.computed[name] = cs
	}

	for _, o := range h.scenario.Observers {
		h.main.OnChange(h.observer(o))
	}
	return nil
}

func tracer[T any](r *Result, store string) func(state.Change[T]) {
	return func(c state.Change[T]) {
		r.addTrace(store, c.Seq, c.Action.Type, c.Action.Fields, c.Prev, c.Current)
	}
}

func (h *Harness) observer(ob ObserverSpec) func(state.Change[map[string]any]) {
	fired := func() { h.result.Observers[ob.Name]++ }
	h.result.Observers[ob.Name] = 0

	return func(c state.Change[map[string]any]) {
		q := observe.Changes(c)
		switch {
		case len(ob.Keys) > 0:
			h.check(ob.Name, q.IfKeysChange(ob.Keys...)).Then(fired)
		case ob.ChangeTo != nil:
			h.check(ob.Name, q.IfKeysChangeTo(ob.ChangeTo)).Then(fired)
		default:
			r := h.prog.selectors[ob.Name]
			sel := q.IfSelector(func(v map[string]any) any {
				out, err := r.eval(v)
				if err != nil {
					h.fail(fmt.Errorf("observer %q: %w", ob.Name, err))
				}
				return out
			})
			then := sel.Change()
			if ob.SelectTo != nil {
				then = sel.ChangeTo(ob.SelectTo)
			}
			then.Then(func(observe.Selected[any]) { fired() })
		}
	}
}

func (h *Harness) check(observer string, cond observe.Condition) observe.Condition {
	if err := cond.Err(); err != nil {
		h.fail(fmt.Errorf("observer %q: %w", observer, err))
	}
	return cond
}

// fail records the first error raised inside a store callback.
func (h *Harness) fail(err error) {
	if h.failure == nil {
		h.failure = err
	}
}

// execute runs the steps. A panic escaping a store, such as an integrity
// violation, is returned as an error.
func (h *Harness) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scenario panicked: %v", r)
		}
	}()

	if err := h.runSteps("steps", h.scenario.Steps); err != nil {
		return err
	}
	return h.failure
}

func (h *Harness) runSteps(path string, steps []Step) error {
	for i, st := range steps {
		where := fmt.Sprintf("%s[%d]", path, i)
		if err := h.runStep(where, st); err != nil {
			return err
		}
		h.logger.Debug("step completed", "step", where)
	}
	return nil
}

func (h *Harness) runStep(where string, st Step) error {
	var setOpts []state.SetOption
	if st.Action != "" {
		setOpts = append(setOpts, state.WithAction(state.Named(st.Action)))
	}

	switch {
	case st.SetKey != nil:
		if _, err := h.main.SetKey(st.SetKey.Key, st.SetKey.Value, setOpts...); err != nil {
			return fmt.Errorf("%s.set_key: %w", where, err)
		}

	case st.SetPartial != nil:
		if _, err := h.main.SetPartialState(integrity.DeepClone(st.SetPartial), setOpts...); err != nil {
			return fmt.Errorf("%s.set_partial: %w", where, err)
		}

	case st.SetState != nil:
		if st.Action == "" {
			setOpts = append(setOpts, state.WithAction(state.Named("setState")))
		}
		h.main.SetState(integrity.DeepClone(st.SetState), setOpts...)

	case st.Batch != nil:
		var batchErr error
		var cause []state.Action
		if st.Batch.Action != "" {
			cause = append(cause, state.Named(st.Batch.Action))
		}
		h.main.Batch(func() {
			batchErr = h.runSteps(where+".batch.steps", st.Batch.Steps)
		}, cause...)
		return batchErr

	case st.StopFlush:
		h.main.StopFlush()

	case st.ResumeFlush:
		h.main.ResumeFlush()

	case st.Advance != "":
		d, err := parseDuration(st.Advance)
		if err != nil {
			return fmt.Errorf("%s.advance: %w", where, err)
		}
		h.clock.Advance(d)

	case st.Reset:
		return h.dispatch(where+".reset", inspect.Message{
			Type:    inspect.MsgDispatch,
			Payload: inspect.Payload{Type: inspect.PayloadReset},
		})

	case st.Jump != nil:
		data, err := json.Marshal(st.Jump)
		if err != nil {
			return fmt.Errorf("%s.jump: %w", where, err)
		}
		return h.dispatch(where+".jump", inspect.Message{
			Type:    inspect.MsgDispatch,
			Payload: inspect.Payload{Type: inspect.PayloadJumpToState},
			State:   string(data),
		})
	}
	return nil
}

func (h *Harness) dispatch(where string, msg inspect.Message) error {
	conn, ok := h.session.Connection(MainStore)
	if !ok {
		return fmt.Errorf("%s: main store is not connected", where)
	}
	if err := conn.Handle(msg); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	return nil
}
