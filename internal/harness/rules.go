package harness

import (
	"fmt"
	"maps"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/tstate/internal/state"
)

// rule is a compiled expression.
type rule struct {
	source  string
	program *vm.Program
}

func compileRule(source string) (*rule, error) {
	program, err := expr.Compile(source,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", source, err)
	}
	return &rule{source: source, program: program}, nil
}

func (r *rule) eval(env map[string]any) (any, error) {
	out, err := expr.Run(r.program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", r.source, err)
	}
	return normalize(out), nil
}

func (r *rule) evalBool(env map[string]any) (bool, error) {
	out, err := r.eval(env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: want bool, got %T", r.source, out)
	}
	return b, nil
}

// program holds every compiled expression of a scenario.
type program struct {
	computed   []*rule
	middleware []*rule
	selectors  map[string]*rule
}

// Compile checks that every expression in s compiles.
func Compile(s *Scenario) error {
	_, err := compileScenario(s)
	return err
}

func compileScenario(s *Scenario) (*program, error) {
	p := &program{selectors: map[string]*rule{}}
	for _, c := range s.Computed {
		r, err := compileRule(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("computed %q: %w", c.Name, err)
		}
		p.computed = append(p.computed, r)
	}
	for _, m := range s.Middleware {
		src := m.VetoIf
		if src == "" {
			src = m.ReplaceIf
		}
		r, err := compileRule(src)
		if err != nil {
			return nil, fmt.Errorf("middleware %q: %w", m.Name, err)
		}
		p.middleware = append(p.middleware, r)
	}
	for _, o := range s.Observers {
		if o.Selector == "" {
			continue
		}
		r, err := compileRule(o.Selector)
		if err != nil {
			return nil, fmt.Errorf("observer %q: %w", o.Name, err)
		}
		p.selectors[o.Name] = r
	}
	return p, nil
}

// middlewareFor turns a rule into store middleware. Evaluation errors veto
// the mutation and are reported through fail.
func middlewareFor(mw MiddlewareSpec, r *rule, fail func(error)) state.MiddlewareFunc[map[string]any] {
	return func(m state.Mutation[map[string]any]) state.Decision[map[string]any] {
		env := map[string]any{
			"current": m.Current,
			"next":    m.Next,
			"action":  m.Action.Type,
		}
		hit, err := r.evalBool(env)
		if err != nil {
			fail(fmt.Errorf("middleware %q: %w", mw.Name, err))
			return state.Veto[map[string]any]()
		}
		switch {
		case !hit:
			return state.Allow[map[string]any]()
		case mw.VetoIf != "":
			return state.Veto[map[string]any]()
		default:
			next := maps.Clone(m.Next)
			if next == nil {
				next = map[string]any{}
			}
			maps.Copy(next, mw.Replace)
			return state.Replace(next)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
