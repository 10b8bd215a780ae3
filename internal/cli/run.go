package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/tstate/internal/harness"
	"github.com/roach88/tstate/internal/inspect"
	"github.com/roach88/tstate/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string
	Metrics bool
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
	State    map[string]any       `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario and print every notification it produced.

With --journal the inspection events of the run are recorded in a SQLite
journal (created if missing) that the trace command can read back. With
--metrics the store metrics of the run are printed in the Prometheus text
format after the trace.

Examples:
  tstate run ./scenarios/cart.yaml
  tstate run ./scenarios/cart.yaml --journal ./trace.db
  tstate run ./scenarios/cart.cue --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record inspection events in this SQLite journal")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print store metrics after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}

	runOpts := []harness.Option{harness.WithLogger(newLogger(opts.RootOptions, cmd))}

	if opts.Journal != "" {
		journal, err := inspect.OpenJournal(opts.Journal)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
		}
		defer journal.Close()
		runOpts = append(runOpts, harness.WithTool(journal))
		formatter.VerboseLog("Recording to journal %s", opts.Journal)
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithHooks(metrics.New(reg)))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRun, err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
		State:    result.State,
	}
	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: out}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeTestFailed, Message: "assertions failed"}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		printRunText(formatter.Writer, out)
	}

	if reg != nil {
		if err := writeMetrics(formatter.GetErrWriter(), reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

func printRunText(w io.Writer, r RunResult) {
	fmt.Fprintf(w, "Scenario: %s\n\n", r.Scenario)
	for _, e := range r.Trace {
		fmt.Fprintf(w, "[%s #%d] %s\n", e.Store, e.Seq, e.Action)
		fmt.Fprintf(w, "  %s -> %s\n", formatValue(e.Prev), formatValue(e.Current))
	}
	if len(r.Trace) == 0 {
		fmt.Fprintln(w, "(no notifications)")
	}
	fmt.Fprintln(w)

	if r.Pass {
		fmt.Fprintln(w, "✓ All assertions passed")
		return
	}
	fmt.Fprintln(w, "✗ Assertions failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// writeMetrics prints every gathered family in the text exposition format.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
