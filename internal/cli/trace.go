package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tstate/internal/inspect"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - filter to one session
	Store    string // optional - filter to one store
}

// TraceEntry is one journal event in the timeline.
type TraceEntry struct {
	Ord     int64             `json:"ord"`
	ID      string            `json:"id"`
	Session string            `json:"session"`
	Store   string            `json:"store"`
	Kind    inspect.EventKind `json:"kind"`
	Seq     int64             `json:"seq"`
	Action  string            `json:"action,omitempty"`
	Fields  any               `json:"fields,omitempty"`
	Prev    any               `json:"prev,omitempty"`
	Current any               `json:"current"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int      `json:"total_events"`
	Inits       int      `json:"inits"`
	Changes     int      `json:"changes"`
	Sessions    []string `json:"sessions"`
	Stores      []string `json:"stores"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string       `json:"session,omitempty"`
	Store    string       `json:"store,omitempty"`
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read recorded inspection events from a journal",
		Long: `Print the events a run recorded in a SQLite journal, in the order
they were written. Each store contributes one init event followed by one
change event per notification.

Examples:
  tstate trace --db ./trace.db
  tstate trace --db ./trace.db --session cart-1 --store main
  tstate trace --db ./trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "filter to one session")
	cmd.Flags().StringVar(&opts.Store, "store", "", "filter to one store")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// OpenJournal creates missing files; a trace of nothing is a usage error.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Errorf("journal not found: %s", opts.Database))
	}

	journal, err := inspect.OpenJournal(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}
	defer journal.Close()

	entries, err := journal.Entries(cmd.Context(), inspect.Filter{Session: opts.Session, Store: opts.Store})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	result, err := buildTrace(opts, entries)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func buildTrace(opts *TraceOptions, entries []inspect.Entry) (TraceResult, error) {
	result := TraceResult{
		Session:  opts.Session,
		Store:    opts.Store,
		Timeline: make([]TraceEntry, 0, len(entries)),
		Stats:    TraceStats{Sessions: []string{}, Stores: []string{}},
	}

	for _, e := range entries {
		te := TraceEntry{
			Ord:     e.Ord,
			ID:      e.ID,
			Session: e.Session,
			Store:   e.Store,
			Kind:    e.Kind,
			Seq:     e.Seq,
			Action:  e.Action,
		}
		for _, col := range []struct {
			raw json.RawMessage
			dst *any
		}{{e.Fields, &te.Fields}, {e.Prev, &te.Prev}, {e.Current, &te.Current}} {
			if len(col.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(col.raw, col.dst); err != nil {
				return TraceResult{}, fmt.Errorf("event %s: %w", e.ID, err)
			}
		}
		if m, ok := te.Fields.(map[string]any); ok && len(m) == 0 {
			te.Fields = nil
		}

		switch e.Kind {
		case inspect.KindInit:
			result.Stats.Inits++
		case inspect.KindChange:
			result.Stats.Changes++
		}
		if !slices.Contains(result.Stats.Sessions, e.Session) {
			result.Stats.Sessions = append(result.Stats.Sessions, e.Session)
		}
		if !slices.Contains(result.Stats.Stores, e.Store) {
			result.Stats.Stores = append(result.Stats.Stores, e.Store)
		}
		result.Timeline = append(result.Timeline, te)
	}

	result.Stats.TotalEvents = len(result.Timeline)
	slices.Sort(result.Stats.Sessions)
	slices.Sort(result.Stats.Stores)
	return result, nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	if result.Session != "" {
		fmt.Fprintf(w, "Trace for session: %s\n", result.Session)
	}
	if result.Store != "" {
		fmt.Fprintf(w, "Store: %s\n", result.Store)
	}

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Timeline {
		switch e.Kind {
		case inspect.KindInit:
			fmt.Fprintf(w, "  [%s #%d] INIT %s\n", e.Store, e.Seq, formatValue(e.Current))
		default:
			fmt.Fprintf(w, "  [%s #%d] %s %s -> %s\n", e.Store, e.Seq, e.Action, formatValue(e.Prev), formatValue(e.Current))
		}
		if verbose {
			if e.Fields != nil {
				fmt.Fprintf(w, "       Fields: %s\n", formatValue(e.Fields))
			}
			fmt.Fprintf(w, "       Session: %s ID: %s\n", e.Session, truncateID(e.ID))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Inits:        %d\n", result.Stats.Inits)
	fmt.Fprintf(w, "  Changes:      %d\n", result.Stats.Changes)
	fmt.Fprintf(w, "  Sessions:     %s\n", strings.Join(result.Stats.Sessions, ", "))
}

// formatArgs formats a record for display with keys in sorted order.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested
// structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
