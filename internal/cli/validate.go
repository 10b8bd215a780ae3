package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tstate/internal/harness"
)

// ValidationError is one scenario file that failed to load or compile.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>...",
		Short: "Check scenarios without running them",
		Long: `Load scenario files (YAML or CUE) and compile their expressions
without running any step. Directories are searched recursively.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (missing paths)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := collectScenarios(paths, "")
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}
	formatter.VerboseLog("Found %d scenario file(s)", len(files))

	result := ValidationResult{Valid: true, Files: len(files)}
	for _, file := range files {
		if verr := validateFile(file); verr != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *verr)
			continue
		}
		formatter.VerboseLog("Valid: %s", file)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ %d scenario(s) valid\n", result.Files)
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		for _, e := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", e.File, e.Code, e.Message)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func validateFile(file string) *ValidationError {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return &ValidationError{File: file, Code: ErrCodeLoad, Message: err.Error()}
	}
	if err := harness.Compile(scenario); err != nil {
		return &ValidationError{File: file, Code: ErrCodeCompile, Message: err.Error()}
	}
	return nil
}

// collectScenarios expands directories into their scenario files. Plain
// files are taken as given.
func collectScenarios(paths []string, filter string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("scenario path not found: %s", path)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := harness.FindScenarios(path, filter)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
