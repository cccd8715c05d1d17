package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

// OutputWriter handles CLI output formatting
type OutputWriter struct {
	out      io.Writer
	errOut   io.Writer
	format   types.OutputFormat
	quiet    bool
	verbose  bool
	traceID  string
	warnings []types.CLIWarning
}

// NewOutputWriter creates a new output writer. Results go to out, log lines
// to errOut; nil writers default to stdout and stderr.
func NewOutputWriter(out, errOut io.Writer, format types.OutputFormat, quiet, verbose bool) *OutputWriter {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &OutputWriter{
		out:      out,
		errOut:   errOut,
		format:   format,
		quiet:    quiet,
		verbose:  verbose,
		traceID:  uuid.New().String(),
		warnings: []types.CLIWarning{},
	}
}

// TraceID identifies this invocation in the JSON envelope and in logs
func (w *OutputWriter) TraceID() string {
	return w.traceID
}

// AddWarning adds a warning to the output
func (w *OutputWriter) AddWarning(code, message, severity string) {
	w.warnings = append(w.warnings, types.CLIWarning{
		Code:     code,
		Message:  message,
		Severity: severity,
	})
}

// WriteSuccess writes a successful result
func (w *OutputWriter) WriteSuccess(command string, data interface{}) error {
	if w.format == types.OutputFormatJSON {
		return w.writeJSON(w.envelope(command, data, nil))
	}
	for _, warn := range w.warnings {
		w.Log("warning: %s", warn.Message)
	}
	return w.writeTable(command, data)
}

// WriteError writes an error result
func (w *OutputWriter) WriteError(command string, cliErr types.CLIError) error {
	if w.format == types.OutputFormatTable {
		fmt.Fprintf(w.errOut, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
		if action, ok := cliErr.Context["suggestedAction"]; ok {
			fmt.Fprintf(w.errOut, "Hint: %v\n", action)
		}
		return nil
	}
	return w.writeJSON(w.envelope(command, nil, []types.CLIError{cliErr}))
}

func (w *OutputWriter) envelope(command string, data interface{}, errs []types.CLIError) types.CLIOutput {
	if errs == nil {
		errs = []types.CLIError{}
	}
	return types.CLIOutput{
		SchemaVersion: utils.SchemaVersion,
		TraceID:       w.traceID,
		Command:       command,
		Data:          data,
		Warnings:      w.warnings,
		Errors:        errs,
	}
}

func (w *OutputWriter) writeJSON(output types.CLIOutput) error {
	encoder := json.NewEncoder(w.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (w *OutputWriter) writeTable(command string, data interface{}) error {
	if renderable, ok := data.(types.TableRenderable); ok {
		return w.renderTable(renderable.AsTableRenderer())
	}
	if renderer, ok := data.(types.TableRenderer); ok {
		return w.renderTable(renderer)
	}
	// Fallback to JSON for types without a table form
	return w.writeJSON(w.envelope(command, data, nil))
}

func (w *OutputWriter) renderTable(renderer types.TableRenderer) error {
	rows := renderer.Rows()
	if len(rows) == 0 {
		if !w.quiet {
			fmt.Fprintln(w.out, renderer.EmptyMessage())
		}
		return nil
	}

	table := tablewriter.NewWriter(w.out)
	table.SetHeader(renderer.Headers())
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		table.Append(row)
	}

	table.Render()
	return nil
}

// Log writes to stderr if not quiet
func (w *OutputWriter) Log(format string, args ...interface{}) {
	if !w.quiet {
		fmt.Fprintf(w.errOut, format+"\n", args...)
	}
}

// Verbose writes to stderr if verbose is enabled
func (w *OutputWriter) Verbose(format string, args ...interface{}) {
	if w.verbose {
		fmt.Fprintf(w.errOut, "[VERBOSE] "+format+"\n", args...)
	}
}
