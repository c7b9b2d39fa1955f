// Package output is the uniform emission contract every handler renders
// through: human-readable text with warnings on stderr, or exactly one JSON
// object on stdout carrying data, warnings, and errors.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/localtaskrepo/lotar/pkg/console"
)

// Format selects the rendering mode.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(raw string) (Format, error) {
	switch raw {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatJSON):
		return FormatJSON, nil
	}
	return "", fmt.Errorf("invalid format %q (expected text or json)", raw)
}

// Renderer is the shared emitter. In JSON mode messages accumulate until
// EmitJSON (or EmitError) flushes the single output object.
type Renderer struct {
	format   Format
	stdout   io.Writer
	stderr   io.Writer
	warnings []string
	silent   bool
}

// New creates a renderer over stdout/stderr. LOTAR_TEST_SILENT suppresses
// the informational chatter (warnings and errors still come through).
func New(format Format) *Renderer {
	return &Renderer{
		format: format,
		stdout: os.Stdout,
		stderr: os.Stderr,
		silent: os.Getenv("LOTAR_TEST_SILENT") != "",
	}
}

// NewWithWriters is the test constructor.
func NewWithWriters(format Format, stdout, stderr io.Writer) *Renderer {
	return &Renderer{format: format, stdout: stdout, stderr: stderr}
}

// JSON reports whether the renderer is in JSON mode.
func (r *Renderer) JSON() bool {
	return r.format == FormatJSON
}

// EmitInfo prints an informational line in text mode; silent in JSON mode.
func (r *Renderer) EmitInfo(message string) {
	if r.format == FormatText && !r.silent {
		fmt.Fprintln(r.stderr, console.FormatInfoMessage(message))
	}
}

// EmitSuccess prints a success line in text mode; silent in JSON mode.
func (r *Renderer) EmitSuccess(message string) {
	if r.format == FormatText && !r.silent {
		fmt.Fprintln(r.stderr, console.FormatSuccessMessage(message))
	}
}

// EmitWarning prints to stderr in text mode and queues into the JSON
// warnings array otherwise. Warnings never fail the operation.
func (r *Renderer) EmitWarning(message string) {
	if r.format == FormatText {
		fmt.Fprintln(r.stderr, console.FormatWarningMessage(message))
		return
	}
	r.warnings = append(r.warnings, message)
}

// RawStdout writes directly to stdout in text mode. No-op in JSON mode so
// the single-object contract holds.
func (r *Renderer) RawStdout(s string) {
	if r.format == FormatText {
		fmt.Fprint(r.stdout, s)
	}
}

// Envelope is the JSON output shape shared by CLI and HTTP responses.
type Envelope struct {
	Data     any           `json:"data,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the serialized error form.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// EmitJSON flushes the single JSON object for the command, folding in any
// queued warnings. In text mode it is a no-op (handlers render text
// themselves).
func (r *Renderer) EmitJSON(data any) error {
	if r.format != FormatJSON {
		return nil
	}
	envelope := Envelope{Data: data, Warnings: r.warnings}
	r.warnings = nil
	encoder := json.NewEncoder(r.stdout)
	return encoder.Encode(envelope)
}

// EmitError renders an error in the active mode. In JSON mode this is the
// command's single output object.
func (r *Renderer) EmitError(err error) {
	if r.format == FormatText {
		ce := AsCommandError(err)
		if ce.Suggestion != "" {
			fmt.Fprint(r.stderr, console.FormatErrorWithSuggestions(ce.Message, []string{ce.Suggestion}))
			return
		}
		fmt.Fprintln(r.stderr, console.FormatErrorMessage(ce.Message))
		return
	}

	ce := AsCommandError(err)
	envelope := Envelope{
		Warnings: r.warnings,
		Error:    &ErrorPayload{Code: string(ce.Kind), Message: ce.Message, Data: ce.Details},
	}
	r.warnings = nil
	_ = json.NewEncoder(r.stdout).Encode(envelope)
}
