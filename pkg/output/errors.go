package output

import (
	"errors"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
	"github.com/localtaskrepo/lotar/pkg/vocabulary"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

// ErrorKind classifies service failures for exit codes, HTTP statuses, and
// JSON-RPC error numbers.
type ErrorKind string

const (
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindValidation      ErrorKind = "validation_error"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindIo              ErrorKind = "io_error"
	KindParse           ErrorKind = "parse_error"
	KindUnsupported     ErrorKind = "unsupported"
	KindInternal        ErrorKind = "internal"
)

// CommandError is the classified error form all surfaces render from.
type CommandError struct {
	Kind       ErrorKind
	Message    string
	Details    any
	Suggestion string
}

func (e *CommandError) Error() string { return e.Message }

// ExitCode maps the kind onto the CLI contract: 1 for user errors, 2 for
// internal ones.
func (e *CommandError) ExitCode() int {
	switch e.Kind {
	case KindIo, KindParse, KindInternal:
		return 2
	}
	return 1
}

// HTTPStatus maps the kind onto the REST status codes.
func (e *CommandError) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindIo, KindParse, KindInternal:
		return 500
	}
	return 400
}

// AsCommandError classifies any error into a CommandError, unwrapping the
// typed service errors.
func AsCommandError(err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}

	var verr *vocabulary.ValidationError
	if errors.As(err, &verr) {
		return &CommandError{
			Kind:    KindValidation,
			Message: verr.Error(),
			Details: map[string]any{
				"field":   verr.Field,
				"value":   verr.Value,
				"allowed": verr.Allowed,
			},
			Suggestion: verr.Suggestion,
		}
	}

	var taskNotFound *task.NotFoundError
	if errors.As(err, &taskNotFound) {
		return &CommandError{Kind: KindNotFound, Message: err.Error()}
	}
	var sprintNotFound *sprint.NotFoundError
	if errors.As(err, &sprintNotFound) {
		return &CommandError{Kind: KindNotFound, Message: err.Error()}
	}

	var conflict *sprint.ConflictError
	if errors.As(err, &conflict) {
		return &CommandError{Kind: KindConflict, Message: err.Error()}
	}

	var prefixConflict *workspace.ConflictError
	if errors.As(err, &prefixConflict) {
		ce := &CommandError{Kind: KindConflict, Message: err.Error()}
		if len(prefixConflict.Alternatives) > 0 {
			ce.Details = map[string]any{"alternatives": prefixConflict.Alternatives}
			ce.Suggestion = prefixConflict.Alternatives[0]
		}
		return ce
	}

	var badID *task.InvalidIDError
	if errors.As(err, &badID) {
		return &CommandError{Kind: KindInvalidArgument, Message: err.Error()}
	}

	var unknownField *config.UnknownFieldError
	if errors.As(err, &unknownField) {
		return &CommandError{
			Kind:       KindInvalidArgument,
			Message:    err.Error(),
			Details:    map[string]any{"allowed": unknownField.Allowed},
			Suggestion: unknownField.Suggestion,
		}
	}
	var invalidValue *config.InvalidValueError
	if errors.As(err, &invalidValue) {
		return &CommandError{Kind: KindValidation, Message: err.Error()}
	}
	var parseErr *config.ParseError
	if errors.As(err, &parseErr) {
		return &CommandError{Kind: KindParse, Message: err.Error()}
	}
	var ioErr *config.IoError
	if errors.As(err, &ioErr) {
		return &CommandError{Kind: KindIo, Message: err.Error()}
	}

	return &CommandError{Kind: KindInternal, Message: err.Error()}
}
