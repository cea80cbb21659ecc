package pipeline

import "github.com/rotisserie/eris"

// Sentinel errors. Every error returned by Run matches exactly one of them
// with errors.Is.
var (
	ErrInvalidInput         = eris.New("invalid input")
	ErrExtractionFailed     = eris.New("extraction failed")
	ErrCleaningFailed       = eris.New("cleaning failed")
	ErrIdentificationFailed = eris.New("identification failed")
	ErrSynthesisFailed      = eris.New("synthesis failed")
)

// StageError is a fatal failure of one pipeline stage. It matches both its
// Kind sentinel and the underlying error.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes Kind and Err to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func fatal(stage string, kind, err error) error {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
