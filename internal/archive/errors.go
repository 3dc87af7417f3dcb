package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotImplemented is returned for providers that are declared but not supported yet.
	ErrProviderNotImplemented = errors.New("provider not implemented")
	// ErrUnknownProvider is returned when a provider name cannot be parsed.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrInvalidResource is returned when the identifier does not name a mod on the provider.
	ErrInvalidResource = errors.New("invalid resource identifier")
)

// Kind classifies which pipeline stage an error came from.
type Kind int

const (
	KindPlanning Kind = iota + 1
	KindTransfer
	KindExtraction
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindPlanning:
		return "planning"
	case KindTransfer:
		return "transfer"
	case KindExtraction:
		return "extraction"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is a pipeline failure tagged with its stage.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the stage kind of err, or 0 if err is not a pipeline error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
