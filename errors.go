package goontology

import (
	"context"
	"errors"
	"fmt"

	"github.com/brunobiangulo/goontology/extract"
	"github.com/brunobiangulo/goontology/llm"
)

// ErrorKind classifies every failure Generate can return.
type ErrorKind string

const (
	KindEmptyDomain            ErrorKind = "EmptyDomain"
	KindTimeout                ErrorKind = "Timeout"
	KindProcessFailure         ErrorKind = "ProcessFailure"
	KindNoJSONFound            ErrorKind = "NoJsonFound"
	KindGeneratorReportedError ErrorKind = "GeneratorReportedError"
	KindInvalidShape           ErrorKind = "InvalidShape"
)

var (
	// ErrEmptyDomain is returned when the domain is empty after trimming.
	ErrEmptyDomain = errors.New("goontology: empty domain")

	// ErrTimeout is returned when the generator exceeds its time bound.
	ErrTimeout = errors.New("goontology: generator timed out")

	// ErrProcessFailure is returned when the generator fails or is unreachable.
	ErrProcessFailure = errors.New("goontology: generator failed")

	// ErrNoJSONFound is returned when the output contains no JSON object.
	ErrNoJSONFound = errors.New("goontology: no JSON found in generator output")

	// ErrGeneratorReportedError is returned when the output carries an "error" key.
	ErrGeneratorReportedError = errors.New("goontology: generator reported an error")

	// ErrInvalidShape is returned when the JSON has an unusable structure.
	ErrInvalidShape = errors.New("goontology: invalid ontology shape")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("goontology: invalid configuration")

	// ErrClosed is returned when using an engine after Close.
	ErrClosed = errors.New("goontology: engine is closed")
)

var sentinels = map[ErrorKind]error{
	KindEmptyDomain:            ErrEmptyDomain,
	KindTimeout:                ErrTimeout,
	KindProcessFailure:         ErrProcessFailure,
	KindNoJSONFound:            ErrNoJSONFound,
	KindGeneratorReportedError: ErrGeneratorReportedError,
	KindInvalidShape:           ErrInvalidShape,
}

// Error is the typed failure returned by Engine.Generate. It encodes as
// {"errorKind": ..., "message": ...}.
type Error struct {
	Kind    ErrorKind `json:"errorKind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("goontology: %s", e.Kind)
	}
	return fmt.Sprintf("goontology: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind, so errors.Is(err, ErrTimeout) works.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf classifies err. It returns "" for nil and KindProcessFailure for
// errors it does not recognise.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return classify(err).Kind
}

// classify converts lower-level errors into *Error.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var te *llm.TransportError
	if errors.As(err, &te) {
		kind := KindProcessFailure
		if te.Kind == llm.KindTimeout {
			kind = KindTimeout
		}
		return &Error{Kind: kind, Message: te.Error(), Err: err}
	}

	var xe *extract.Error
	if errors.As(err, &xe) {
		kind := KindInvalidShape
		switch xe.Kind {
		case extract.KindNoJSONFound:
			kind = KindNoJSONFound
		case extract.KindGeneratorReportedError:
			kind = KindGeneratorReportedError
		}
		return &Error{Kind: kind, Message: xe.Message, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindProcessFailure, Message: err.Error(), Err: err}
}
