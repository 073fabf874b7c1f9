package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a transport failure.
type Kind string

const (
	// KindTimeout means the call exceeded its time bound.
	KindTimeout Kind = "Timeout"
	// KindProcessFailure covers non-zero exits, error statuses, unreachable
	// endpoints, undecodable envelopes and empty output.
	KindProcessFailure Kind = "ProcessFailure"
)

// maxOutputInError caps how much captured output an error message carries.
// The full capture stays in Output.
const maxOutputInError = 512

// TransportError is returned by every provider on failure.
type TransportError struct {
	Kind     Kind
	Provider string
	// Output is the captured stdout/stderr or response body, if any.
	Output string
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("llm: %s %s", e.Provider, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		out := e.Output
		if len(out) > maxOutputInError {
			out = out[:maxOutputInError] + "..."
		}
		msg += ": " + out
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == KindTimeout
}

// IsProcessFailure reports whether err is a transport process failure.
func IsProcessFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == KindProcessFailure
}

// transportError classifies err raised while ctx was in effect.
func transportError(ctx context.Context, provider string, err error, output string) *TransportError {
	kind := KindProcessFailure
	if isTimeout(ctx, err) {
		kind = KindTimeout
	}
	return &TransportError{Kind: kind, Provider: provider, Output: output, Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var errEmptyOutput = errors.New("empty output")
