package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies a client error. Every operation on Client fails with
// exactly one of these kinds, regardless of which collaborator failed.
type Kind string

const (
	// KindConfiguration means the server address or credentials supplied
	// at construction are malformed. Raised before any network use.
	KindConfiguration Kind = "configuration"

	// KindConnection means an I/O failure while talking to the server.
	// The client never retries these itself.
	KindConnection Kind = "connection"

	// KindInterrupted means the blocking wait was cut short by context
	// cancellation or deadline.
	KindInterrupted Kind = "interrupted"

	// KindRemote means the server answered, but with something the client
	// could not accept (auth rejection, missing resource, malformed
	// response).
	KindRemote Kind = "remote"
)

// Error is the single error type surfaced by Client. Op names the operation
// in progress; the original cause is preserved and reachable with
// errors.Unwrap / errors.Is / errors.As.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap translates a collaborator failure into the uniform client error,
// classifying its kind from the cause. A nil cause passes through.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		// Already classified by a nested call; keep the inner kind.
		return &Error{Op: op, Kind: ce.Kind, Err: err}
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindInterrupted
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindConnection
	}

	return KindRemote
}

// configError builds a configuration-kind error for construction failures.
func configError(msg string) error {
	return &Error{Op: "configuring client", Kind: KindConfiguration, Err: errors.New(msg)}
}
