package discovery

import (
	"errors"
	"fmt"
	"net/netip"
)

// Sentinel errors returned by Endpoint operations
var (
	// ErrNotInitialized means a socket failed to open during New. The endpoint
	// stays unusable for its whole lifetime.
	ErrNotInitialized = errors.New("discovery: endpoint sockets not initialized")

	// ErrNotBound means the listener never obtained its port.
	ErrNotBound = errors.New("discovery: listener not bound")

	// ErrReceiveBusy is returned when ReceiveReply is entered while another
	// call on the same endpoint is still running.
	ErrReceiveBusy = errors.New("discovery: receive already in progress")

	// ErrAttemptsExhausted is wrapped in a FatalError when every wait timed out.
	ErrAttemptsExhausted = errors.New("discovery: no reply within the attempt ceiling")
)

// FatalError reports a failure the process is not expected to survive: a
// socket that could not be opened, a sender that cannot broadcast, or a reply
// that never came.
type FatalError struct {
	Op  string // "open", "setbroadcast" or "receive"
	Err error
}

// Error implements the error interface
func (e *FatalError) Error() string {
	return fmt.Sprintf("discovery: fatal %s failure: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *FatalError) Unwrap() error {
	return e.Err
}

// BindError reports that the listener could not claim its port within the
// retry window. The endpoint is returned unbound and broadcast was never
// enabled on its sender, so a later Broadcast fails with a *SendError.
type BindError struct {
	Port     uint16
	Attempts int
	Err      error // error from the last attempt
}

// Error implements the error interface
func (e *BindError) Error() string {
	return fmt.Sprintf("discovery: bind port %d failed after %d attempts: %v", e.Port, e.Attempts, e.Err)
}

// Unwrap returns the error from the last bind attempt
func (e *BindError) Unwrap() error {
	return e.Err
}

// SendError reports a failed broadcast send. Nothing is retried.
type SendError struct {
	Dest netip.AddrPort
	Err  error
}

// Error implements the error interface
func (e *SendError) Error() string {
	return fmt.Sprintf("discovery: broadcast to %s failed: %v", e.Dest, e.Err)
}

// Unwrap returns the underlying socket error
func (e *SendError) Unwrap() error {
	return e.Err
}

// ReceiveError reports a hard failure of the wait primitive.
type ReceiveError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *ReceiveError) Error() string {
	return fmt.Sprintf("discovery: receive %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying socket error
func (e *ReceiveError) Unwrap() error {
	return e.Err
}

// DecodeError reports a datagram that arrived but did not decode into the
// caller's message. The datagram has been consumed.
type DecodeError struct {
	From netip.AddrPort
	Len  int
	Err  error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("discovery: decode %d-byte datagram from %s: %v", e.Len, e.From, e.Err)
}

// Unwrap returns the protocol error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err should stop the process.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsRetryable reports whether repeating the failed operation may succeed:
// a dropped send, a port still held by a previous process, or a stray
// datagram that was not ours.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	var (
		se *SendError
		be *BindError
		de *DecodeError
	)
	return errors.As(err, &se) || errors.As(err, &be) || errors.As(err, &de) ||
		errors.Is(err, ErrReceiveBusy)
}
