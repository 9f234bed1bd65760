package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for frame decoding. FrameError wraps one of these so callers
// can match with errors.Is.
var (
	ErrShortPacket  = errors.New("short packet")
	ErrBadSync      = errors.New("bad sync byte")
	ErrBadVersion   = errors.New("unsupported protocol version")
	ErrBadChecksum  = errors.New("checksum mismatch")
	ErrTypeMismatch = errors.New("unexpected message type")
	ErrTooLarge     = errors.New("payload too large")
)

// FrameError describes why a datagram could not be framed or unframed.
type FrameError struct {
	Kind error  // One of the sentinel errors above
	Type byte   // Message type from the header, when it was read
	Msg  string // Human-readable detail
}

// Error implements the error interface
func (e *FrameError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("frame: %v", e.Kind)
	}
	return fmt.Sprintf("frame: %v: %s", e.Kind, e.Msg)
}

// Unwrap returns the sentinel kind for errors.Is matching
func (e *FrameError) Unwrap() error {
	return e.Kind
}

func frameErr(kind error, typ byte, format string, args ...any) *FrameError {
	return &FrameError{Kind: kind, Type: typ, Msg: fmt.Sprintf(format, args...)}
}
