package codec

import "fmt"

// Status is the codec-control-plane result code. Session operations
// return a Status rather than an error so callers can compare against
// StatusOK the way they would against a hardware codec's return code.
type Status int

const (
	// StatusOK means the operation was accepted.
	StatusOK Status = iota
	// StatusNoOutput means the frame was accepted but produced no
	// output (for example, it was dropped under backpressure).
	StatusNoOutput
	// StatusErrParameter means the supplied configuration or frame is
	// incompatible with the session.
	StatusErrParameter
	// StatusUninitialized means the session is not in a state that can
	// accept the call (before InitEncode or after Release).
	StatusUninitialized
	// StatusErrEncode means the underlying codec rejected the frame.
	StatusErrEncode
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoOutput:
		return "NO_OUTPUT"
	case StatusErrParameter:
		return "ERR_PARAMETER"
	case StatusUninitialized:
		return "UNINITIALIZED"
	case StatusErrEncode:
		return "ERR_ENCODE"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Err returns nil for StatusOK and StatusNoOutput, and a descriptive
// error otherwise, for callers that prefer Go error plumbing.
func (s Status) Err() error {
	switch s {
	case StatusOK, StatusNoOutput:
		return nil
	default:
		return fmt.Errorf("codec: %s", s)
	}
}
