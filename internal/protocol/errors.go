package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("malformed message")
	// ErrInvalidCause is returned when decoding a string outside the EndedCause table.
	ErrInvalidCause = errors.New("invalid ended cause")
)

// ParseError reports a message that is not structurally valid.
type ParseError struct {
	// Type is the discriminant, when one could be read.
	Type   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Type == "" {
		return "malformed message: " + msg
	}
	return fmt.Sprintf("malformed %q message: %s", e.Type, msg)
}

// Is makes errors.Is(err, ErrParse) hold for any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }
