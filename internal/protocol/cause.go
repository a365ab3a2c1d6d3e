package protocol

import "fmt"

// EndedCause classifies why a game ended.
type EndedCause uint8

const (
	CauseTimeout EndedCause = iota + 1
	CauseGg
	CauseLostStones
)

// endedCauseWire is the wire contract; clients match on these literals.
var endedCauseWire = []struct {
	cause EndedCause
	wire  string
}{
	{CauseTimeout, "timeout"},
	{CauseGg, "gg"},
	{CauseLostStones, "lost all stones"},
}

// EndedCauses returns every cause in table order.
func EndedCauses() []EndedCause {
	out := make([]EndedCause, len(endedCauseWire))
	for i, e := range endedCauseWire {
		out[i] = e.cause
	}
	return out
}

// ParseEndedCause maps a wire string back to its cause.
//
// Postcondition: Returns ErrInvalidCause for any string outside the table.
func ParseEndedCause(s string) (EndedCause, error) {
	for _, e := range endedCauseWire {
		if e.wire == s {
			return e.cause, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCause, s)
}

func (c EndedCause) String() string {
	for _, e := range endedCauseWire {
		if e.cause == c {
			return e.wire
		}
	}
	return fmt.Sprintf("EndedCause(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler, so JSON carries the bare string.
func (c EndedCause) MarshalText() ([]byte, error) {
	for _, e := range endedCauseWire {
		if e.cause == c {
			return []byte(e.wire), nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidCause, uint8(c))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *EndedCause) UnmarshalText(b []byte) error {
	parsed, err := ParseEndedCause(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
