package room

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// Bounds on RoomConf.MaxUsers.
const (
	MinUsers = 2
	MaxUsers = 16
)

// MaxTurnTimeout caps RoomConf.TurnTimeout, in seconds. Larger values would
// overflow time.Duration.
const MaxTurnTimeout = 24 * 60 * 60

// ValidateConf checks conf against the known layouts.
//
// Postcondition: Returns nil, or an error wrapping ErrInvalidConf that lists
// every violation.
func ValidateConf(conf protocol.RoomConf, games Games) error {
	var errs []error
	if conf.Layout == "" {
		errs = append(errs, errors.New("layout must not be empty"))
	} else if !games.HasLayout(conf.Layout) {
		errs = append(errs, fmt.Errorf("unknown layout %q", conf.Layout))
	}
	if conf.TurnTimeout < 0 || conf.TurnTimeout > MaxTurnTimeout {
		errs = append(errs, fmt.Errorf("turn_timeout must be in [0, %d], got %d", MaxTurnTimeout, conf.TurnTimeout))
	}
	if conf.MaxUsers < MinUsers || conf.MaxUsers > MaxUsers {
		errs = append(errs, fmt.Errorf("max_users must be in [%d, %d], got %d", MinUsers, MaxUsers, conf.MaxUsers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConf, errors.Join(errs...))
	}
	return nil
}
