package games

import (
	"errors"
	"fmt"
)

// ID identifies one of the supported casino games.
type ID string

const (
	Mines    ID = "mines"
	Wheel    ID = "wheel"
	Penalty  ID = "penalty"
	Speedrun ID = "speedrun"
)

var ErrInvalidParameter = errors.New("invalid game parameter")

// ParseID validates a wire-level game name.
func ParseID(s string) (ID, error) {
	switch ID(s) {
	case Mines, Wheel, Penalty, Speedrun:
		return ID(s), nil
	default:
		return "", fmt.Errorf("%w: unknown game %q", ErrInvalidParameter, s)
	}
}
