// Package board implements the hex-grid stone game played inside rooms:
// axial coordinates, the board grid, layouts, and move application.
package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AxialCoord addresses a cell of a hexagonal board in axial (q, r) form.
// The implicit third cube coordinate is s = -q - r.
type AxialCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Directions lists the six unit vectors of the hex grid.
var Directions = [6]AxialCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Add returns a + b.
func (a AxialCoord) Add(b AxialCoord) AxialCoord {
	return AxialCoord{Q: a.Q + b.Q, R: a.R + b.R}
}

// Sub returns a - b.
func (a AxialCoord) Sub(b AxialCoord) AxialCoord {
	return AxialCoord{Q: a.Q - b.Q, R: a.R - b.R}
}

// Scale returns a multiplied by k.
func (a AxialCoord) Scale(k int) AxialCoord {
	return AxialCoord{Q: a.Q * k, R: a.R * k}
}

// Neg returns the opposite vector.
func (a AxialCoord) Neg() AxialCoord {
	return AxialCoord{Q: -a.Q, R: -a.R}
}

// IsDirection reports whether a is one of the six unit vectors.
func (a AxialCoord) IsDirection() bool {
	for _, d := range Directions {
		if a == d {
			return true
		}
	}
	return false
}

func (a AxialCoord) String() string {
	return fmt.Sprintf("(%d,%d)", a.Q, a.R)
}

// UnmarshalJSON requires both q and r to be present so that a missing
// coordinate is never silently read as zero.
func (a *AxialCoord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Q *int `json:"q"`
		R *int `json:"r"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Q == nil || raw.R == nil {
		return errors.New("coordinate requires both q and r")
	}
	a.Q, a.R = *raw.Q, *raw.R
	return nil
}
