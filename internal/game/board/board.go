package board

// Board is a hexagon of the given radius stored as a square row-major grid.
// Row index is r+radius, column index is q+radius; grid positions outside
// the hexagon hold StoneVoid.
type Board struct {
	radius int
	cells  [][]Stone
}

// NewBoard creates an empty board.
//
// Precondition: radius >= 1.
func NewBoard(radius int) *Board {
	size := 2*radius + 1
	cells := make([][]Stone, size)
	b := &Board{radius: radius, cells: cells}
	for row := range cells {
		cells[row] = make([]Stone, size)
		for col := range cells[row] {
			if b.Contains(AxialCoord{Q: col - radius, R: row - radius}) {
				cells[row][col] = StoneEmpty
			}
		}
	}
	return b
}

// Radius returns the board radius.
func (b *Board) Radius() int { return b.radius }

// Contains reports whether c lies on the board.
func (b *Board) Contains(c AxialCoord) bool {
	s := -c.Q - c.R
	return abs(c.Q) <= b.radius && abs(c.R) <= b.radius && abs(s) <= b.radius
}

// At returns the stone at c, or StoneVoid when c is off the board.
func (b *Board) At(c AxialCoord) Stone {
	if !b.Contains(c) {
		return StoneVoid
	}
	return b.cells[c.R+b.radius][c.Q+b.radius]
}

func (b *Board) set(c AxialCoord, s Stone) {
	b.cells[c.R+b.radius][c.Q+b.radius] = s
}

// Count returns the number of stones of the given color.
func (b *Board) Count(c Color) int {
	want := c.Stone()
	n := 0
	for _, row := range b.cells {
		for _, s := range row {
			if s == want {
				n++
			}
		}
	}
	return n
}

// Raw returns a copy of the row-major grid.
func (b *Board) Raw() [][]Stone {
	out := make([][]Stone, len(b.cells))
	for i, row := range b.cells {
		out[i] = append([]Stone(nil), row...)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
