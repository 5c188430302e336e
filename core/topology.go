package core

import "fmt"

// Coord is a zero-based grid position. Rows are positions within an orbital
// plane, columns are planes.
type Coord struct {
	Row int
	Col int
}

// Grid is an R_rows x C_cols region layout numbered column-major from 1:
//
//	1  6 11 16 21 26
//	2  7 12 17 22 27
//	3  8 13 18 23 28
//	4  9 14 19 24 29
//	5 10 15 20 25 30
//
// Columns 0 and Cols-1 are not adjacent (the seam).
type Grid struct {
	Rows int
	Cols int
}

// NewGrid validates and returns a grid.
func NewGrid(rows, cols int) (Grid, error) {
	if rows <= 0 || cols <= 0 {
		return Grid{}, fmt.Errorf("%w: grid %dx%d", ErrOutOfRange, rows, cols)
	}
	return Grid{Rows: rows, Cols: cols}, nil
}

// Regions returns the number of regions R = Rows*Cols.
func (g Grid) Regions() int { return g.Rows * g.Cols }

// Contains reports whether c lies on the grid.
func (g Grid) Contains(c Coord) bool {
	return c.Row >= 0 && c.Row < g.Rows && c.Col >= 0 && c.Col < g.Cols
}

// RegionToCoord maps a region ID in [1, R] to its coordinate.
func (g Grid) RegionToCoord(region int) (Coord, error) {
	if region < 1 || region > g.Regions() {
		return Coord{}, fmt.Errorf("%w: region %d not in [1, %d]", ErrOutOfRange, region, g.Regions())
	}
	r0 := region - 1
	return Coord{Row: r0 % g.Rows, Col: r0 / g.Rows}, nil
}

// CoordToRegion maps a coordinate back to its region ID.
func (g Grid) CoordToRegion(c Coord) (int, error) {
	if !g.Contains(c) {
		return 0, fmt.Errorf("%w: (row %d, col %d) outside %dx%d grid", ErrOutOfRange, c.Row, c.Col, g.Rows, g.Cols)
	}
	return c.Row + c.Col*g.Rows + 1, nil
}

// Neighbors returns the up, down, left and right regions that exist, in that
// order. Nothing wraps at this layer.
func (g Grid) Neighbors(region int) ([]int, error) {
	c, err := g.RegionToCoord(region)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, 4)
	for _, n := range g.adjacent(c) {
		r, _ := g.CoordToRegion(n)
		out = append(out, r)
	}
	return out, nil
}

// Distance returns the Manhattan distance between two regions.
func (g Grid) Distance(a, b int) (int, error) {
	ca, err := g.RegionToCoord(a)
	if err != nil {
		return 0, err
	}
	cb, err := g.RegionToCoord(b)
	if err != nil {
		return 0, err
	}
	return abs(ca.Row-cb.Row) + abs(ca.Col-cb.Col), nil
}

// adjacent lists the in-bounds neighbours of c as up, down, left, right.
func (g Grid) adjacent(c Coord) []Coord {
	candidates := [4]Coord{
		{Row: c.Row - 1, Col: c.Col},
		{Row: c.Row + 1, Col: c.Col},
		{Row: c.Row, Col: c.Col - 1},
		{Row: c.Row, Col: c.Col + 1},
	}
	out := make([]Coord, 0, 4)
	for _, n := range candidates {
		if g.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
