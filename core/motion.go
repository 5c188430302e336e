package core

// MotionRule moves a node one slot forward on the grid.
type MotionRule interface {
	Next(g Grid, c Coord) Coord
}

// RowCycleMotion drifts every node one row up per slot, wrapping from the
// top row back to the bottom row of the same column (the same orbital plane).
type RowCycleMotion struct{}

// Next returns (row-1 mod Rows, col).
func (RowCycleMotion) Next(g Grid, c Coord) Coord {
	return Coord{Row: ((c.Row-1)%g.Rows + g.Rows) % g.Rows, Col: c.Col}
}

// StaticMotion leaves every node in place.
type StaticMotion struct{}

// Next returns c unchanged.
func (StaticMotion) Next(_ Grid, c Coord) Coord { return c }

// MotionFunc adapts a plain function to MotionRule.
type MotionFunc func(g Grid, c Coord) Coord

// Next calls f.
func (f MotionFunc) Next(g Grid, c Coord) Coord { return f(g, c) }
