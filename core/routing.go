package core

import "fmt"

// Router computes vertical-first paths between nodes. It first walks rows
// inside the starting node's column (its orbital plane) and then walks
// columns along the destination row. It never wraps across the seam.
type Router struct {
	net *NodeNetwork
}

// NewRouter returns a router over the network's current positions.
func NewRouter(net *NodeNetwork) *Router {
	return &Router{net: net}
}

// Path returns the node IDs visited from `from` to `to`, both included.
func (r *Router) Path(from, to int) ([]int, error) {
	src, err := r.net.Coord(from)
	if err != nil {
		return nil, err
	}
	dst, err := r.net.Coord(to)
	if err != nil {
		return nil, err
	}
	path, err := r.walk(src, dst)
	if err != nil {
		return nil, fmt.Errorf("path %d -> %d: %w", from, to, err)
	}
	return path, nil
}

// HopCount returns len(Path(from, to)) - 1.
func (r *Router) HopCount(from, to int) (int, error) {
	path, err := r.Path(from, to)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

func (r *Router) walk(src, dst Coord) ([]int, error) {
	g := r.net.Grid()
	path := make([]int, 0, abs(dst.Row-src.Row)+abs(dst.Col-src.Col)+1)

	step := 1
	if dst.Row < src.Row {
		step = -1
	}
	for row := src.Row; ; row += step {
		id, err := r.nodeAt(Coord{Row: row, Col: src.Col})
		if err != nil {
			return nil, err
		}
		path = append(path, id)
		if row == dst.Row {
			break
		}
	}
	if src.Col == dst.Col {
		return path, nil
	}

	step = 1
	if dst.Col < src.Col {
		step = -1
	}
	for col := src.Col + step; ; col += step {
		if col < 0 || col >= g.Cols {
			return nil, fmt.Errorf("%w: column %d outside [0, %d]", ErrSeamCrossing, col, g.Cols-1)
		}
		id, err := r.nodeAt(Coord{Row: dst.Row, Col: col})
		if err != nil {
			return nil, err
		}
		path = append(path, id)
		if col == dst.Col {
			break
		}
	}
	return path, nil
}

func (r *Router) nodeAt(c Coord) (int, error) {
	region, err := r.net.Grid().CoordToRegion(c)
	if err != nil {
		return 0, err
	}
	node, ok := r.net.NodeAt(region)
	if !ok {
		return 0, fmt.Errorf("%w: no node over region %d", ErrUnknownNode, region)
	}
	return node.ID, nil
}
