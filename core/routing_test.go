package core

import (
	"errors"
	"testing"
)

func TestPathToSelf(t *testing.T) {
	r := NewRouter(newTestNetwork(t))
	path, err := r.Path(12, 12)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if !equalInts(path, []int{12}) {
		t.Fatalf("Path(12, 12) = %v", path)
	}
}

func TestPathVerticalThenHorizontal(t *testing.T) {
	r := NewRouter(newTestNetwork(t))

	cases := []struct {
		from, to int
		want     []int
	}{
		{10, 1, []int{10, 9, 8, 7, 6, 1}},
		{1, 30, []int{1, 2, 3, 4, 5, 10, 15, 20, 25, 30}},
		{26, 21, []int{26, 21}},
		{3, 5, []int{3, 4, 5}},
	}
	for _, tc := range cases {
		got, err := r.Path(tc.from, tc.to)
		if err != nil {
			t.Fatalf("Path(%d, %d): %v", tc.from, tc.to, err)
		}
		if !equalInts(got, tc.want) {
			t.Fatalf("Path(%d, %d) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestHopCountMatchesManhattanDistance(t *testing.T) {
	net := newTestNetwork(t)
	if err := net.AdvanceSlot(); err != nil {
		t.Fatalf("AdvanceSlot: %v", err)
	}
	r := NewRouter(net)
	for _, a := range net.Nodes() {
		for _, b := range net.Nodes() {
			hops, err := r.HopCount(a.ID, b.ID)
			if err != nil {
				t.Fatalf("HopCount(%d, %d): %v", a.ID, b.ID, err)
			}
			d, _ := net.Grid().Distance(a.Region, b.Region)
			if hops != d {
				t.Fatalf("HopCount(%d, %d) = %d, want %d", a.ID, b.ID, hops, d)
			}
		}
	}
}

func TestPathUsesCurrentPositions(t *testing.T) {
	net := newTestNetwork(t)
	if err := net.AdvanceSlot(); err != nil {
		t.Fatalf("AdvanceSlot: %v", err)
	}
	// Node 2 is over region 1, node 3 over region 2.
	path, err := NewRouter(net).Path(3, 2)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if !equalInts(path, []int{3, 2}) {
		t.Fatalf("Path(3, 2) = %v", path)
	}
}

func TestPathUnknownNode(t *testing.T) {
	r := NewRouter(newTestNetwork(t))
	if _, err := r.Path(99, 1); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("Path(99, 1) error = %v, want ErrUnknownNode", err)
	}
}

func TestWalkRefusesSeamCrossing(t *testing.T) {
	r := NewRouter(newTestNetwork(t))

	if _, err := r.walk(Coord{Row: 0, Col: 4}, Coord{Row: 0, Col: 6}); !errors.Is(err, ErrSeamCrossing) {
		t.Fatalf("walk past last column error = %v, want ErrSeamCrossing", err)
	}
	if _, err := r.walk(Coord{Row: 2, Col: 0}, Coord{Row: 2, Col: -1}); !errors.Is(err, ErrSeamCrossing) {
		t.Fatalf("walk before first column error = %v, want ErrSeamCrossing", err)
	}
}
