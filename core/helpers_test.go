package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/leo-transcode-sim/model"
)

const eps = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < eps }

// newTestNetwork returns the reference 5x6 network at its slot-1 layout.
func newTestNetwork(t *testing.T, opts ...NetworkOption) *NodeNetwork {
	t.Helper()
	grid, err := NewGrid(5, 6)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	net, err := NewNodeNetwork(grid, opts...)
	if err != nil {
		t.Fatalf("NewNodeNetwork: %v", err)
	}
	return net
}

func mustNode(t *testing.T, net *NodeNetwork, id int) *model.Node {
	t.Helper()
	n, err := net.Node(id)
	if err != nil {
		t.Fatalf("Node(%d): %v", id, err)
	}
	return n
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
