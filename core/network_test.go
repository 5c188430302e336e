package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/leo-transcode-sim/kb"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

func assertBijection(t *testing.T, net *NodeNetwork) {
	t.Helper()
	seen := make(map[int]int)
	for _, n := range net.Nodes() {
		if other, dup := seen[n.Region]; dup {
			t.Fatalf("region %d held by nodes %d and %d", n.Region, other, n.ID)
		}
		seen[n.Region] = n.ID
	}
	for region := 1; region <= net.Grid().Regions(); region++ {
		n, ok := net.NodeAt(region)
		if !ok {
			t.Fatalf("region %d has no node", region)
		}
		if n.Region != region {
			t.Fatalf("NodeAt(%d) returned node %d at region %d", region, n.ID, n.Region)
		}
	}
}

func TestNewNodeNetworkSeedsIdentityLayout(t *testing.T) {
	net := newTestNetwork(t)
	nodes := net.Nodes()
	if len(nodes) != 30 {
		t.Fatalf("expected 30 nodes, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.Region != n.ID {
			t.Fatalf("node %d starts at region %d", n.ID, n.Region)
		}
		if n.Battery != 5000 || n.Busy || len(n.Processing) != 0 {
			t.Fatalf("node %d not fresh: %+v", n.ID, n)
		}
	}
	assertBijection(t, net)
}

func TestNewNodeNetworkRejectsSeededStore(t *testing.T) {
	store := kb.NewKnowledgeBase()
	if err := store.AddNode(model.NewNode(1, 1, 10)); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := NewNodeNetwork(Grid{Rows: 2, Cols: 2}, WithKnowledgeBase(store)); err == nil {
		t.Fatalf("expected error for non-empty knowledge base")
	}
}

func TestAdvanceSlotShiftsRowsUp(t *testing.T) {
	net := newTestNetwork(t)
	if err := net.AdvanceSlot(); err != nil {
		t.Fatalf("AdvanceSlot: %v", err)
	}
	assertBijection(t, net)

	// Row 0 wraps to the last row of the same column.
	if n := mustNode(t, net, 1); n.Region != 5 {
		t.Fatalf("node 1 at region %d, want 5", n.Region)
	}
	if n := mustNode(t, net, 2); n.Region != 1 {
		t.Fatalf("node 2 at region %d, want 1", n.Region)
	}
	if n := mustNode(t, net, 10); n.Region != 9 {
		t.Fatalf("node 10 at region %d, want 9", n.Region)
	}

	pos := net.Positions()
	if len(pos) != 30 || pos[1] != 5 || pos[2] != 1 {
		t.Fatalf("Positions = %v", pos)
	}
}

func TestAdvanceSlotIsCyclic(t *testing.T) {
	net := newTestNetwork(t)
	for i := 0; i < net.Grid().Rows; i++ {
		if err := net.AdvanceSlot(); err != nil {
			t.Fatalf("AdvanceSlot %d: %v", i, err)
		}
		assertBijection(t, net)
	}
	for _, n := range net.Nodes() {
		if n.Region != n.ID {
			t.Fatalf("after a full cycle node %d sits at %d", n.ID, n.Region)
		}
	}
}

func TestAdvanceSlotPublishesMoves(t *testing.T) {
	store := kb.NewKnowledgeBase()
	net := newTestNetwork(t, WithKnowledgeBase(store))

	moved := 0
	unsub := store.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventNodeMoved {
			moved++
		}
	})
	defer unsub()

	if err := net.AdvanceSlot(); err != nil {
		t.Fatalf("AdvanceSlot: %v", err)
	}
	if moved != 30 {
		t.Fatalf("expected 30 move events, got %d", moved)
	}
}

func TestAdvanceSlotDuplicateOccupancy(t *testing.T) {
	collapse := MotionFunc(func(_ Grid, c Coord) Coord { return Coord{Row: 0, Col: c.Col} })
	net := newTestNetwork(t, WithMotionRule(collapse))

	err := net.AdvanceSlot()
	if !errors.Is(err, ErrDuplicateOccupancy) {
		t.Fatalf("AdvanceSlot error = %v, want ErrDuplicateOccupancy", err)
	}
	// The failed rebind must leave the layout untouched.
	assertBijection(t, net)
	if n := mustNode(t, net, 2); n.Region != 2 {
		t.Fatalf("node 2 moved to %d despite failure", n.Region)
	}
}

func TestStaticMotionKeepsLayout(t *testing.T) {
	net := newTestNetwork(t, WithMotionRule(StaticMotion{}))
	if err := net.AdvanceSlot(); err != nil {
		t.Fatalf("AdvanceSlot: %v", err)
	}
	for _, n := range net.Nodes() {
		if n.Region != n.ID {
			t.Fatalf("node %d moved to %d under static motion", n.ID, n.Region)
		}
	}
}

func TestClusterOf(t *testing.T) {
	net := newTestNetwork(t)

	cluster, err := net.ClusterOf(10)
	if err != nil {
		t.Fatalf("ClusterOf(10): %v", err)
	}
	if want := []int{10, 9, 5, 15}; !equalInts(cluster, want) {
		t.Fatalf("ClusterOf(10) = %v, want %v", cluster, want)
	}

	for _, n := range net.Nodes() {
		cluster, err := net.ClusterOf(n.ID)
		if err != nil {
			t.Fatalf("ClusterOf(%d): %v", n.ID, err)
		}
		if len(cluster) < 1 || len(cluster) > 5 || cluster[0] != n.ID {
			t.Fatalf("ClusterOf(%d) = %v", n.ID, cluster)
		}
		for _, m := range cluster[1:] {
			d, _ := net.Grid().Distance(n.Region, mustNode(t, net, m).Region)
			if d != 1 {
				t.Fatalf("cluster member %d of %d is %d away", m, n.ID, d)
			}
		}
	}

	if _, err := net.ClusterOf(99); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("ClusterOf(99) error = %v, want ErrUnknownNode", err)
	}
}

func TestClusterFollowsMotion(t *testing.T) {
	net := newTestNetwork(t)
	if err := net.AdvanceSlot(); err != nil {
		t.Fatalf("AdvanceSlot: %v", err)
	}
	// Node 10 now sits at region 9 (row 3, col 1).
	cluster, err := net.ClusterOf(10)
	if err != nil {
		t.Fatalf("ClusterOf: %v", err)
	}
	want := []int{10, 9, 6, 5, 15}
	if !equalInts(cluster, want) {
		t.Fatalf("ClusterOf(10) after advance = %v, want %v", cluster, want)
	}
}

func TestResetSlotIsIdempotent(t *testing.T) {
	net := newTestNetwork(t)
	n := mustNode(t, net, 7)
	n.Busy = true
	n.Processing[0.75] = 7
	n.BandwidthInUse = 0.75
	n.Battery = 4000

	net.ResetSlot()
	net.ResetSlot()

	if n.Busy || len(n.Processing) != 0 || n.BandwidthInUse != 0 {
		t.Fatalf("node not reset: %+v", n)
	}
	if n.Battery != 4000 {
		t.Fatalf("battery changed on reset: %v", n.Battery)
	}
}

func TestDepletedNodeStaysBusyUntilRestored(t *testing.T) {
	net := newTestNetwork(t)
	if err := net.MarkDepleted(3); err != nil {
		t.Fatalf("MarkDepleted: %v", err)
	}
	net.ResetSlot()
	n := mustNode(t, net, 3)
	if !n.Busy || !n.Depleted {
		t.Fatalf("depleted node idle after reset: %+v", n)
	}

	n.Battery = 12
	if err := net.RestoreBattery(3); err != nil {
		t.Fatalf("RestoreBattery: %v", err)
	}
	net.ResetSlot()
	if n.Busy || n.Depleted || n.Battery != net.BatteryMax() {
		t.Fatalf("node not restored: %+v", n)
	}

	idle, err := net.IdleMembers([]int{2, 3, 4})
	if err != nil {
		t.Fatalf("IdleMembers: %v", err)
	}
	if !equalInts(idle, []int{2, 3, 4}) {
		t.Fatalf("IdleMembers = %v", idle)
	}
}
