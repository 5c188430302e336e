package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/kb"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// NodeNetwork owns the nodes of the constellation, their grid positions and
// the region -> node bijection.
type NodeNetwork struct {
	grid   Grid
	store  *kb.KnowledgeBase
	motion MotionRule

	batteryMax float64
	batteryMin float64

	log logging.Logger
}

// NetworkOption customises NodeNetwork construction.
type NetworkOption func(*NodeNetwork)

// WithMotionRule replaces the default row-cycling movement.
func WithMotionRule(m MotionRule) NetworkOption {
	return func(n *NodeNetwork) {
		if m != nil {
			n.motion = m
		}
	}
}

// WithBattery sets the battery ceiling every node starts with and the
// threshold below which a node is depleted.
func WithBattery(max, min float64) NetworkOption {
	return func(n *NodeNetwork) {
		n.batteryMax = max
		n.batteryMin = min
	}
}

// WithNetworkLogger attaches a structured logger.
func WithNetworkLogger(l logging.Logger) NetworkOption {
	return func(n *NodeNetwork) {
		if l != nil {
			n.log = l
		}
	}
}

// WithKnowledgeBase backs the network with an existing, empty store so
// callers can subscribe to node events before the network is seeded.
func WithKnowledgeBase(store *kb.KnowledgeBase) NetworkOption {
	return func(n *NodeNetwork) {
		if store != nil {
			n.store = store
		}
	}
}

// NewNodeNetwork seeds one node per region with node ID == region ID, which
// is the layout at slot 1.
func NewNodeNetwork(grid Grid, opts ...NetworkOption) (*NodeNetwork, error) {
	if _, err := NewGrid(grid.Rows, grid.Cols); err != nil {
		return nil, err
	}
	n := &NodeNetwork{
		grid:       grid,
		store:      kb.NewKnowledgeBase(),
		motion:     RowCycleMotion{},
		batteryMax: 5000,
		batteryMin: 100,
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.store.Len() != 0 {
		return nil, fmt.Errorf("node network needs an empty knowledge base, got %d nodes", n.store.Len())
	}
	for region := 1; region <= grid.Regions(); region++ {
		if err := n.store.AddNode(model.NewNode(region, region, n.batteryMax)); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Grid returns the grid the network lives on.
func (n *NodeNetwork) Grid() Grid { return n.grid }

// Store exposes the backing knowledge base.
func (n *NodeNetwork) Store() *kb.KnowledgeBase { return n.store }

// BatteryMin returns the depletion threshold.
func (n *NodeNetwork) BatteryMin() float64 { return n.batteryMin }

// BatteryMax returns the battery ceiling.
func (n *NodeNetwork) BatteryMax() float64 { return n.batteryMax }

// AdvanceSlot applies the motion rule to every node and rebuilds the region
// lookup. A collision or an uncovered region is fatal: it means the motion
// rule or the grid configuration is broken.
func (n *NodeNetwork) AdvanceSlot() error {
	nodes := n.store.ListNodes()
	positions := make(map[int]int, len(nodes))
	for _, node := range nodes {
		c, err := n.grid.RegionToCoord(node.Region)
		if err != nil {
			return fmt.Errorf("advance node %d: %w", node.ID, err)
		}
		next := n.motion.Next(n.grid, c)
		region, err := n.grid.CoordToRegion(next)
		if err != nil {
			return fmt.Errorf("advance node %d: %w", node.ID, err)
		}
		positions[node.ID] = region
	}
	if err := n.store.Rebind(positions); err != nil {
		return fmt.Errorf("advance slot: %w", err)
	}
	for region := 1; region <= n.grid.Regions(); region++ {
		if n.store.NodeAt(region) == nil {
			return fmt.Errorf("%w: region %d left without a node", ErrDuplicateOccupancy, region)
		}
	}
	n.log.Debug(context.Background(), "nodes advanced", logging.Int("nodes", len(nodes)))
	return nil
}

// ResetSlot clears busy flags, processing sets and bandwidth of every node.
// Battery carries over; depleted nodes stay busy.
func (n *NodeNetwork) ResetSlot() {
	for _, node := range n.store.ListNodes() {
		node.ResetSlot()
	}
}

// Node returns the node with the given ID.
func (n *NodeNetwork) Node(id int) (*model.Node, error) {
	node := n.store.GetNode(id)
	if node == nil {
		return nil, fmt.Errorf("%w: node %d", ErrUnknownNode, id)
	}
	return node, nil
}

// NodeAt returns the node over region, if any.
func (n *NodeNetwork) NodeAt(region int) (*model.Node, bool) {
	node := n.store.NodeAt(region)
	return node, node != nil
}

// Nodes lists all nodes ordered by ID.
func (n *NodeNetwork) Nodes() []*model.Node { return n.store.ListNodes() }

// Positions snapshots the node ID -> region mapping.
func (n *NodeNetwork) Positions() map[int]int {
	nodes := n.store.ListNodes()
	out := make(map[int]int, len(nodes))
	for _, node := range nodes {
		out[node.ID] = node.Region
	}
	return out
}

// Coord returns the current grid position of a node.
func (n *NodeNetwork) Coord(id int) (Coord, error) {
	node, err := n.Node(id)
	if err != nil {
		return Coord{}, err
	}
	return n.grid.RegionToCoord(node.Region)
}

// ClusterOf returns the node followed by its up, down, left and right
// neighbours at the current slot. Missing neighbours are omitted and the
// seam columns are never joined, so a cluster has at most five members.
func (n *NodeNetwork) ClusterOf(id int) ([]int, error) {
	c, err := n.Coord(id)
	if err != nil {
		return nil, err
	}
	cluster := make([]int, 0, 5)
	cluster = append(cluster, id)
	for _, adj := range n.grid.adjacent(c) {
		region, _ := n.grid.CoordToRegion(adj)
		if node, ok := n.NodeAt(region); ok {
			cluster = append(cluster, node.ID)
		}
	}
	return cluster, nil
}

// IdleMembers filters a cluster down to the nodes that are not busy,
// preserving cluster order.
func (n *NodeNetwork) IdleMembers(cluster []int) ([]int, error) {
	idle := make([]int, 0, len(cluster))
	for _, id := range cluster {
		node, err := n.Node(id)
		if err != nil {
			return nil, err
		}
		if node.Idle() {
			idle = append(idle, id)
		}
	}
	return idle, nil
}

// MarkDepleted flags a node as permanently busy until RestoreBattery.
func (n *NodeNetwork) MarkDepleted(id int) error {
	return n.store.SetDepleted(id, true)
}

// RestoreBattery recharges a node to the ceiling and clears its depletion.
// This core never calls it; recharge policy belongs to the driver.
func (n *NodeNetwork) RestoreBattery(id int) error {
	node, err := n.Node(id)
	if err != nil {
		return err
	}
	node.Battery = n.batteryMax
	return n.store.SetDepleted(id, false)
}
