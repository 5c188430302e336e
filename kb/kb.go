package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/leo-transcode-sim/model"
)

var (
	// ErrNodeExists indicates a node with the same ID is already registered.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeNotFound indicates a requested node is not registered.
	ErrNodeNotFound = errors.New("node not found")
	// ErrRegionOccupied indicates two nodes resolved to the same region.
	ErrRegionOccupied = errors.New("region occupied by more than one node")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	// EventNodeMoved fires when a node changes region during a rebind.
	EventNodeMoved EventType = iota
	// EventNodeDepleted fires when a node's battery drops below the minimum.
	EventNodeDepleted
	// EventNodeRestored fires when a depleted node is recharged.
	EventNodeRestored
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type       EventType
	Node       model.Node // snapshot after the change
	FromRegion int        // only set for EventNodeMoved
}

// KnowledgeBase is an in-memory, thread-safe store for nodes and the
// region -> node lookup.
type KnowledgeBase struct {
	mu sync.RWMutex

	nodes    map[int]*model.Node
	byRegion map[int]int

	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		nodes:    make(map[int]*model.Node),
		byRegion: make(map[int]int),
	}
}

// AddNode registers a node at its current region. It fails if the ID is
// taken or another node already sits in that region.
func (kb *KnowledgeBase) AddNode(n *model.Node) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %d", ErrNodeExists, n.ID)
	}
	if other, taken := kb.byRegion[n.Region]; taken {
		return fmt.Errorf("%w: region %d holds nodes %d and %d", ErrRegionOccupied, n.Region, other, n.ID)
	}
	// store pointer so that pipeline stages can mutate node state in place
	kb.nodes[n.ID] = n
	kb.byRegion[n.Region] = n.ID
	return nil
}

// GetNode returns the node with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetNode(id int) *model.Node {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.nodes[id]
}

// NodeAt returns the node occupying region, or nil.
func (kb *KnowledgeBase) NodeAt(region int) *model.Node {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	id, ok := kb.byRegion[region]
	if !ok {
		return nil
	}
	return kb.nodes[id]
}

// ListNodes returns all nodes ordered by ID.
func (kb *KnowledgeBase) ListNodes() []*model.Node {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Node, 0, len(kb.nodes))
	for _, n := range kb.nodes {
		res = append(res, n)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Len returns the number of registered nodes.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.nodes)
}

// Rebind moves every node listed in positions (node ID -> region) and rebuilds
// the region lookup. Nothing is mutated unless the new layout is a valid
// one-node-per-region mapping.
func (kb *KnowledgeBase) Rebind(positions map[int]int) error {
	kb.mu.Lock()

	ids := make([]int, 0, len(kb.nodes))
	for id := range kb.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	next := make(map[int]int, len(kb.nodes))
	for _, id := range ids {
		region, ok := positions[id]
		if !ok {
			region = kb.nodes[id].Region
		}
		if other, taken := next[region]; taken {
			kb.mu.Unlock()
			return fmt.Errorf("%w: region %d holds nodes %d and %d", ErrRegionOccupied, region, other, id)
		}
		next[region] = id
	}
	for id := range positions {
		if _, ok := kb.nodes[id]; !ok {
			kb.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
		}
	}

	var events []Event
	for _, id := range ids {
		n := kb.nodes[id]
		region, ok := positions[id]
		if !ok || region == n.Region {
			continue
		}
		from := n.Region
		n.Region = region
		events = append(events, Event{Type: EventNodeMoved, Node: n.Clone(), FromRegion: from})
	}
	kb.byRegion = next
	subs := kb.subscribers()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
	return nil
}

// SetDepleted flips a node's depletion flag and notifies subscribers when
// the flag actually changes.
func (kb *KnowledgeBase) SetDepleted(id int, depleted bool) error {
	kb.mu.Lock()
	n, ok := kb.nodes[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if n.Depleted == depleted {
		kb.mu.Unlock()
		return nil
	}
	n.Depleted = depleted
	typ := EventNodeRestored
	if depleted {
		n.Busy = true
		typ = EventNodeDepleted
	}
	event := Event{Type: typ, Node: n.Clone()}
	subs := kb.subscribers()
	kb.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
// Callbacks run in subscription order.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.nextSub++
	id := kb.nextSub
	kb.subs = append(kb.subs, subscriber{id: id, fn: fn})

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		for i, s := range kb.subs {
			if s.id == id {
				kb.subs = append(kb.subs[:i:i], kb.subs[i+1:]...)
				return
			}
		}
	}
}

// subscribers snapshots the callbacks; the caller holds the lock.
func (kb *KnowledgeBase) subscribers() []func(Event) {
	out := make([]func(Event), len(kb.subs))
	for i, s := range kb.subs {
		out[i] = s.fn
	}
	return out
}
