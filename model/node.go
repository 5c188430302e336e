package model

// Node is a mobile compute element (satellite) that can transcode and relay
// video for the region it currently sits over.
type Node struct {
	ID     int
	Region int // region the node currently occupies

	// Busy is set once the node is assigned work in the current slot.
	Busy bool

	// Processing maps each bitrate the node transcodes this slot to the
	// region that requested it.
	Processing map[Bitrate]int

	Battery        float64 // joules
	BandwidthInUse float64 // Mbps

	// Depleted marks a node whose battery fell below the minimum threshold.
	// Depleted nodes stay busy across slot resets until the battery is
	// restored externally.
	Depleted bool
}

// NewNode returns a fresh idle node at region with a full battery.
func NewNode(id, region int, battery float64) *Node {
	return &Node{
		ID:         id,
		Region:     region,
		Processing: make(map[Bitrate]int),
		Battery:    battery,
	}
}

// IsProcessing reports whether the node already handles bitrate b this slot.
func (n *Node) IsProcessing(b Bitrate) bool {
	_, ok := n.Processing[b]
	return ok
}

// Idle reports whether the node can take new work.
func (n *Node) Idle() bool { return !n.Busy }

// ResetSlot clears per-slot state. Battery is left untouched.
func (n *Node) ResetSlot() {
	n.Busy = n.Depleted
	for b := range n.Processing {
		delete(n.Processing, b)
	}
	if n.Processing == nil {
		n.Processing = make(map[Bitrate]int)
	}
	n.BandwidthInUse = 0
}

// Clone returns a deep copy suitable for snapshots.
func (n *Node) Clone() Node {
	cp := *n
	cp.Processing = make(map[Bitrate]int, len(n.Processing))
	for b, r := range n.Processing {
		cp.Processing[b] = r
	}
	return cp
}
