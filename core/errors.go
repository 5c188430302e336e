package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/leo-transcode-sim/kb"
)

var (
	// ErrOutOfRange indicates a region or grid coordinate outside the grid.
	ErrOutOfRange = errors.New("out of range")
	// ErrUnknownNode indicates a node ID that is not part of the network.
	ErrUnknownNode = kb.ErrNodeNotFound
	// ErrDuplicateOccupancy indicates two nodes resolved to the same region.
	ErrDuplicateOccupancy = kb.ErrRegionOccupied
	// ErrSeamCrossing indicates a horizontal walk left [0, cols-1].
	ErrSeamCrossing = errors.New("route crosses the seam")
	// ErrNoFeasibleNode indicates no node on the routed path can take a region.
	ErrNoFeasibleNode = errors.New("no feasible activation node")
	// ErrNoIdleCapacity indicates the activated cluster ran out of idle nodes.
	ErrNoIdleCapacity = errors.New("no idle capacity in cluster")
	// ErrMissingAssignment indicates a demanded bitrate has no processing node.
	ErrMissingAssignment = errors.New("missing assignment")
)

// RegionError wraps a failure of one region's pipeline in one slot.
type RegionError struct {
	Slot   int
	Region int
	Stage  string // routing, activation, scheduling, delay, energy, log
	Err    error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("slot %d region %d: %s: %v", e.Slot, e.Region, e.Stage, e.Err)
}

func (e *RegionError) Unwrap() error { return e.Err }

// IsCapacityError reports whether err is a region-level capacity shortfall
// (no feasible node or no idle capacity). The driver may skip such regions;
// every other error points at a configuration or consistency bug.
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrNoFeasibleNode) || errors.Is(err, ErrNoIdleCapacity)
}
