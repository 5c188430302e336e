package model

// RegionKey identifies a region within a slot.
type RegionKey struct {
	Slot   int
	Region int
}

// RecordKey identifies a single bitrate stream of a region within a slot.
type RecordKey struct {
	Slot    int
	Region  int
	Bitrate Bitrate
}

// Assignment maps each required bitrate of a region to the node that
// transcodes it.
type Assignment map[Bitrate]int

// Bitrates returns the assigned bitrates in ascending order.
func (a Assignment) Bitrates() []Bitrate {
	out := make([]Bitrate, 0, len(a))
	for b := range a {
		out = append(out, b)
	}
	return SortBitrates(out)
}

// ActivationRecord notes which node took responsibility for a region.
type ActivationRecord struct {
	Slot   int `json:"slot"`
	Region int `json:"region"`
	Node   int `json:"node"`
}

// SchedulingRecord captures the bitrate to node assignment of a region.
type SchedulingRecord struct {
	Slot        int        `json:"slot"`
	Region      int        `json:"region"`
	Assignments Assignment `json:"assignments"`
}

// DelayRecord is the viewer-weighted mean delay of a region in seconds.
type DelayRecord struct {
	Slot   int     `json:"slot"`
	Region int     `json:"region"`
	Delay  float64 `json:"delay"`
}

// EnergyRecord is written once per (slot, region, bitrate).
type EnergyRecord struct {
	Key             RecordKey `json:"-"`
	Node            int       `json:"node"`
	Hops            int       `json:"hop_count"`
	TranscodeEnergy float64   `json:"energy_transcoding"`
	RelayEnergy     float64   `json:"energy_isl"`
	BatteryAfter    float64   `json:"battery_after"`
}
