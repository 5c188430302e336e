package model

// RegionDemand maps a bitrate to a viewer count for one region in one slot.
type RegionDemand map[Bitrate]float64

// Required returns the bitrates with positive demand in ascending order.
func (d RegionDemand) Required() []Bitrate {
	out := make([]Bitrate, 0, len(d))
	for b, n := range d {
		if n > 0 {
			out = append(out, b)
		}
	}
	return SortBitrates(out)
}

// Total returns the summed viewer count across all bitrates.
func (d RegionDemand) Total() float64 {
	var sum float64
	for _, n := range d {
		sum += n
	}
	return sum
}

// Clone returns a copy of the demand map.
func (d RegionDemand) Clone() RegionDemand {
	cp := make(RegionDemand, len(d))
	for b, n := range d {
		cp[b] = n
	}
	return cp
}

// DemandSeries is a demand table keyed slot -> region -> bitrate. It is used
// for both the real (read-only) and predicted (mutable) series.
type DemandSeries map[int]map[int]RegionDemand

// Get returns the viewer count for (slot, region, bitrate), or zero when absent.
func (s DemandSeries) Get(slot, region int, b Bitrate) float64 {
	return s[slot][region][b]
}

// Set writes a viewer count, creating intermediate maps as needed.
func (s DemandSeries) Set(slot, region int, b Bitrate, v float64) {
	regions, ok := s[slot]
	if !ok {
		regions = make(map[int]RegionDemand)
		s[slot] = regions
	}
	rd, ok := regions[region]
	if !ok {
		rd = make(RegionDemand)
		regions[region] = rd
	}
	rd[b] = v
}

// Region returns the demand of one region in one slot. The returned map is
// never nil; it is a copy, so callers may not use it to mutate the series.
func (s DemandSeries) Region(slot, region int) RegionDemand {
	rd, ok := s[slot][region]
	if !ok {
		return RegionDemand{}
	}
	return rd.Clone()
}

// Slots returns the number of slots present, assuming slots are 1..N.
func (s DemandSeries) Slots() int {
	max := 0
	for slot := range s {
		if slot > max {
			max = slot
		}
	}
	return max
}

// Clone returns a deep copy of the series.
func (s DemandSeries) Clone() DemandSeries {
	cp := make(DemandSeries, len(s))
	for slot, regions := range s {
		rs := make(map[int]RegionDemand, len(regions))
		for region, rd := range regions {
			rs[region] = rd.Clone()
		}
		cp[slot] = rs
	}
	return cp
}
