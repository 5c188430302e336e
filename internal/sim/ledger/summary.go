package ledger

import "sort"

// SlotSummary aggregates one slot.
type SlotSummary struct {
	Slot      int     `json:"slot"`
	Regions   int     `json:"regions"`
	MeanDelay float64 `json:"mean_delay"`
	MaxDelay  float64 `json:"max_delay"`
	Energy    float64 `json:"energy"`
}

// Summary is the aggregate view of a run.
type Summary struct {
	Slots           []SlotSummary   `json:"slots"`
	RegionMeanDelay map[int]float64 `json:"region_mean_delay"`
	Activations     map[int]int     `json:"activations_per_node"`
	FinalBattery    map[int]float64 `json:"final_battery"`
	HopHistogram    map[int]int     `json:"hop_histogram"`
	TotalEnergy     float64         `json:"total_energy"`
}

// Summary aggregates the recorded delays, activations and energy. The final
// battery of a node is the battery after its last charged stream.
func (l *Ledger) Summary() Summary {
	s := Summary{
		RegionMeanDelay: make(map[int]float64),
		Activations:     make(map[int]int),
		FinalBattery:    make(map[int]float64),
		HopHistogram:    make(map[int]int),
	}

	bySlot := make(map[int]*SlotSummary)
	slotFor := func(slot int) *SlotSummary {
		ss, ok := bySlot[slot]
		if !ok {
			ss = &SlotSummary{Slot: slot}
			bySlot[slot] = ss
		}
		return ss
	}

	regionCount := make(map[int]int)
	for _, rec := range l.Delays() {
		ss := slotFor(rec.Slot)
		ss.Regions++
		ss.MeanDelay += rec.Delay
		if rec.Delay > ss.MaxDelay {
			ss.MaxDelay = rec.Delay
		}
		s.RegionMeanDelay[rec.Region] += rec.Delay
		regionCount[rec.Region]++
	}
	for region, n := range regionCount {
		s.RegionMeanDelay[region] /= float64(n)
	}

	for _, rec := range l.Activations() {
		s.Activations[rec.Node]++
	}

	for _, rec := range l.EnergyRecords() {
		spent := rec.TranscodeEnergy + rec.RelayEnergy
		slotFor(rec.Key.Slot).Energy += spent
		s.TotalEnergy += spent
		s.FinalBattery[rec.Node] = rec.BatteryAfter
		s.HopHistogram[rec.Hops]++
	}

	for _, ss := range bySlot {
		if ss.Regions > 0 {
			ss.MeanDelay /= float64(ss.Regions)
		}
		s.Slots = append(s.Slots, *ss)
	}
	sort.Slice(s.Slots, func(i, j int) bool { return s.Slots[i].Slot < s.Slots[j].Slot })
	return s
}
