package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRegionDemandRequiredSortedAndPositive(t *testing.T) {
	d := RegionDemand{2.85: 3, 0.75: 10, 1.20: 0, 1.85: 1}
	got := d.Required()
	want := []Bitrate{0.75, 1.85, 2.85}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Required() = %v, want %v", got, want)
	}
	if total := d.Total(); total != 14 {
		t.Fatalf("Total() = %v, want 14", total)
	}
}

func TestDemandSeriesSetAndRegionCopy(t *testing.T) {
	s := DemandSeries{}
	s.Set(1, 10, 0.75, 12)
	if got := s.Get(1, 10, 0.75); got != 12 {
		t.Fatalf("Get = %v, want 12", got)
	}
	if got := s.Get(2, 10, 0.75); got != 0 {
		t.Fatalf("Get on missing slot = %v, want 0", got)
	}

	rd := s.Region(1, 10)
	rd[0.75] = 99
	if got := s.Get(1, 10, 0.75); got != 12 {
		t.Fatalf("Region() must return a copy, series now has %v", got)
	}
	if empty := s.Region(3, 1); empty == nil || len(empty) != 0 {
		t.Fatalf("Region on missing slot = %#v, want empty map", empty)
	}

	cp := s.Clone()
	cp.Set(1, 10, 0.75, 1)
	cp.Set(2, 3, 1.20, 4)
	if s.Get(1, 10, 0.75) != 12 || s.Slots() != 1 {
		t.Fatalf("Clone shares state with the original")
	}
}

func TestNodeResetSlotKeepsDepletedBusy(t *testing.T) {
	n := NewNode(1, 1, 50)
	n.Busy = true
	n.Processing[0.75] = 3
	n.BandwidthInUse = 2
	n.ResetSlot()
	if n.Busy || len(n.Processing) != 0 || n.BandwidthInUse != 0 {
		t.Fatalf("ResetSlot left state %#v", n)
	}
	if n.Battery != 50 {
		t.Fatalf("ResetSlot touched battery: %v", n.Battery)
	}

	n.Depleted = true
	n.ResetSlot()
	if !n.Busy {
		t.Fatalf("depleted node should stay busy after reset")
	}
}

func TestAssignmentMarshalsBitrateKeys(t *testing.T) {
	rec := SchedulingRecord{Slot: 1, Region: 10, Assignments: Assignment{0.75: 10, 1.2: 9}}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back SchedulingRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, rec) {
		t.Fatalf("round trip = %#v, want %#v", back, rec)
	}
	if got := rec.Assignments.Bitrates(); !reflect.DeepEqual(got, []Bitrate{0.75, 1.2}) {
		t.Fatalf("Bitrates() = %v", got)
	}
}
