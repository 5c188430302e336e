// Package ledger is the append-only record of every decision a simulation
// run makes: activations, bitrate assignments, region delays and energy.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// ErrDuplicateRecord indicates a second record for an already-recorded key.
var ErrDuplicateRecord = errors.New("duplicate ledger record")

// Ledger stores records keyed by (slot, region) or (slot, region, bitrate).
// Records are never overwritten. It is safe for concurrent use.
type Ledger struct {
	mu sync.RWMutex

	activations map[model.RegionKey]model.ActivationRecord
	scheduling  map[model.RegionKey]model.SchedulingRecord
	delays      map[model.RegionKey]model.DelayRecord
	energy      map[model.RecordKey]model.EnergyRecord

	log logging.Logger
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.log = l
		}
	}
}

// New returns an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		activations: make(map[model.RegionKey]model.ActivationRecord),
		scheduling:  make(map[model.RegionKey]model.SchedulingRecord),
		delays:      make(map[model.RegionKey]model.DelayRecord),
		energy:      make(map[model.RecordKey]model.EnergyRecord),
		log:         logging.Noop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordActivation appends the activated node of a region.
func (l *Ledger) RecordActivation(rec model.ActivationRecord) error {
	key := model.RegionKey{Slot: rec.Slot, Region: rec.Region}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.activations[key]; dup {
		return fmt.Errorf("%w: activation slot %d region %d", ErrDuplicateRecord, rec.Slot, rec.Region)
	}
	l.activations[key] = rec
	return nil
}

// RecordScheduling appends the bitrate assignment of a region. The
// assignment map is copied.
func (l *Ledger) RecordScheduling(rec model.SchedulingRecord) error {
	key := model.RegionKey{Slot: rec.Slot, Region: rec.Region}
	cp := make(model.Assignment, len(rec.Assignments))
	for b, id := range rec.Assignments {
		cp[b] = id
	}
	rec.Assignments = cp

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.scheduling[key]; dup {
		return fmt.Errorf("%w: scheduling slot %d region %d", ErrDuplicateRecord, rec.Slot, rec.Region)
	}
	l.scheduling[key] = rec
	return nil
}

// RecordDelay appends the delay of a region.
func (l *Ledger) RecordDelay(rec model.DelayRecord) error {
	key := model.RegionKey{Slot: rec.Slot, Region: rec.Region}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.delays[key]; dup {
		return fmt.Errorf("%w: delay slot %d region %d", ErrDuplicateRecord, rec.Slot, rec.Region)
	}
	l.delays[key] = rec
	return nil
}

// RecordEnergy appends the energy spent on one bitrate of a region.
func (l *Ledger) RecordEnergy(rec model.EnergyRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.energy[rec.Key]; dup {
		return fmt.Errorf("%w: energy slot %d region %d bitrate %s",
			ErrDuplicateRecord, rec.Key.Slot, rec.Key.Region, rec.Key.Bitrate)
	}
	l.energy[rec.Key] = rec
	return nil
}

// Activation looks up the activation record of a region.
func (l *Ledger) Activation(slot, region int) (model.ActivationRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.activations[model.RegionKey{Slot: slot, Region: region}]
	return rec, ok
}

// Scheduling looks up the scheduling record of a region.
func (l *Ledger) Scheduling(slot, region int) (model.SchedulingRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.scheduling[model.RegionKey{Slot: slot, Region: region}]
	return rec, ok
}

// Delay looks up the delay record of a region.
func (l *Ledger) Delay(slot, region int) (model.DelayRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.delays[model.RegionKey{Slot: slot, Region: region}]
	return rec, ok
}

// Energy looks up the energy record of one bitrate of a region.
func (l *Ledger) Energy(slot, region int, b model.Bitrate) (model.EnergyRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.energy[model.RecordKey{Slot: slot, Region: region, Bitrate: b}]
	return rec, ok
}

// Len returns the total number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.activations) + len(l.scheduling) + len(l.delays) + len(l.energy)
}

// Activations lists activation records by slot, then region.
func (l *Ledger) Activations() []model.ActivationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.ActivationRecord, 0, len(l.activations))
	for _, rec := range l.activations {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return regionLess(out[i].Slot, out[i].Region, out[j].Slot, out[j].Region) })
	return out
}

// Schedulings lists scheduling records by slot, then region.
func (l *Ledger) Schedulings() []model.SchedulingRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.SchedulingRecord, 0, len(l.scheduling))
	for _, rec := range l.scheduling {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return regionLess(out[i].Slot, out[i].Region, out[j].Slot, out[j].Region) })
	return out
}

// Delays lists delay records by slot, then region.
func (l *Ledger) Delays() []model.DelayRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.DelayRecord, 0, len(l.delays))
	for _, rec := range l.delays {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return regionLess(out[i].Slot, out[i].Region, out[j].Slot, out[j].Region) })
	return out
}

// EnergyRecords lists energy records by slot, region, then bitrate.
func (l *Ledger) EnergyRecords() []model.EnergyRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.EnergyRecord, 0, len(l.energy))
	for _, rec := range l.energy {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Slot != b.Slot || a.Region != b.Region {
			return regionLess(a.Slot, a.Region, b.Slot, b.Region)
		}
		return a.Bitrate < b.Bitrate
	})
	return out
}

func regionLess(slotA, regionA, slotB, regionB int) bool {
	if slotA != slotB {
		return slotA < slotB
	}
	return regionA < regionB
}
