package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SlotClock exposes the current slot to components that should not drive it.
type SlotClock interface {
	// Slot returns the slot being processed, 0 before the first one.
	Slot() int
	// Now returns the simulated wall time at the start of the current slot.
	Now() time.Time
}

// Mode describes how the SlotController paces slots.
type Mode int

const (
	// Accelerated runs slots back to back.
	Accelerated Mode = iota
	// RealTime waits SlotDuration of wall time between slots.
	RealTime
)

// SlotListener is invoked once per slot. A non-nil error stops the run.
type SlotListener func(ctx context.Context, slot int) error

// SlotController advances a discrete slot counter and notifies listeners in
// registration order. It implements SlotClock.
type SlotController struct {
	mu           sync.RWMutex
	StartTime    time.Time
	SlotDuration time.Duration
	Mode         Mode

	current   int
	listeners []SlotListener
}

// NewSlotController constructs a controller positioned before slot 1.
func NewSlotController(start time.Time, slotDuration time.Duration, mode Mode) *SlotController {
	return &SlotController{
		StartTime:    start,
		SlotDuration: slotDuration,
		Mode:         mode,
	}
}

// Slot returns the current slot. Implements SlotClock.
func (sc *SlotController) Slot() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.current
}

// Now returns the simulated start time of the current slot. Implements SlotClock.
func (sc *SlotController) Now() time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.slotTime(sc.current)
}

// SlotTime returns the simulated start time of slot.
func (sc *SlotController) SlotTime(slot int) time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.slotTime(slot)
}

func (sc *SlotController) slotTime(slot int) time.Time {
	if slot <= 1 {
		return sc.StartTime
	}
	return sc.StartTime.Add(time.Duration(slot-1) * sc.SlotDuration)
}

// AddListener registers a callback invoked on every slot.
func (sc *SlotController) AddListener(fn SlotListener) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.listeners = append(sc.listeners, fn)
}

// Run processes slots 1..slots synchronously. It stops at the first listener
// error or when ctx is cancelled.
func (sc *SlotController) Run(ctx context.Context, slots int) error {
	sc.mu.RLock()
	listeners := append([]SlotListener(nil), sc.listeners...)
	mode, pace := sc.Mode, sc.SlotDuration
	sc.mu.RUnlock()

	var tick <-chan time.Time
	if mode == RealTime && pace > 0 {
		ticker := time.NewTicker(pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	for slot := 1; slot <= slots; slot++ {
		if slot > 1 && tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		sc.mu.Lock()
		sc.current = slot
		sc.mu.Unlock()

		for _, fn := range listeners {
			if err := fn(ctx, slot); err != nil {
				return fmt.Errorf("slot %d: %w", slot, err)
			}
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. The returned channel
// yields the result of Run and is then closed.
func (sc *SlotController) Start(ctx context.Context, slots int) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- sc.Run(ctx, slots)
	}()
	return done
}
