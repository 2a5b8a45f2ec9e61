package simulate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
)

// DefaultDebounce is the quiet period after the last form edit
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces form edits. Each fire cancels the simulation started by
// the previous one, and cancelled runs never reach the callback.
type Debouncer struct {
	parent   context.Context
	delay    time.Duration
	run      func(ctx context.Context, values models.FormValues) (*Selection, error)
	onResult func(values models.FormValues, sel *Selection, err error)

	mu         sync.Mutex
	timer      *time.Timer
	cancel     context.CancelFunc
	generation uint64
}

// NewDebouncer wires sim to onResult. parent bounds every run.
func (s *Simulator) NewDebouncer(
	parent context.Context,
	delay time.Duration,
	onResult func(values models.FormValues, sel *Selection, err error),
) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		parent:   parent,
		delay:    delay,
		run:      s.Simulate,
		onResult: onResult,
	}
}

// Submit schedules a simulation for values. A zero amount cancels pending work
// and schedules nothing.
func (d *Debouncer) Submit(values models.FormValues) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.generation++
	if values.IsZeroQuantity() {
		return
	}

	gen := d.generation
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.generation {
			d.mu.Unlock()
			return
		}
		ctx, cancel := context.WithCancel(d.parent)
		d.cancel = cancel
		d.mu.Unlock()

		sel, err := d.run(ctx, values)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}

		d.mu.Lock()
		current := gen == d.generation
		d.mu.Unlock()
		if current {
			d.onResult(values, sel, err)
		}
	})
}

// Stop cancels the pending timer and any in-flight simulation
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.generation++
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
