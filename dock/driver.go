// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/driver.go
// Summary: Single-goroutine frame loop feeding notifications and ticks to an ItemUI.
// Usage: The simulator and replay tool run one Driver; engine bindings may post from any goroutine.

package dock

import (
	"context"
	"slices"
	"sync"
	"time"
)

// DefaultFrameInterval is the tick period used when none is configured.
const DefaultFrameInterval = 16 * time.Millisecond

// Driver serialises lifecycle notifications and frame ticks onto one goroutine.
type Driver struct {
	ui       *ItemUI
	interval time.Duration

	// Notifications are queued without bound. Capture acknowledgments are
	// posted from sampling goroutines that Wait may be blocked on.
	queueMu sync.Mutex
	queue   []Notification
	wake    chan struct{}

	hookMu sync.Mutex
	hooks  []func(FrameInfo)

	start time.Time
	last  time.Time
}

// NewDriver creates a driver ticking ui every interval. buffer is the initial
// queue capacity; the queue grows past it instead of blocking posters.
func NewDriver(ui *ItemUI, interval time.Duration, buffer int) *Driver {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	if buffer < 1 {
		buffer = 64
	}
	return &Driver{
		ui:       ui,
		interval: interval,
		queue:    make([]Notification, 0, buffer),
		wake:     make(chan struct{}, 1),
	}
}

// OnFrame registers a callback run on the loop goroutine after every tick.
func (d *Driver) OnFrame(fn func(FrameInfo)) {
	d.hookMu.Lock()
	d.hooks = append(d.hooks, fn)
	d.hookMu.Unlock()
}

// Post queues a notification in arrival order. It never blocks.
func (d *Driver) Post(n Notification) {
	d.queueMu.Lock()
	d.queue = append(d.queue, n)
	d.queueMu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many notifications are queued.
func (d *Driver) Pending() int {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return len(d.queue)
}

// Drain applies every queued notification without ticking, including ones
// posted while draining.
func (d *Driver) Drain() {
	for {
		d.queueMu.Lock()
		batch := d.queue
		d.queue = nil
		d.queueMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, n := range batch {
			d.ui.Handle(n)
		}
	}
}

// Tick drains queued notifications and then advances every panel by one frame.
func (d *Driver) Tick(info FrameInfo) {
	d.Drain()
	d.ui.Frame(info)
	d.hookMu.Lock()
	hooks := slices.Clone(d.hooks)
	d.hookMu.Unlock()
	for _, fn := range hooks {
		fn(info)
	}
}

// Step ticks with timing derived from the wall clock.
func (d *Driver) Step(now time.Time) FrameInfo {
	if d.start.IsZero() {
		d.start = now
		d.last = now
	}
	info := FrameInfo{
		Delta:   now.Sub(d.last).Seconds(),
		Elapsed: now.Sub(d.start).Seconds(),
	}
	d.last = now
	d.Tick(info)
	return info
}

// Run processes notifications and ticks until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.wake:
			d.Drain()
		case now := <-ticker.C:
			d.Step(now)
		case <-ctx.Done():
			d.Drain()
			return ctx.Err()
		}
	}
}
