// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/sim/trace.go
// Summary: Records simulator input to a trace and replays it headlessly.
// Usage: orbit-sim -record writes a trace; orbit-replay feeds it back through Replay.

package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/StardustXR/orbit/dock"
	"github.com/StardustXR/orbit/protocol"
)

// Recorder appends protocol records to a writer.
type Recorder struct {
	mu    sync.Mutex
	w     io.Writer
	trace uuid.UUID
	seq   uint64
}

// NewRecorder starts a trace with a fresh identifier.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w, trace: uuid.New()}
}

// TraceID identifies the recording.
func (r *Recorder) TraceID() uuid.UUID { return r.trace }

// Record writes one message.
func (r *Recorder) Record(msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	hdr := protocol.Header{
		Version:  protocol.Version,
		Type:     msg.Type(),
		Flags:    protocol.FlagChecksum,
		TraceID:  r.trace,
		Sequence: r.seq,
	}
	return protocol.WriteMessage(r.w, hdr, payload)
}

// Frame records a tick. It has the shape of a dock.Driver frame hook.
func (r *Recorder) Frame(info dock.FrameInfo) {
	if err := r.Record(protocol.Frame{Delta: info.Delta, Elapsed: info.Elapsed}); err != nil {
		log.Printf("Sim: Trace write failed: %v", err)
	}
}

// Count returns the number of records written.
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// ReplayStats summarises a replayed trace.
type ReplayStats struct {
	TraceID uuid.UUID
	Records int
	Frames  int
	Inputs  int
	Failed  int
}

// Replay feeds a trace into w. Inputs are applied in order; every frame
// record ticks d and waits for the resulting sampling passes so captures
// land in the same frame they were requested in.
func Replay(ctx context.Context, r io.Reader, w *World, d *dock.Driver, ui *dock.ItemUI) (ReplayStats, error) {
	var stats ReplayStats
	var lastSeq uint64
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		hdr, payload, err := protocol.ReadMessage(r)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("record %d: %w", stats.Records+1, err)
		}
		if stats.Records == 0 {
			stats.TraceID = uuid.UUID(hdr.TraceID)
		} else if hdr.Sequence != lastSeq+1 {
			log.Printf("Sim: Trace gap after sequence %d (next %d)", lastSeq, hdr.Sequence)
		}
		lastSeq = hdr.Sequence
		stats.Records++

		msg, err := protocol.Decode(hdr.Type, payload)
		if err != nil {
			return stats, fmt.Errorf("record %d (%s): %w", stats.Records, hdr.Type, err)
		}

		if f, ok := msg.(protocol.Frame); ok {
			d.Tick(dock.FrameInfo{Delta: f.Delta, Elapsed: f.Elapsed})
			ui.Wait()
			d.Drain()
			stats.Frames++
			continue
		}
		stats.Inputs++
		if err := w.Apply(msg); err != nil {
			stats.Failed++
			log.Printf("Sim: Replaying %s failed: %v", hdr.Type, err)
		}
		d.Drain()
	}
}
