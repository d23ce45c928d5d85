// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/sampler.go
// Summary: Concurrent nearest-acceptor search for one panel.
// Usage: Panel controllers run one sampling pass per frame on a background goroutine.

package dock

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"
)

// DistanceSample is one acceptor's reply within a sampling pass.
type DistanceSample struct {
	AcceptorID string
	Distance   float32
	OK         bool
}

// PassResult summarises a completed sampling pass.
type PassResult struct {
	Winner  DistanceSample
	Found   bool
	Queried int
	Replied int
	Failed  int
	Elapsed time.Duration
}

// Sampler fans distance queries out over an acceptor snapshot.
type Sampler struct{}

// Sample queries every acceptor in snap concurrently and waits for all of
// them. Failed or empty replies are excluded from the reduction.
func (s *Sampler) Sample(ctx context.Context, from Spatial, point Vec3, snap *AcceptorSnapshot) PassResult {
	start := time.Now()
	entries := snap.Entries()
	samples := make([]DistanceSample, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		samples[i].AcceptorID = entry.ID
		wg.Add(1)
		go func(i int, field ProximityField) {
			defer wg.Done()
			d, err := field.Distance(ctx, from, point)
			if err != nil {
				if !errors.Is(err, ErrNoDistance) {
					log.Printf("Sampler: Distance query to %q failed: %v", samples[i].AcceptorID, err)
				}
				return
			}
			if math.IsNaN(float64(d)) {
				return
			}
			samples[i].Distance = d
			samples[i].OK = true
		}(i, entry.Handle)
	}
	wg.Wait()

	result := PassResult{Queried: len(samples), Elapsed: time.Since(start)}
	for _, sample := range samples {
		if sample.OK {
			result.Replied++
		} else {
			result.Failed++
		}
	}
	result.Winner, result.Found = Nearest(samples)
	return result
}

// Nearest returns the sample with the smallest absolute distance. On a tie
// the earlier sample wins.
func Nearest(samples []DistanceSample) (DistanceSample, bool) {
	var best DistanceSample
	found := false
	for _, sample := range samples {
		if !sample.OK {
			continue
		}
		sample.Distance = float32(math.Abs(float64(sample.Distance)))
		if !found || sample.Distance < best.Distance {
			best = sample
			found = true
		}
	}
	return best, found
}
