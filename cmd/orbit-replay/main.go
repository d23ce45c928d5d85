// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/orbit-replay/main.go
// Summary: Replays a recorded orbit-sim trace headlessly and prints the outcome.
// Usage: orbit-replay [-journal out.db] trace.orb

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/mattn/go-runewidth"

	"github.com/StardustXR/orbit/config"
	"github.com/StardustXR/orbit/dock"
	"github.com/StardustXR/orbit/internal/journal"
	"github.com/StardustXR/orbit/internal/sim"
)

func main() {
	journalPath := flag.String("journal", "", "Record transitions to this SQLite file and summarise them")
	verbose := flag.Bool("v", false, "Log to stderr instead of discarding")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: orbit-replay [-journal out.db] [-v] trace.orb")
		os.Exit(2)
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, flag.Arg(0), *journalPath); err != nil {
		fmt.Fprintf(os.Stderr, "orbit-replay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, tracePath, journalPath string) error {
	f, err := os.Open(tracePath)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg := config.System()
	world := sim.NewWorld(nil, sim.ParamsFromConfig(cfg))
	ui := dock.NewItemUI(world, dock.WithSettings(dock.SettingsFromConfig(cfg)))
	driver := dock.NewDriver(ui, 0, cfg.GetInt("driver", "inbound_buffer", 64))
	world.SetPoster(driver)
	defer ui.Close()

	var j *journal.Journal
	if journalPath != "" {
		jc := journal.DefaultConfig(journalPath)
		jc.BatchSize = cfg.GetInt("journal", "batch_size", jc.BatchSize)
		if j, err = journal.Open(jc); err != nil {
			return err
		}
		defer j.Close()
		ui.Events().Subscribe(j)
	}

	stats, err := sim.Replay(ctx, bufio.NewReader(f), world, driver, ui)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "trace %s: %d records, %d frames, %d inputs, %d failed\n",
		stats.TraceID, stats.Records, stats.Frames, stats.Inputs, stats.Failed)
	printPanels(out, world, ui)

	if j == nil {
		return nil
	}
	if err := j.Flush(); err != nil {
		return err
	}
	counts, err := j.Counts()
	if err != nil {
		return err
	}
	printCounts(out, counts)
	return nil
}

func printPanels(out io.Writer, world *sim.World, ui *dock.ItemUI) {
	const idWidth = 10
	for _, p := range world.Panels() {
		state := "unmanaged"
		if c := ui.Controller(p.ID); c != nil {
			state = c.State().String()
		}
		id := runewidth.FillRight(runewidth.Truncate(p.ID, idWidth, "…"), idWidth)
		line := fmt.Sprintf("  %s %-8s %-9s pos=(%.3f, %.3f, %.3f) edge=%s", id, state, p.Size, p.Position[0], p.Position[1], p.Position[2], p.Color.Hex())
		if p.DockedTo != "" {
			line += " on " + p.DockedTo
		}
		fmt.Fprintln(out, line)
	}
}

func printCounts(out io.Writer, counts map[string]int64) {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintln(out, "journal:")
	for _, k := range kinds {
		fmt.Fprintf(out, "  %s %d\n", runewidth.FillRight(k, 18), counts[k])
	}
}
