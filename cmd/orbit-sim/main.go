// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/orbit-sim/main.go
// Summary: Interactive terminal front end for the simulated docking world.
// Usage: orbit-sim [-record trace.orb] [-journal] [-dump-config]

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/StardustXR/orbit/config"
	"github.com/StardustXR/orbit/dock"
	"github.com/StardustXR/orbit/internal/journal"
	"github.com/StardustXR/orbit/internal/sim"
)

func main() {
	recordPath := flag.String("record", "", "Write a replayable trace to this file")
	dumpConfig := flag.Bool("dump-config", false, "Print the effective configuration and exit")
	withJournal := flag.Bool("journal", false, "Record docking transitions even if disabled in the config")
	logPath := flag.String("log", "", "Log file (default: <config>/orbit/logs/orbit-sim.log)")
	flag.Parse()

	cfg := config.System()
	if err := config.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "orbit-sim: %v (using defaults)\n", err)
	}

	if *dumpConfig {
		if p, err := config.Path(); err == nil {
			fmt.Fprintf(os.Stderr, "orbit-sim: config %s\n", p)
		}
		if err := dumpConfigTo(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "orbit-sim: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logFile, err := openLog(*logPath, "orbit-sim.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "orbit-sim: cannot open log: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.SetOutput(logFile)
	log.Println("orbit-sim starting...")

	settings := dock.SettingsFromConfig(cfg)
	params := sim.ParamsFromConfig(cfg)

	opts := []dock.Option{dock.WithSettings(settings)}
	if every := cfg.GetInt("driver", "log_every", 0); every > 0 {
		opts = append(opts, dock.WithObserver(dock.NewPassLogger(log.Default(), every)))
	}

	world := sim.NewWorld(nil, params)
	ui := dock.NewItemUI(world, opts...)
	driver := dock.NewDriver(ui,
		cfg.GetMillis("driver", "frame_interval_ms", dock.DefaultFrameInterval),
		cfg.GetInt("driver", "inbound_buffer", 64))
	world.SetPoster(driver)

	if *withJournal || cfg.GetBool("journal", "enabled", false) {
		jc, err := journal.ConfigFromSystem(cfg)
		if err == nil {
			var j *journal.Journal
			if j, err = journal.Open(jc); err == nil {
				ui.Events().Subscribe(j)
				defer j.Close()
			}
		}
		if err != nil {
			log.Printf("orbit-sim: journal disabled: %v", err)
		}
	}

	if *recordPath != "" {
		f, err := os.Create(*recordPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "orbit-sim: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		rec := sim.NewRecorder(f)
		world.SetRecorder(rec)
		driver.OnFrame(rec.Frame)
		log.Printf("orbit-sim: recording trace %s to %s", rec.TraceID(), *recordPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(world, ui, driver, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orbit-sim: %v\n", err)
		os.Exit(1)
	}
	populate(world, params)

	go func() {
		if err := driver.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("orbit-sim: driver stopped: %v", err)
		}
	}()

	if err := app.run(ctx, cancel); err != nil {
		log.Printf("orbit-sim: %v", err)
	}
	cancel()
	ui.Close()
	log.Println("orbit-sim stopped cleanly.")
}

// populate lays acceptors out in a row and drops one panel above them.
func populate(w *sim.World, p sim.Params) {
	n := p.Acceptors
	half := dock.Vec3{0.05, 0.03, 0.01}
	for i := 0; i < n; i++ {
		x := (float32(i) - float32(n-1)/2) * 0.25
		label := fmt.Sprintf("Dock %d", i+1)
		if err := w.SpawnAcceptor(shortID(), label, dock.Vec3{x, -0.2, 0}, half); err != nil {
			log.Printf("orbit-sim: %v", err)
		}
	}
	if err := w.SpawnPanel(shortID(), dock.Size{Width: 1280, Height: 720}, dock.Vec3{0, 0.15, 0}); err != nil {
		log.Printf("orbit-sim: %v", err)
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}

func openLog(path, name string) (*os.File, error) {
	if path == "" {
		dir, err := config.LogDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
