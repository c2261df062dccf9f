// Copyright (c) 2026 Rover Labs
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/roverlabs/drivelog/internal/app"
	"github.com/roverlabs/drivelog/internal/config"
)

func main() {
	configPath := flag.String("config", "./drivelog_config.txt", "path to configuration file")
	interval := flag.Int("interval", 0, "capture decimation interval (overrides config)")
	flag.Parse()

	log.Println("starting drivelog teleoperation and data-collection rig")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *interval > 0 {
		config.Get().FrameInterval = *interval
	}

	log.Println("press the controller record button or the R key to start/stop recording")
	log.Println("drive with the arrow keys or the controller; Escape or Ctrl+C exits")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunCollector(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
