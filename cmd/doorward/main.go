// Copyright 2026 The Doorward Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command doorward runs the door-access controller: it reads credentials
// from a Wiegand reader, authorizes them against an allow list cached
// from a Conway server, drives the strike output, and serves the manual
// control plane.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/host/v3"

	"github.com/DoorwardProject/doorward"
	"github.com/DoorwardProject/doorward/admin"
	"github.com/DoorwardProject/doorward/config"
	gpioreader "github.com/DoorwardProject/doorward/reader/gpio"
	uartreader "github.com/DoorwardProject/doorward/reader/uart"
	"github.com/DoorwardProject/doorward/tasks"
	"github.com/DoorwardProject/doorward/watchdog"
)

var (
	flagConfig = flag.String("config", "/etc/doorward/doorward.toml", "Path to the configuration file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	log := initLogger(*flagDebug)
	cfg := config.LoadOrExit(*flagConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}
}

func initLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().
		Timestamp().
		Str("app", "doorward").
		Logger()
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Cache store, warmed from disk before the first sync. A missing or
	// corrupt envelope is "no cache": deny everything until a sync lands.
	cache := doorward.NewCache()
	store := doorward.NewCacheFile(cfg.Cache.Path)
	if err := store.EnsureDir(); err != nil {
		return err
	}
	if fobs, token, err := store.Load(); err != nil {
		log.Warn().Err(err).Msg("starting with an empty cache")
	} else {
		cache.Replace(fobs, token)
		log.Info().Int("fobs", len(fobs)).Msg("cache warmed from disk")
	}

	queue := doorward.NewEventQueue()
	client := doorward.NewClient(doorward.ClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.Server.Timeout.Std(),
	}, cache, store, queue)
	client.SetLogger(log)

	// Door strike and its pulser.
	var strike doorward.Strike
	if cfg.Reader.Source == "gpio" || cfg.Door.Pin != "" {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("init gpio host: %w", err)
		}
	}
	if cfg.Door.Pin != "" {
		s, err := gpioreader.NewStrike(cfg.Door.Pin, cfg.Door.ActiveLow)
		if err != nil {
			return err
		}
		strike = s
	} else {
		log.Warn().Msg("no door pin configured, actuation is a no-op")
		strike = nopStrike{}
	}
	pulser := doorward.NewPulser(strike, cfg.Door.Pulse.Std())
	pulser.SetLogger(log)
	go pulser.Run(ctx)

	// Decision core.
	lockout := doorward.NewLockout(doorward.DefaultLockoutCap)
	controller := doorward.NewController(cache, client, queue, pulser, lockout)
	controller.SetLogger(log)

	decoder := doorward.NewDecoder(&doorward.DecoderConfig{
		Debounce:   cfg.Reader.Debounce.Std(),
		Quiescence: cfg.Reader.Quiescence.Std(),
	})
	decoder.SetLogger(log)

	// Task supervision.
	sup := tasks.New(&tasks.Config{
		SyncInterval:   cfg.Server.SyncInterval.Std(),
		PollInterval:   cfg.Reader.PollInterval.Std(),
		WatchdogFeed:   cfg.Watchdog.Feed.Std(),
		StatusInterval: 30 * time.Second,
	}, log)

	switch cfg.Reader.Source {
	case "gpio":
		reader, err := gpioreader.New(gpioreader.Config{
			D0Pin: cfg.Reader.D0Pin,
			D1Pin: cfg.Reader.D1Pin,
		}, decoder)
		if err != nil {
			return err
		}
		reader.SetLogger(log)
		go reader.Run(ctx)
		sup.StartFrameLoop(ctx, decoder, controller)
	case "uart":
		reader, err := uartreader.New(uartreader.Config{
			Port: cfg.Reader.Port,
			Baud: cfg.Reader.Baud,
		})
		if err != nil {
			return err
		}
		reader.SetLogger(log)
		go reader.Run(ctx, func(f doorward.Frame) {
			controller.HandleFrame(ctx, f)
		})
	}

	sup.StartSyncLoop(ctx, client)
	sup.StartLink(ctx, tasks.LinkConfig{
		ProbeAddr:     cfg.Link.ProbeAddr,
		Interval:      cfg.Link.Interval.Std(),
		FailThreshold: cfg.Link.FailThreshold,
		ResetCommand:  cfg.Link.ResetCommand,
	})
	sup.StartStatusLoop(ctx, func() string {
		stats := decoder.Stats()
		return fmt.Sprintf("status: %d fobs, %d pending events, %d frames read",
			cache.Len(), queue.Len(), stats.Frames)
	})

	var timer watchdog.Timer = watchdog.Noop{}
	if cfg.Watchdog.Enabled {
		t, err := watchdog.Open(watchdog.Config{
			Device:  cfg.Watchdog.Device,
			Timeout: cfg.Watchdog.Timeout.Std(),
		})
		if err != nil {
			return err
		}
		timer = t
		defer func() {
			if err := timer.Close(); err != nil {
				log.Error().Err(err).Msg("watchdog close failed")
			}
		}()
	}
	sup.StartWatchdog(ctx, timer)

	// Manual control plane.
	adminSrv := admin.New(cfg.Admin.Addr, func() admin.Status {
		stats := decoder.Stats()
		return admin.Status{
			Token:         cache.Token(),
			Fobs:          cache.Len(),
			PendingEvents: queue.Len(),
			FramesRead:    stats.Frames,
			FramesBad:     stats.BadLength + stats.BadParity,
		}
	}, controller, log)
	go func() {
		if err := adminSrv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("admin server failed")
		}
	}()

	log.Info().
		Str("server", cfg.Server.BaseURL).
		Str("reader", cfg.Reader.Source).
		Msg("doorward running")

	<-ctx.Done()
	sup.Wait()
	log.Info().Msg("doorward stopped")
	return nil
}

type nopStrike struct{}

func (nopStrike) Set(bool) error { return nil }
