package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hako/durafmt"

	"xact-engine/internal/engine"
	"xact-engine/internal/filesystem"
	"xact-engine/internal/settings"
)

func main() {
	configPath := flag.String("config", "./config/settings.json", "JSON configuration file")
	iniPath := flag.String("ini", "", "INI file whose keys override the JSON configuration")
	headless := flag.Bool("headless", false, "mix without opening an output device")
	duration := flag.Duration("duration", 0, "stop after this long (0 runs until the script ends or an interrupt)")
	flag.Parse()

	cfgManager := settings.NewManager(*configPath)
	if err := cfgManager.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgManager.GetConfig()

	if *iniPath != "" {
		fs := filesystem.NewManager(filepath.Dir(*iniPath))
		overrides := settings.NewINIManager(fs)
		if err := overrides.Load(filepath.Base(*iniPath)); err != nil {
			log.Fatal(err)
		}
		overrides.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid overrides in %s: %v", *iniPath, err)
		}
	}
	if *headless {
		cfg.Headless = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	start := time.Now()
	if err := engine.NewPlayer(cfg).Run(ctx); err != nil {
		log.Fatal(err)
	}
	log.Printf("Stopped after %s", durafmt.Parse(time.Since(start)).LimitFirstN(2))
}
