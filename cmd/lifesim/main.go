// Command lifesim runs the daily-life scheduling simulation.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/talgya/lifesim/internal/action"
	"github.com/talgya/lifesim/internal/api"
	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/health"
	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/notify"
	"github.com/talgya/lifesim/internal/persistence"
	"github.com/talgya/lifesim/internal/schedule"
	"github.com/talgya/lifesim/internal/sim"
)

func main() {
	configPath := flag.String("config", "config/tuning.yaml", "path to the tuning file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	tuning, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load tuning", "path", *configPath, "error", err)
		os.Exit(1)
	}
	slog.Info("tuning loaded", "path", *configPath, "seed", tuning.Seed, "entities", len(tuning.Entities))

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(tuning.DBPath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	db, err := persistence.Open(tuning.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", tuning.DBPath)

	// ── Core state ────────────────────────────────────────────────────
	var drift ledger.DriftPolicy
	if !tuning.Economy.DriftDisabled {
		drift = ledger.NewNoiseDrift(tuning.Seed, tuning.Economy.DriftAmplitude)
	}

	clk := clock.New(tuning.Season)
	book := ledger.NewLedgers(drift)
	book.Economy.DriftIntervalHours = tuning.Economy.DriftIntervalHours

	catalog, err := action.LoadCatalog(tuning.CatalogPath)
	if err != nil {
		slog.Error("failed to load action catalog", "path", tuning.CatalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("action catalog loaded", "path", tuning.CatalogPath, "actions", len(catalog.IDs()))

	notifier := notify.New()
	dispatcher := action.NewDispatcher(catalog, book)
	world := sim.New(clk, book, dispatcher, notifier, tuning.ActivityRates(), tuning.SeasonLengthDays)

	// ── Entities ──────────────────────────────────────────────────────
	for _, def := range tuning.Entities {
		e := &sim.Entity{
			ID:       schedule.EntityID(def.ID),
			Name:     def.Name,
			Location: def.Location,
			Schedule: schedule.New(schedule.EntityID(def.ID)),
			Health:   health.NewState(def.HealthMax),
		}
		if def.TemplateFile != "" {
			templates, err := config.LoadTemplates(def.TemplateFile)
			if err != nil {
				slog.Error("failed to load schedule template", "entity", def.ID, "error", err)
				os.Exit(1)
			}
			for dayType, items := range templates {
				e.Schedule.SetTemplate(dayType, items)
			}
		}
		world.AddEntity(e)

		for _, ld := range def.Ledgers {
			l, err := ld.ToLedger()
			if err != nil {
				slog.Error("bad ledger definition", "entity", def.ID, "error", err)
				os.Exit(1)
			}
			book.Register(l)
		}
	}

	// ── Load saved state ──────────────────────────────────────────────
	saved, err := db.LoadWorld()
	switch {
	case err == nil:
		world.Restore(saved)
		slog.Info("world state restored",
			"day", clk.Day(),
			"time", clock.FormatTime(clk.MinutesOfDay()),
			"entities", len(saved.Entities),
			"pending_actions", len(saved.Pending),
		)
	case errors.Is(err, persistence.ErrNoSave):
		slog.Info("no saved state found, starting fresh")
		if err := db.SaveWorld(world.Snapshot()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	default:
		slog.Error("failed to load saved state", "error", err)
		os.Exit(1)
	}

	// ── Engine ────────────────────────────────────────────────────────
	var mu sync.Mutex
	eng := sim.NewEngine(world, tuning.TickMinutes, time.Duration(tuning.TickIntervalMs)*time.Millisecond)
	eng.Mu = &mu

	// Auto-save every sim-day.
	notifier.OnDayRollover(func(notify.DayRollover) {
		if err := db.SaveWorld(world.Snapshot()); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	})

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := tuning.AdminKey
	if env := os.Getenv("LIFESIM_ADMIN_KEY"); env != "" {
		adminKey = env
	}
	if adminKey == "" {
		slog.Warn("LIFESIM_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:      world,
		Eng:      eng,
		DB:       db,
		Hub:      api.NewHub(notifier),
		Port:     tuning.APIPort,
		AdminKey: adminKey,
		Mu:       &mu,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\n%d entities living on a %d-minute day.\n", len(tuning.Entities), clock.MinutesPerDay)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", tuning.APIPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	mu.Lock()
	data := world.Snapshot()
	mu.Unlock()
	if err := db.SaveWorld(data); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if tuning.SnapshotPath != "" {
		if err := persistence.WriteSnapshot(tuning.SnapshotPath, data); err != nil {
			slog.Error("snapshot file failed", "path", tuning.SnapshotPath, "error", err)
		} else {
			slog.Info("snapshot written", "path", tuning.SnapshotPath)
		}
	}

	fmt.Println("Simulation stopped. World state saved.")
}
