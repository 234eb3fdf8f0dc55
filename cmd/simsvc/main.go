package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"battlesim/internal/config"
	"battlesim/internal/game"
	"battlesim/internal/logging"
	"battlesim/internal/sim"
	"battlesim/internal/store"
	"battlesim/internal/telemetry"
	"battlesim/internal/timeline"
)

var errDirtyTimeline = errors.New("timeline has violations")

type options struct {
	contentDir string
	battleFile string
	out        string
	check      string
	dbPath     string
	seed       int64
	n          int
	workers    int
	pretty     bool
	settings   config.Settings
}

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := options{settings: settings}
	var logLevel, logFormat string
	flag.StringVar(&opts.contentDir, "config", settings.ContentDir, "content dir")
	flag.StringVar(&opts.battleFile, "battle", settings.BattleFile, "battle setup file (single run)")
	flag.StringVar(&opts.out, "out", "out.json", "output file: timeline (single), summary (batch) or report (check)")
	flag.StringVar(&opts.check, "check", "", "validate and replay an existing timeline file instead of running")
	flag.StringVar(&opts.dbPath, "db", settings.DBPath, "sqlite archive for single runs")
	flag.Int64Var(&opts.seed, "seed", 12345, "seed")
	flag.IntVar(&opts.n, "n", 1, "number of simulations")
	flag.IntVar(&opts.workers, "workers", settings.Workers, "concurrent battles in a batch")
	flag.BoolVar(&opts.pretty, "pretty", true, "indent the timeline file")
	flag.StringVar(&logLevel, "log-level", settings.LogLevel, "debug, info, warn or error")
	flag.StringVar(&logFormat, "log-format", settings.LogFormat, "text or json")
	flag.Parse()

	logger, err := logging.New(os.Stderr, logLevel, logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "battlesim", settings.OTelEndpoint)
	if err != nil {
		slog.ErrorContext(ctx, "telemetry setup failed", "err", err)
		os.Exit(1)
	}

	err = run(ctx, opts)
	if serr := shutdown(context.Background()); serr != nil {
		slog.ErrorContext(ctx, "telemetry shutdown failed", "err", serr)
	}
	if err != nil {
		slog.ErrorContext(ctx, "simsvc failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	content, err := config.LoadAll(opts.contentDir)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	data, err := game.FromConfig(content)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}

	cfg := sim.DefaultConfig()
	cfg.MaxEvents = opts.settings.MaxEvents
	cfg.DeckSize = opts.settings.DeckSize

	switch {
	case opts.check != "":
		return runCheck(ctx, data, cfg, opts)
	case opts.n > 1:
		return runBatch(ctx, data, cfg, opts)
	}
	return runSingle(ctx, data, cfg, opts)
}

func runSingle(ctx context.Context, data *game.GameData, cfg sim.Config, opts options) error {
	bc, err := config.LoadBattle(opts.battleFile)
	if err != nil {
		return fmt.Errorf("load battle: %w", err)
	}
	player, opponent, err := game.DecksFromConfig(bc)
	if err != nil {
		return err
	}
	cfg.Width, cfg.Height = bc.Width, bc.Height
	cfg.AllowDuplicateEquip = bc.AllowDuplicateEquip

	rep, err := sim.NewRunner(data, cfg).Run(ctx, sim.Matchup{Seed: opts.seed, Player: player, Opponent: opponent})
	if err != nil {
		return err
	}
	if err := timeline.WriteFile(opts.out, rep.Timeline, opts.pretty); err != nil {
		return fmt.Errorf("write timeline: %w", err)
	}

	if opts.dbPath != "" {
		st, err := store.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.SaveBattle(ctx, store.Record{
			Seed:      rep.Seed,
			Winner:    rep.Winner,
			EndTimeMs: rep.EndTimeMs,
			Entries:   rep.Entries,
			Checksum:  rep.Checksum,
			Timeline:  rep.Timeline,
		})
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "battle archived", "id", id, "db", opts.dbPath)
	}

	fmt.Printf("Single battle finished. Winner=%s, T=%dms, entries=%d -> %s\n", rep.Winner, rep.EndTimeMs, rep.Entries, opts.out)
	if !rep.Clean() {
		return errDirtyTimeline
	}
	return nil
}

func runBatch(ctx context.Context, data *game.GameData, cfg sim.Config, opts options) error {
	sum, err := sim.NewRunner(data, cfg).RunBatch(ctx, opts.n, opts.seed, opts.workers)
	if err != nil {
		return err
	}
	if err := writeJSON(opts.out, sum); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	fmt.Printf("Batch %d done -> %s\n", opts.n, filepath.Base(opts.out))
	return nil
}

func runCheck(ctx context.Context, data *game.GameData, cfg sim.Config, opts options) error {
	tl, err := timeline.ReadFile(opts.check)
	if err != nil {
		return err
	}
	rep, err := sim.NewRunner(data, cfg).Check(ctx, tl, nil)
	if err != nil {
		return err
	}
	if err := writeJSON(opts.out, rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Checked %s: %d entries, %d violations, checksum %s\n",
		opts.check, rep.Entries, len(rep.Violations)+len(rep.ReplayViolations), rep.Checksum)
	if !rep.Clean() {
		return errDirtyTimeline
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
