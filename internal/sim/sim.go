// Package sim runs battles end to end: engine, validator, replayer and
// checksum, either one matchup at a time or as seeded batches.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"battlesim/internal/combat"
	"battlesim/internal/game"
	"battlesim/internal/replay"
	"battlesim/internal/timeline"
	"battlesim/internal/validation"
)

const tracerName = "battlesim/internal/sim"

type Config struct {
	Width, Height       uint8
	AllowDuplicateEquip bool
	MaxEvents           int
	// DeckSize is the number of units per side in random batch matchups.
	DeckSize   int
	Validation validation.Config
	Replay     replay.Config
	Logger     *slog.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

func DefaultConfig() Config {
	return Config{
		Width:      8,
		Height:     8,
		DeckSize:   3,
		Validation: validation.DefaultConfig(),
		Replay:     replay.DefaultConfig(),
	}
}

// Matchup is one battle to play.
type Matchup struct {
	Seed     int64
	Player   game.PlayerDeckInfo
	Opponent game.PlayerDeckInfo
}

// Report is the outcome of one checked battle.
type Report struct {
	Seed             int64                  `json:"seed"`
	Winner           game.Winner            `json:"winner"`
	EndTimeMs        uint64                 `json:"end_time_ms"`
	Events           int                    `json:"events"`
	Entries          int                    `json:"entries"`
	Checksum         string                 `json:"checksum"`
	Violations       []validation.Violation `json:"violations,omitempty"`
	ReplayViolations []replay.Violation     `json:"replay_violations,omitempty"`
	Timeline         timeline.Timeline      `json:"-"`
}

// Clean reports whether neither the validator nor the replayer objected.
func (r Report) Clean() bool {
	return len(r.Violations) == 0 && len(r.ReplayViolations) == 0
}

type Runner struct {
	data   *game.GameData
	cfg    Config
	log    *slog.Logger
	tracer trace.Tracer
}

func NewRunner(data *game.GameData, cfg Config) *Runner {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Runner{data: data, cfg: cfg, log: log, tracer: tp.Tracer(tracerName)}
}

// Run plays m and checks the resulting timeline.
func (r *Runner) Run(ctx context.Context, m Matchup) (Report, error) {
	rep, err := r.run(ctx, m)
	if err != nil {
		return Report{}, err
	}
	r.log.InfoContext(ctx, "battle finished",
		"seed", rep.Seed,
		"winner", rep.Winner,
		"end_time_ms", rep.EndTimeMs,
		"entries", rep.Entries,
		"checksum", rep.Checksum,
		"violations", len(rep.Violations)+len(rep.ReplayViolations),
	)
	return rep, nil
}

func (r *Runner) run(ctx context.Context, m Matchup) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	ctx, span := r.tracer.Start(ctx, "sim.Run", trace.WithAttributes(attribute.Int64("battle.seed", m.Seed)))
	defer span.End()

	core := combat.New(m.Player, m.Opponent, r.data, combat.Options{
		Width:               r.cfg.Width,
		Height:              r.cfg.Height,
		AllowDuplicateEquip: r.cfg.AllowDuplicateEquip,
		MaxEvents:           r.cfg.MaxEvents,
		Logger:              r.log,
	})
	res, err := core.RunBattle()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run battle")
		return Report{}, fmt.Errorf("run battle (seed %d): %w", m.Seed, err)
	}

	expected := validation.ExpectedCountsFromDecks(m.Player, m.Opponent)
	rep, err := r.Check(ctx, res.Timeline, &expected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check timeline")
		return Report{}, fmt.Errorf("check battle (seed %d): %w", m.Seed, err)
	}
	rep.Seed = m.Seed
	rep.Winner = res.Winner
	rep.EndTimeMs = res.EndTimeMs
	rep.Events = res.Events

	span.SetAttributes(
		attribute.String("battle.winner", string(rep.Winner)),
		attribute.Int("battle.entries", rep.Entries),
		attribute.Int("battle.violations", len(rep.Violations)+len(rep.ReplayViolations)),
	)
	return rep, nil
}

// Check validates and replays an existing timeline. expected may be nil when
// the decks are unknown.
func (r *Runner) Check(ctx context.Context, tl timeline.Timeline, expected *validation.ExpectedCounts) (Report, error) {
	ctx, span := r.tracer.Start(ctx, "sim.Check")
	defer span.End()

	rep := Report{Entries: tl.Len(), Timeline: tl}
	if last, ok := tl.Last(); ok {
		if end, ok := last.Event.(timeline.BattleEnd); ok {
			rep.Winner = end.Winner
			rep.EndTimeMs = last.TimeMs
		}
	}

	_, vspan := r.tracer.Start(ctx, "sim.Validate")
	rep.Violations = validation.New(r.cfg.Validation).Validate(tl, expected)
	vspan.SetAttributes(attribute.Int("violations", len(rep.Violations)))
	vspan.End()

	_, rspan := r.tracer.Start(ctx, "sim.Replay")
	rep.ReplayViolations = replay.New(r.data, r.cfg.Replay).Replay(tl)
	rspan.SetAttributes(attribute.Int("violations", len(rep.ReplayViolations)))
	rspan.End()

	sum, err := timeline.Checksum(tl)
	if err != nil {
		return Report{}, err
	}
	rep.Checksum = sum

	if !rep.Clean() {
		for _, v := range rep.Violations {
			r.log.WarnContext(ctx, "timeline violation", "kind", v.Kind, "entry", v.Entry, "message", v.Message)
		}
		for _, v := range rep.ReplayViolations {
			r.log.WarnContext(ctx, "replay violation", "kind", v.Kind, "entry", v.Entry, "message", v.Message)
		}
	}
	return rep, nil
}
