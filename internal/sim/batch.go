package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
	"battlesim/internal/util"
)

// seedStride spaces per-run seeds so neighbouring batches do not overlap.
const seedStride = 7919

type DamageShare struct {
	Total uint64  `json:"total"`
	Ratio float64 `json:"ratio"`
}

// Summary aggregates a batch. It depends only on n and seed, never on the
// worker count.
type Summary struct {
	Runs          int                    `json:"runs"`
	Wins          map[game.Winner]int    `json:"wins"`
	PlayerWinRate float64                `json:"player_win_rate"`
	AvgDurationMs float64                `json:"avg_duration_ms"`
	AvgEntries    float64                `json:"avg_entries"`
	Violations    int                    `json:"violations"`
	TotalDamage   uint64                 `json:"total_damage"`
	DamageByUnit  map[string]DamageShare `json:"damage_by_unit"`
}

type batchResult struct {
	report Report
	damage map[uuid.UUID]uint64
}

// RunBatch plays n random matchups with run i seeded from seed and i, at
// most workers at a time. The first failing run cancels the rest.
func (r *Runner) RunBatch(ctx context.Context, n int, seed int64, workers int) (Summary, error) {
	if n <= 0 {
		return Summary{}, fmt.Errorf("batch size must be greater than zero")
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, span := r.tracer.Start(ctx, "sim.RunBatch", trace.WithAttributes(
		attribute.Int("batch.runs", n),
		attribute.Int("batch.workers", workers),
		attribute.Int64("batch.seed", seed),
	))
	defer span.End()

	results := make([]batchResult, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		g.Go(func() error {
			runSeed := seed + int64(i)*seedStride
			player, opponent, err := util.RandomDecks(util.New(runSeed), r.data, r.cfg.Width, r.cfg.Height, r.cfg.DeckSize)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			rep, err := r.run(ctx, Matchup{Seed: runSeed, Player: player, Opponent: opponent})
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = batchResult{report: rep, damage: DamageByBase(rep.Timeline)}
			// the per-run timeline is not needed after aggregation
			results[i].report.Timeline = timeline.Timeline{}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		return Summary{}, err
	}

	sum := r.summarize(results)
	r.log.InfoContext(ctx, "batch finished",
		"runs", sum.Runs,
		"player_win_rate", sum.PlayerWinRate,
		"avg_duration_ms", sum.AvgDurationMs,
		"violations", sum.Violations,
	)
	return sum, nil
}

func (r *Runner) summarize(results []batchResult) Summary {
	sum := Summary{
		Runs:         len(results),
		Wins:         map[game.Winner]int{},
		DamageByUnit: map[string]DamageShare{},
	}
	var duration, entries uint64
	damage := map[uuid.UUID]uint64{}
	for _, res := range results {
		sum.Wins[res.report.Winner]++
		duration += res.report.EndTimeMs
		entries += uint64(res.report.Entries)
		sum.Violations += len(res.report.Violations) + len(res.report.ReplayViolations)
		for base, v := range res.damage {
			damage[base] += v
			sum.TotalDamage += v
		}
	}
	runs := float64(sum.Runs)
	sum.PlayerWinRate = float64(sum.Wins[game.WinnerPlayer]) / runs
	sum.AvgDurationMs = float64(duration) / runs
	sum.AvgEntries = float64(entries) / runs

	byName := map[string]uint64{}
	for base, v := range damage {
		byName[r.unitName(base)] += v
	}
	for name, v := range byName {
		share := 0.0
		if sum.TotalDamage > 0 {
			share = float64(v) / float64(sum.TotalDamage)
		}
		sum.DamageByUnit[name] = DamageShare{Total: v, Ratio: share}
	}
	return sum
}

func (r *Runner) unitName(base uuid.UUID) string {
	if m, ok := r.data.Abnormality(base); ok && m.ID != "" {
		return m.ID
	}
	return base.String()
}

// DamageByBase sums the health each unit removed from others, keyed by the
// dealer's base uuid. Heals and damage without a unit source are skipped.
func DamageByBase(tl timeline.Timeline) map[uuid.UUID]uint64 {
	bases := map[uuid.UUID]uuid.UUID{}
	out := map[uuid.UUID]uint64{}
	for _, e := range tl.Entries {
		switch ev := e.Event.(type) {
		case timeline.UnitSpawned:
			bases[ev.UnitInstanceID] = ev.BaseUUID
		case timeline.HpChanged:
			if ev.Delta >= 0 || !ev.SourceInstanceID.Valid {
				continue
			}
			base, ok := bases[ev.SourceInstanceID.UUID]
			if !ok {
				continue
			}
			out[base] += uint64(ev.HpBefore - ev.HpAfter)
		}
	}
	return out
}
