// Package validation checks a recorded battle timeline for structural and
// causal consistency without re-running the battle.
package validation

import (
	"fmt"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

type Kind string

const (
	TimelineVersionMismatch    Kind = "TimelineVersionMismatch"
	MissingEntries             Kind = "MissingEntries"
	MissingBattleStart         Kind = "MissingBattleStart"
	MissingBattleEnd           Kind = "MissingBattleEnd"
	NonContiguousSeq           Kind = "NonContiguousSeq"
	TimeWentBackwards          Kind = "TimeWentBackwards"
	AttackKindMissing          Kind = "AttackKindMissing"
	AutoCastPairInvalid        Kind = "AutoCastPairInvalid"
	OutcomeMissingCauseSeq     Kind = "OutcomeMissingCauseSeq"
	OutcomeCauseSeqOutOfRange  Kind = "OutcomeCauseSeqOutOfRange"
	OutcomeCauseSeqInFuture    Kind = "OutcomeCauseSeqInFuture"
	OutcomeCauseSeqInvalidType Kind = "OutcomeCauseSeqInvalidType"
	SpawnStatsInvalid          Kind = "SpawnStatsInvalid"
	StatsAfterInvalid          Kind = "StatsAfterInvalid"
	HpDeltaMismatch            Kind = "HpDeltaMismatch"
	HpBeforeMismatch           Kind = "HpBeforeMismatch"
	StatsBeforeMismatch        Kind = "StatsBeforeMismatch"
	UnitDiedWhileAlive         Kind = "UnitDiedWhileAlive"
	BuffAppliedByDeadCaster    Kind = "BuffAppliedByDeadCaster"
	UnitSpawnCountMismatch     Kind = "UnitSpawnCountMismatch"
	ItemSpawnCountMismatch     Kind = "ItemSpawnCountMismatch"
	ArtifactSpawnCountMismatch Kind = "ArtifactSpawnCountMismatch"
	DuplicateUnitSpawn         Kind = "DuplicateUnitSpawn"
	DuplicateItemSpawn         Kind = "DuplicateItemSpawn"
	DuplicateArtifactSpawn     Kind = "DuplicateArtifactSpawn"
	UnknownUnitReference       Kind = "UnknownUnitReference"
	UnitReferencedBeforeSpawn  Kind = "UnitReferencedBeforeSpawn"
	AttackTargetsSameUnit      Kind = "AttackTargetsSameUnit"
	AttackTargetsAlly          Kind = "AttackTargetsAlly"
	AttackMissingBasicHpChange Kind = "AttackMissingBasicHpChanged"
	UnitDiedDuplicate          Kind = "UnitDiedDuplicate"
	DeadUnitActsAfterDeath     Kind = "DeadUnitActsAfterDeath"
	AutoAttackTooEarly         Kind = "AutoAttackTooEarly"
	MissingExpectedAutoAttack  Kind = "MissingExpectedAutoAttack"
	UnknownBuffID              Kind = "UnknownBuffId"
	BuffAppliedDurationZero    Kind = "BuffAppliedDurationZero"
	BuffTickInvalid            Kind = "BuffTickInvalid"
	BuffExpiredInvalid         Kind = "BuffExpiredInvalid"
)

// NoEntry marks a violation that is not tied to a single entry.
const NoEntry = -1

type Violation struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Entry   int    `json:"entry"`
}

func (v Violation) String() string {
	if v.Entry == NoEntry {
		return fmt.Sprintf("%s: %s", v.Kind, v.Message)
	}
	return fmt.Sprintf("%s at entry %d: %s", v.Kind, v.Entry, v.Message)
}

type Config struct {
	RequireBattleStartEnd         bool
	RequireContiguousSeq          bool
	RequireNonDecreasingTime      bool
	ValidateOutcomeCauseSeq       bool
	RequireAutoCastPairs          bool
	RequireSpawnStatsValid        bool
	RequireHpDeltaConsistent      bool
	RequireAttackHasBasicHpChange bool
	ForbidDeadUnitsAsAttackers    bool
	ForbidDeadUnitsAsTargets      bool
	ValidateAutoAttackMinInterval bool
	ValidateAutoAttackPresence    bool
	AutoAttackTimingToleranceMs   uint64
}

// DefaultConfig enables every check except auto attack presence.
func DefaultConfig() Config {
	return Config{
		RequireBattleStartEnd:         true,
		RequireContiguousSeq:          true,
		RequireNonDecreasingTime:      true,
		ValidateOutcomeCauseSeq:       true,
		RequireAutoCastPairs:          true,
		RequireSpawnStatsValid:        true,
		RequireHpDeltaConsistent:      true,
		RequireAttackHasBasicHpChange: true,
		ForbidDeadUnitsAsAttackers:    true,
		ForbidDeadUnitsAsTargets:      true,
		ValidateAutoAttackMinInterval: true,
		AutoAttackTimingToleranceMs:   2,
	}
}

// ExpectedCounts are the spawn totals a timeline must contain.
type ExpectedCounts struct {
	Units     int
	Items     int
	Artifacts int
}

func ExpectedCountsFromDecks(player, opponent game.PlayerDeckInfo) ExpectedCounts {
	var c ExpectedCounts
	for _, d := range []game.PlayerDeckInfo{player, opponent} {
		c.Units += len(d.Units)
		c.Artifacts += len(d.Artifacts)
		for _, u := range d.Units {
			c.Items += len(u.EquippedItems)
		}
	}
	return c
}

type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// report collects violations for one run.
type report struct {
	out []Violation
}

func (r *report) add(kind Kind, entry int, format string, args ...any) {
	r.out = append(r.out, Violation{Kind: kind, Message: fmt.Sprintf(format, args...), Entry: entry})
}

// Validate runs every enabled check and returns the accumulated violations,
// nil when the timeline is valid. A version mismatch or an empty timeline
// stops validation early. Spawn counts are only compared when expected is
// non-nil.
func (v *Validator) Validate(tl timeline.Timeline, expected *ExpectedCounts) []Violation {
	var r report
	if tl.Version != timeline.Version {
		r.add(TimelineVersionMismatch, NoEntry, "timeline version mismatch: expected=%d, got=%d", timeline.Version, tl.Version)
		return r.out
	}
	if len(tl.Entries) == 0 {
		r.add(MissingEntries, NoEntry, "timeline has no entries")
		return r.out
	}

	if v.cfg.RequireBattleStartEnd {
		if _, ok := tl.Entries[0].Event.(timeline.BattleStart); !ok {
			r.add(MissingBattleStart, 0, "timeline does not start with BattleStart")
		}
		last := len(tl.Entries) - 1
		if _, ok := tl.Entries[last].Event.(timeline.BattleEnd); !ok {
			r.add(MissingBattleEnd, last, "timeline does not end with BattleEnd")
		}
	}

	for i := range tl.Entries {
		v.checkEntry(tl, i, &r)
	}
	if v.cfg.ValidateOutcomeCauseSeq {
		checkOutcomeCauses(tl, &r)
	}

	spawns := extractSpawns(tl, &r)
	checkSpawnCounts(spawns.counts, expected, &r)
	checkSpawnOrder(tl, spawns, &r)
	checkUnitState(tl, &r)
	if v.cfg.RequireAutoCastPairs {
		checkAutoCastPairs(tl, &r)
	}
	checkAttacks(tl, spawns, v.cfg, &r)
	checkBuffs(tl, &r)
	checkDeaths(tl, spawns, v.cfg, &r)
	checkAutoAttackCadence(tl, spawns, v.cfg, &r)
	return r.out
}

func (v *Validator) checkEntry(tl timeline.Timeline, i int, r *report) {
	e := tl.Entries[i]
	if v.cfg.RequireContiguousSeq && e.Seq != uint64(i) {
		r.add(NonContiguousSeq, i, "timeline seq %d does not match index %d", e.Seq, i)
	}
	if a, ok := e.Event.(timeline.Attack); ok && a.Kind == "" {
		r.add(AttackKindMissing, i, "Attack event is missing kind (expected Auto/Triggered)")
	}
	if v.cfg.RequireNonDecreasingTime && i > 0 && e.TimeMs < tl.Entries[i-1].TimeMs {
		r.add(TimeWentBackwards, i, "time_ms %d is less than previous time_ms %d", e.TimeMs, tl.Entries[i-1].TimeMs)
	}
	if v.cfg.RequireSpawnStatsValid {
		if s, ok := e.Event.(timeline.UnitSpawned); ok {
			if msg, bad := invalidStats(s.Stats, "spawned unit"); bad {
				r.add(SpawnStatsInvalid, i, "%s", msg)
			}
		}
	}
	if v.cfg.RequireHpDeltaConsistent {
		if hp, ok := e.Event.(timeline.HpChanged); ok {
			computed := int64(hp.HpAfter) - int64(hp.HpBefore)
			if computed != hp.Delta {
				r.add(HpDeltaMismatch, i, "hp delta mismatch: delta=%d, before=%d, after=%d, computed=%d",
					hp.Delta, hp.HpBefore, hp.HpAfter, computed)
			}
		}
	}
}

func invalidStats(s game.UnitStats, context string) (string, bool) {
	if s.CurrentHealth > s.MaxHealth {
		return fmt.Sprintf("%s has current_health %d > max_health %d", context, s.CurrentHealth, s.MaxHealth), true
	}
	if s.AttackIntervalMs == 0 {
		return fmt.Sprintf("%s has attack_interval_ms == 0", context), true
	}
	return "", false
}

func checkOutcomeCauses(tl timeline.Timeline, r *report) {
	index := make(map[uint64]int, len(tl.Entries))
	for i, e := range tl.Entries {
		if _, ok := index[e.Seq]; !ok {
			index[e.Seq] = i
		}
	}
	for i, e := range tl.Entries {
		if !timeline.IsOutcome(e.Event) {
			continue
		}
		cause, ok := e.Cause()
		if !ok {
			r.add(OutcomeMissingCauseSeq, i, "%s outcome missing cause_seq", e.Event.EventType())
			continue
		}
		ci, ok := index[cause]
		if !ok {
			r.add(OutcomeCauseSeqOutOfRange, i, "%s cause_seq %d does not reference any entry", e.Event.EventType(), cause)
			continue
		}
		if ci >= i {
			r.add(OutcomeCauseSeqInFuture, i, "%s cause_seq %d is not before entry index %d", e.Event.EventType(), cause, i)
			continue
		}
		if !timeline.IsDecision(tl.Entries[ci].Event) {
			r.add(OutcomeCauseSeqInvalidType, i, "%s cause_seq %d points to non-cause event %s",
				e.Event.EventType(), cause, tl.Entries[ci].Event.EventType())
		}
	}
}
