// Package replay re-derives the outcomes of every recorded decision from the
// timeline's own facts and the content database, using the same combat rules
// as the engine, and reports where the recorded outcomes disagree.
package replay

import (
	"fmt"
	"slices"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

type Kind string

const (
	TimelineVersionMismatch      Kind = "TimelineVersionMismatch"
	UnknownUnitReference         Kind = "UnknownUnitReference"
	UnknownItemReference         Kind = "UnknownItemReference"
	UnknownArtifactReference     Kind = "UnknownArtifactReference"
	AttackDuringCast             Kind = "AttackDuringCast"
	AutoCastWithoutFullResonance Kind = "AutoCastWithoutFullResonance"
	ExpectedOutcomeMissing       Kind = "ExpectedOutcomeMissing"
	UnexpectedOutcome            Kind = "UnexpectedOutcome"
	OutcomeMismatch              Kind = "OutcomeMismatch"
	InvalidBuffEvent             Kind = "InvalidBuffEvent"
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
	ValidateBasicAttackOutcomes bool
	ValidateAbilityOutcomes     bool
	ValidateBuffTickOutcomes    bool
	ValidateAutoCastGating      bool
	// ForbidUnexpectedOutcomesForVerifiedCauses also flags outcomes a
	// verified decision produced that were not predicted, such as kill
	// rewards.
	ForbidUnexpectedOutcomesForVerifiedCauses bool
}

func DefaultConfig() Config {
	return Config{
		ValidateBasicAttackOutcomes: true,
		ValidateAbilityOutcomes:     true,
		ValidateBuffTickOutcomes:    true,
		ValidateAutoCastGating:      true,
	}
}

type Replayer struct {
	data *game.GameData
	cfg  Config
}

func New(data *game.GameData, cfg Config) *Replayer {
	return &Replayer{data: data, cfg: cfg}
}

// report collects violations for one replay.
type report struct {
	out []Violation
}

func (r *report) add(kind Kind, entry int, format string, args ...any) {
	r.out = append(r.out, Violation{Kind: kind, Message: fmt.Sprintf(format, args...), Entry: entry})
}

// Replay folds the timeline into a fresh shadow state and returns every
// violation found, nil when all checked outcomes match.
func (rp *Replayer) Replay(tl timeline.Timeline) []Violation {
	var r report
	if tl.Version != timeline.Version {
		r.add(TimelineVersionMismatch, NoEntry, "timeline version mismatch: expected=%d, got=%d", timeline.Version, tl.Version)
		return r.out
	}

	s := newState(rp.data, &r)
	verified := map[uint64]int{}

	for i, e := range tl.Entries {
		switch ev := e.Event.(type) {
		case timeline.UnitSpawned:
			s.spawnUnit(ev, i)
		case timeline.ItemSpawned:
			s.spawnItem(ev, i)
		case timeline.ArtifactSpawned:
			s.spawnArtifact(ev, i)
		case timeline.Attack:
			if rp.cfg.ValidateBasicAttackOutcomes {
				verified[e.Seq] = i
				s.predictAttack(e.Seq, ev)
			}
			s.onAttack(e.TimeMs, ev, i)
		case timeline.AutoCastStart:
			s.onAutoCastStart(e.TimeMs, ev, rp.cfg.ValidateAutoCastGating, i)
		case timeline.AutoCastEnd:
			s.onAutoCastEnd(e.TimeMs, ev, i)
		case timeline.AbilityCast:
			if rp.cfg.ValidateAbilityOutcomes {
				verified[e.Seq] = i
				s.predictAbility(e.Seq, e.TimeMs, ev, i)
			}
		case timeline.BuffApplied:
			s.onBuffApplied(e.TimeMs, ev, i)
		case timeline.BuffTick:
			if rp.cfg.ValidateBuffTickOutcomes {
				verified[e.Seq] = i
				s.predictBuffTick(e.Seq, ev)
			}
			s.onBuffTick(e.TimeMs, ev, i)
		case timeline.BuffExpired:
			s.onBuffExpired(e.TimeMs, ev, i)
		case timeline.HpChanged, timeline.StatChanged, timeline.UnitDied:
			rp.matchOutcome(s, e, verified, i, &r)
			s.applyOutcome(e.TimeMs, e.Event, i)
		}
	}

	causes := make([]uint64, 0, len(s.expected))
	for seq := range s.expected {
		causes = append(causes, seq)
	}
	slices.Sort(causes)
	for _, seq := range causes {
		at, ok := verified[seq]
		if !ok {
			continue
		}
		for _, want := range s.expected[seq] {
			r.add(ExpectedOutcomeMissing, at, "missing expected outcome for cause_seq %d: %s", seq, describe(want))
		}
	}
	return r.out
}

// matchOutcome removes the first prediction equal to the entry's event.
func (rp *Replayer) matchOutcome(s *state, e timeline.Entry, verified map[uint64]int, i int, r *report) {
	cause, ok := e.Cause()
	if !ok {
		return
	}
	pending := s.expected[cause]
	if at := slices.Index(pending, e.Event); at >= 0 {
		s.expected[cause] = slices.Delete(pending, at, at+1)
		if len(s.expected[cause]) == 0 {
			delete(s.expected, cause)
		}
		return
	}
	if _, checked := verified[cause]; checked && rp.cfg.ForbidUnexpectedOutcomesForVerifiedCauses {
		r.add(UnexpectedOutcome, i, "unexpected outcome for cause_seq %d: %s", cause, describe(e.Event))
	}
}

func describe(ev timeline.Event) string {
	switch e := ev.(type) {
	case timeline.HpChanged:
		return fmt.Sprintf("HpChanged(source=%s, target=%s, delta=%d, before=%d, after=%d, reason=%s)",
			nullable(e.SourceInstanceID), e.TargetInstanceID, e.Delta, e.HpBefore, e.HpAfter, e.Reason)
	case timeline.StatChanged:
		return fmt.Sprintf("StatChanged(target=%s, modifier=%s:%s %d)",
			e.TargetInstanceID, e.Modifier.Stat, e.Modifier.Kind, e.Modifier.Value)
	case timeline.UnitDied:
		return fmt.Sprintf("UnitDied(unit=%s, owner=%s, killer=%s)", e.UnitInstanceID, e.Owner, nullable(e.KillerInstanceID))
	}
	return string(ev.EventType())
}
