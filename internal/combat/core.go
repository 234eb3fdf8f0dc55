// Package combat is the battle engine: an event-driven scheduler that
// resolves two decks into a winner and a causally annotated timeline.
package combat

import (
	"bytes"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

const (
	MaxBattleTimeMs  uint64 = 60_000
	DefaultMaxEvents        = 1_000_000
	AttackResonance  uint32 = 10
)

type Options struct {
	Width, Height       uint8
	AllowDuplicateEquip bool
	// MaxEvents caps processed queue events; 0 means DefaultMaxEvents.
	MaxEvents int
	Logger    *slog.Logger
	Skills    *SkillBook
}

// RuntimeUnit is a unit's mutable battle state.
type RuntimeUnit struct {
	InstanceID             uuid.UUID
	Owner                  game.Side
	BaseUUID               uuid.UUID
	Stats                  game.UnitStats
	Position               game.Position
	CurrentTarget          uuid.NullUUID
	ResonanceCurrent       uint32
	ResonanceMax           uint32
	ResonanceLockMs        uint64
	ResonanceLockedUntilMs uint64
	CastingUntilMs         uint64
	PendingCast            bool
}

func (u *RuntimeUnit) Snapshot() UnitSnapshot {
	return UnitSnapshot{ID: u.InstanceID, Owner: u.Owner, BaseUUID: u.BaseUUID, Position: u.Position, Stats: u.Stats}
}

type BattleResult struct {
	Winner    game.Winner
	Timeline  timeline.Timeline
	EndTimeMs uint64
	Events    int
}

// BattleCore owns all runtime state of one battle. It is not safe for
// concurrent use; run one core per goroutine.
type BattleCore struct {
	player, opponent game.PlayerDeckInfo
	data             *game.GameData
	opts             Options
	log              *slog.Logger

	units       map[uuid.UUID]*RuntimeUnit
	instanceIDs map[uuid.UUID]bool
	graveyard   map[uuid.UUID]UnitSnapshot
	buffs       map[BuffKey]*ActiveBuff
	triggers    *TriggerIndex
	field       *Field

	queue         EventQueue
	castScheduled map[uuid.UUID]bool

	timeline   timeline.Timeline
	causeStack []uint64

	deaths    *DeathHandler
	abilities *AbilityExecutor
}

func New(player, opponent game.PlayerDeckInfo, data *game.GameData, opts Options) *BattleCore {
	if opts.Width == 0 {
		opts.Width = 8
	}
	if opts.Height == 0 {
		opts.Height = 8
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &BattleCore{
		player:    player,
		opponent:  opponent,
		data:      data,
		opts:      opts,
		log:       log,
		deaths:    NewDeathHandler(),
		abilities: NewAbilityExecutor(opts.Skills),
	}
	c.reset()
	return c
}

func (c *BattleCore) reset() {
	c.units = map[uuid.UUID]*RuntimeUnit{}
	c.instanceIDs = map[uuid.UUID]bool{}
	c.graveyard = map[uuid.UUID]UnitSnapshot{}
	c.buffs = map[BuffKey]*ActiveBuff{}
	c.triggers = NewTriggerIndex(c.data)
	c.field = NewField(c.opts.Width, c.opts.Height)
	c.queue.Clear()
	c.castScheduled = map[uuid.UUID]bool{}
	c.timeline = timeline.New()
	c.causeStack = c.causeStack[:0]
	c.deaths.Reset()
	c.abilities.ResetCooldowns()
}

// Unit returns a copy of a live unit.
func (c *BattleCore) Unit(id uuid.UUID) (RuntimeUnit, bool) {
	u, ok := c.units[id]
	if !ok {
		return RuntimeUnit{}, false
	}
	return *u, true
}

// Units returns copies of all live units ordered by instance id.
func (c *BattleCore) Units() []RuntimeUnit {
	out := make([]RuntimeUnit, 0, len(c.units))
	for _, u := range c.sortedUnits() {
		out = append(out, *u)
	}
	return out
}

func (c *BattleCore) Graveyard(id uuid.UUID) (UnitSnapshot, bool) {
	s, ok := c.graveyard[id]
	return s, ok
}

func (c *BattleCore) Timeline() timeline.Timeline { return c.timeline }

func (c *BattleCore) sortedUnits() []*RuntimeUnit {
	out := make([]*RuntimeUnit, 0, len(c.units))
	for _, u := range c.units {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b *RuntimeUnit) int {
		return bytes.Compare(a.InstanceID[:], b.InstanceID[:])
	})
	return out
}

// aliveSnapshots is the executor's view of the roster, ordered by id.
func (c *BattleCore) aliveSnapshots() []UnitSnapshot {
	var out []UnitSnapshot
	for _, u := range c.sortedUnits() {
		if u.Stats.Alive() {
			out = append(out, u.Snapshot())
		}
	}
	return out
}

func (c *BattleCore) isAliveEnemy(id uuid.UUID, owner game.Side) bool {
	u, ok := c.units[id]
	return ok && u.Owner != owner && u.Stats.Alive()
}

func (c *BattleCore) nearestAliveEnemy(from *RuntimeUnit) (uuid.UUID, bool) {
	var enemies []UnitSnapshot
	for _, u := range c.units {
		if u.Owner != from.Owner && u.Stats.Alive() {
			enemies = append(enemies, u.Snapshot())
		}
	}
	return nearest(from.Position, enemies)
}

// addResonance grants resonance unless the unit is locked or casting. Filling
// the meter flags a pending cast when allowed.
func (c *BattleCore) addResonance(id uuid.UUID, amount uint32, nowMs uint64, allowAutocast bool) {
	if amount == 0 {
		return
	}
	u, ok := c.units[id]
	if !ok || !u.Stats.Alive() {
		return
	}
	GainResonance(&u.ResonanceCurrent, u.ResonanceMax, &u.PendingCast, ResonanceGate{
		NowMs:          nowMs,
		LockedUntilMs:  u.ResonanceLockedUntilMs,
		CastingUntilMs: u.CastingUntilMs,
		AllowAutocast:  allowAutocast,
	}, amount)
}

// ResonanceGate carries the window checks for one resonance gain.
type ResonanceGate struct {
	NowMs          uint64
	LockedUntilMs  uint64
	CastingUntilMs uint64
	AllowAutocast  bool
}

// GainResonance is the resonance rule shared by the engine and the replayer.
func GainResonance(current *uint32, maxResonance uint32, pending *bool, gate ResonanceGate, amount uint32) {
	if gate.NowMs < gate.LockedUntilMs || gate.NowMs < gate.CastingUntilMs {
		return
	}
	m := max(maxResonance, 1)
	before := min(*current, m)
	after := before + amount
	if after < before || after > m {
		after = m
	}
	*current = after
	if gate.AllowAutocast && before < m && after == m {
		*pending = true
	}
}

// DamageResonance is the gain for losing hp from before to after.
func DamageResonance(before, after uint32) uint32 {
	if after >= before {
		return 0
	}
	return (before - after) / 10
}
