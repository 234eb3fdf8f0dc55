package combat

import (
	"github.com/google/uuid"

	"battlesim/internal/game"
)

type BuffKind int

const (
	BuffPeriodicDamage BuffKind = iota
)

type BuffDef struct {
	ID             game.BuffID
	Name           string
	Kind           BuffKind
	DamagePerTick  uint32
	TickIntervalMs uint64
	MaxStacks      uint8
}

var buffRegistry = map[game.BuffID]BuffDef{}

func registerBuff(def BuffDef) {
	def.ID = game.BuffIDFromName(def.Name)
	buffRegistry[def.ID] = def
}

func init() {
	registerBuff(BuffDef{
		Name:           "poison",
		Kind:           BuffPeriodicDamage,
		DamagePerTick:  2,
		TickIntervalMs: 1000,
		MaxStacks:      10,
	})
}

// LookupBuff returns the definition registered for id.
func LookupBuff(id game.BuffID) (BuffDef, bool) {
	def, ok := buffRegistry[id]
	return def, ok
}

type BuffKey struct {
	CasterID uuid.UUID
	TargetID uuid.UUID
	BuffID   game.BuffID
}

type ActiveBuff struct {
	Stacks      uint8
	ExpiresAtMs uint64
	NextTickMs  *uint64
}

// TickDamage is the damage one tick deals at the given stack count.
func (d BuffDef) TickDamage(stacks uint8) int32 {
	if d.Kind != BuffPeriodicDamage {
		return 0
	}
	return int32(d.DamagePerTick) * int32(max(stacks, 1))
}

// Refresh applies one more application to b and returns the tick time to
// schedule, if any.
func (b *ActiveBuff) Refresh(def BuffDef, nowMs, durationMs uint64) (uint64, bool) {
	b.ExpiresAtMs = max(b.ExpiresAtMs, nowMs+durationMs)
	if b.Stacks < max(def.MaxStacks, 1) {
		b.Stacks++
	}
	if def.TickIntervalMs == 0 || b.NextTickMs != nil {
		return 0, false
	}
	tick := nowMs + def.TickIntervalMs
	if tick >= b.ExpiresAtMs {
		return 0, false
	}
	b.NextTickMs = &tick
	return tick, true
}

// Due reports whether a tick at nowMs is the one currently scheduled.
func (b *ActiveBuff) Due(nowMs uint64) bool {
	return nowMs < b.ExpiresAtMs && b.NextTickMs != nil && *b.NextTickMs == nowMs
}

// Advance moves the schedule past a fired tick and returns the next one.
func (b *ActiveBuff) Advance(def BuffDef, nowMs uint64) (uint64, bool) {
	next := nowMs + def.TickIntervalMs
	if next < b.ExpiresAtMs {
		b.NextTickMs = &next
		return next, true
	}
	b.NextTickMs = nil
	return 0, false
}
