package combat

import (
	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

type DeadUnit struct {
	UnitID   uuid.UUID
	KillerID uuid.NullUUID
	Owner    game.Side
}

type DeathProcessResult struct {
	Removed  []DeadUnit
	Commands []Command
}

// DeathHandler resolves death cascades. Each unit is processed at most once
// per battle.
type DeathHandler struct {
	pending   []DeadUnit
	processed map[uuid.UUID]bool
}

func NewDeathHandler() *DeathHandler {
	return &DeathHandler{processed: map[uuid.UUID]bool{}}
}

func (h *DeathHandler) EnqueueDeath(d DeadUnit) {
	if h.processed[d.UnitID] {
		return
	}
	h.pending = append(h.pending, d)
}

func (h *DeathHandler) HasPending() bool { return len(h.pending) > 0 }

// Pending returns a copy of the queue in FIFO order.
func (h *DeathHandler) Pending() []DeadUnit {
	out := make([]DeadUnit, len(h.pending))
	copy(out, h.pending)
	return out
}

func (h *DeathHandler) Reset() {
	h.pending = nil
	clear(h.processed)
}

// EffectLookup returns the effects a unit carries for one trigger.
type EffectLookup func(unitID uuid.UUID) []game.Effect

// AllyLookup lists living allies of a dead unit. Implementations must leave
// out units already queued for death in the same batch.
type AllyLookup func(dead uuid.UUID, side game.Side) []uuid.UUID

// ProcessAllDeaths drains the queue. A unit is marked processed before its
// triggers are evaluated so re-entrant enqueues are ignored. OnDeath effects
// are inert.
func (h *DeathHandler) ProcessAllDeaths(onDeath, onKill, onAllyDeath EffectLookup, allies AllyLookup) DeathProcessResult {
	var res DeathProcessResult
	for len(h.pending) > 0 {
		dead := h.pending[0]
		h.pending = h.pending[1:]
		if h.processed[dead.UnitID] {
			continue
		}
		h.processed[dead.UnitID] = true

		// dead units don't act
		_ = onDeath(dead.UnitID)

		if dead.KillerID.Valid {
			killer := dead.KillerID.UUID
			for _, fx := range onKill(killer) {
				switch fx.Kind {
				case game.EffectModifier:
					res.Commands = append(res.Commands, ApplyModifierCommand{TargetID: killer, Modifier: fx.Modifier})
				case game.EffectAbility:
					res.Commands = append(res.Commands, ExecuteAbilityCommand{
						AbilityID: fx.Ability,
						CasterID:  killer,
						TargetID:  timeline.SomeID(dead.UnitID),
					})
				}
			}
		}

		for _, ally := range allies(dead.UnitID, dead.Owner) {
			if h.processed[ally] {
				continue
			}
			for _, fx := range onAllyDeath(ally) {
				switch fx.Kind {
				case game.EffectModifier:
					res.Commands = append(res.Commands, ApplyModifierCommand{TargetID: ally, Modifier: fx.Modifier})
				case game.EffectAbility:
					res.Commands = append(res.Commands, ExecuteAbilityCommand{AbilityID: fx.Ability, CasterID: ally})
				}
			}
		}

		res.Removed = append(res.Removed, dead)
	}
	return res
}
