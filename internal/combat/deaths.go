package combat

import (
	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

// processPendingDeaths drains the death queue until no follow-up command
// queues another death.
func (c *BattleCore) processPendingDeaths(nowMs uint64) {
	for c.deaths.HasPending() {
		pending := map[uuid.UUID]bool{}
		for _, d := range c.deaths.Pending() {
			pending[d.UnitID] = true
		}

		lookup := func(trigger game.TriggerType) EffectLookup {
			return func(id uuid.UUID) []game.Effect { return c.triggers.CollectAllTriggers(id, trigger) }
		}
		allies := func(dead uuid.UUID, side game.Side) []uuid.UUID {
			var out []uuid.UUID
			for _, u := range c.sortedUnits() {
				if u.InstanceID == dead || u.Owner != side || !u.Stats.Alive() || pending[u.InstanceID] {
					continue
				}
				out = append(out, u.InstanceID)
			}
			return out
		}

		result := c.deaths.ProcessAllDeaths(
			lookup(game.TriggerOnDeath),
			lookup(game.TriggerOnKill),
			lookup(game.TriggerOnAllyDeath),
			allies,
		)
		for _, dead := range result.Removed {
			c.removeDeadUnit(dead, nowMs)
		}
		if len(result.Commands) > 0 {
			c.processCommands(result.Commands, nowMs)
		}
	}
}

// removeDeadUnit moves the unit to the graveyard, drops its items, every buff
// it cast or carried and every reference targeting it, then records UnitDied.
func (c *BattleCore) removeDeadUnit(dead DeadUnit, nowMs uint64) {
	u, ok := c.units[dead.UnitID]
	if !ok {
		return
	}
	c.graveyard[dead.UnitID] = u.Snapshot()
	for key := range c.buffs {
		if key.TargetID == dead.UnitID || key.CasterID == dead.UnitID {
			delete(c.buffs, key)
		}
	}
	c.record(nowMs, timeline.UnitDied{
		UnitInstanceID:   dead.UnitID,
		Owner:            dead.Owner,
		KillerInstanceID: dead.KillerID,
	})
	delete(c.units, dead.UnitID)
	delete(c.castScheduled, dead.UnitID)
	c.field.Remove(dead.UnitID)
	c.triggers.RemoveUnit(dead.UnitID)
	for _, other := range c.units {
		if other.CurrentTarget.Valid && other.CurrentTarget.UUID == dead.UnitID {
			other.CurrentTarget = uuid.NullUUID{}
		}
	}
}
