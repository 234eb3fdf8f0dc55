package combat

import (
	"github.com/google/uuid"

	"battlesim/internal/timeline"
)

// schedulePendingAutocasts queues an AutoCastStart for every living unit whose
// resonance filled, in instance id order.
func (c *BattleCore) schedulePendingAutocasts(nowMs uint64) {
	for _, u := range c.sortedUnits() {
		if !u.PendingCast || !u.Stats.Alive() || nowMs < u.CastingUntilMs || c.castScheduled[u.InstanceID] {
			continue
		}
		c.castScheduled[u.InstanceID] = true
		c.queue.Push(BattleEvent{Kind: EventAutoCastStart, TimeMs: nowMs, UnitID: u.InstanceID})
	}
}

// handleAutoCastStart opens the one millisecond cast window, fires the
// unit's first ability and schedules the matching AutoCastEnd.
func (c *BattleCore) handleAutoCastStart(ev BattleEvent) {
	delete(c.castScheduled, ev.UnitID)
	caster, ok := c.units[ev.UnitID]
	if !ok || !caster.Stats.Alive() {
		return
	}

	meta, _ := c.data.Abnormality(caster.BaseUUID)
	ability, hasAbility := meta.FirstAbility()

	castEnd := ev.TimeMs + 1
	caster.CastingUntilMs = castEnd
	caster.PendingCast = false

	var hint uuid.NullUUID
	if caster.CurrentTarget.Valid && c.isAliveEnemy(caster.CurrentTarget.UUID, caster.Owner) {
		hint = caster.CurrentTarget
	}

	var startSeq uint64
	c.withRecordingParent(ev.CauseSeq, func() {
		startSeq = c.record(ev.TimeMs, timeline.AutoCastStart{
			CasterInstanceID: ev.UnitID,
			AbilityID:        ability,
			TargetInstanceID: hint,
		})
	})

	c.withRecordingCause(startSeq, func() {
		if hasAbility {
			c.executeAbility(ability, ev.UnitID, hint, ev.TimeMs)
			c.schedulePendingAutocasts(ev.TimeMs)
		}
		c.queue.Push(BattleEvent{
			Kind:     EventAutoCastEnd,
			TimeMs:   castEnd,
			UnitID:   ev.UnitID,
			CauseSeq: seqPtr(startSeq),
		})
	})
}

// handleAutoCastEnd empties resonance and locks further gain. A caster that
// died mid-cast leaves no entry.
func (c *BattleCore) handleAutoCastEnd(ev BattleEvent) {
	caster, ok := c.units[ev.UnitID]
	if !ok || !caster.Stats.Alive() {
		return
	}
	c.withRecordingParent(ev.CauseSeq, func() {
		c.record(ev.TimeMs, timeline.AutoCastEnd{CasterInstanceID: ev.UnitID})
	})
	caster.ResonanceCurrent = 0
	caster.ResonanceLockedUntilMs = ev.TimeMs + caster.ResonanceLockMs
	caster.CastingUntilMs = 0
	caster.PendingCast = false
}
