package combat

import (
	"fmt"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

// RunBattle resets all runtime state, rebuilds both decks and drives the
// event loop until one side is wiped out or a hard stop is hit.
func (c *BattleCore) RunBattle() (BattleResult, error) {
	c.reset()
	if err := c.buildSide(game.SidePlayer, c.player); err != nil {
		return BattleResult{}, fmt.Errorf("build player: %w", err)
	}
	if err := c.buildSide(game.SideOpponent, c.opponent); err != nil {
		return BattleResult{}, fmt.Errorf("build opponent: %w", err)
	}
	c.recordSpawns()
	c.log.Debug("battle start", "units", len(c.units), "entries", c.timeline.Len())

	for _, u := range c.sortedUnits() {
		c.queue.Push(BattleEvent{
			Kind:         EventAttack,
			TimeMs:       u.Stats.AttackIntervalMs,
			UnitID:       u.InstanceID,
			ScheduleNext: true,
		})
	}

	events := 0
	end := func(timeMs uint64, winner game.Winner) (BattleResult, error) {
		c.record(timeMs, timeline.BattleEnd{Winner: winner})
		c.log.Debug("battle end", "winner", winner, "time_ms", timeMs, "events", events, "entries", c.timeline.Len())
		return BattleResult{Winner: winner, Timeline: c.timeline, EndTimeMs: timeMs, Events: events}, nil
	}

	for {
		ev, ok := c.queue.Pop()
		if !ok {
			return end(MaxBattleTimeMs, game.WinnerDraw)
		}
		if ev.TimeMs > MaxBattleTimeMs {
			c.log.Debug("battle time ceiling reached", "next_event_ms", ev.TimeMs)
			return end(MaxBattleTimeMs, game.WinnerDraw)
		}
		if events >= c.opts.MaxEvents {
			c.log.Warn("battle event budget exhausted", "max_events", c.opts.MaxEvents, "time_ms", ev.TimeMs)
			return end(ev.TimeMs, game.WinnerDraw)
		}
		events++

		c.processEvent(ev)
		c.schedulePendingAutocasts(ev.TimeMs)

		if winner, done := c.winner(); done {
			return end(ev.TimeMs, winner)
		}
	}
}

func (c *BattleCore) winner() (game.Winner, bool) {
	var player, opponent bool
	for _, u := range c.units {
		if u.Owner == game.SidePlayer {
			player = true
		} else {
			opponent = true
		}
	}
	switch {
	case player && opponent:
		return "", false
	case player:
		return game.WinnerPlayer, true
	case opponent:
		return game.WinnerOpponent, true
	}
	return game.WinnerDraw, true
}

func (c *BattleCore) processEvent(ev BattleEvent) {
	switch ev.Kind {
	case EventAttack:
		c.handleAttack(ev)
	case EventAutoCastStart:
		c.handleAutoCastStart(ev)
	case EventAutoCastEnd:
		c.handleAutoCastEnd(ev)
	case EventApplyBuff:
		c.handleApplyBuff(ev)
	case EventBuffTick:
		c.handleBuffTick(ev)
	case EventBuffExpire:
		c.handleBuffExpire(ev)
	}
}

func (c *BattleCore) handleAttack(ev BattleEvent) {
	attacker, ok := c.units[ev.UnitID]
	if !ok || !attacker.Stats.Alive() {
		return
	}
	// casting delays a queued attack, it never cancels it
	if ev.TimeMs < attacker.CastingUntilMs {
		ev.TimeMs = attacker.CastingUntilMs
		c.queue.Push(ev)
		return
	}

	target, found := ev.TargetID.UUID, ev.TargetID.Valid && c.isAliveEnemy(ev.TargetID.UUID, attacker.Owner)
	if !found && attacker.CurrentTarget.Valid && c.isAliveEnemy(attacker.CurrentTarget.UUID, attacker.Owner) {
		target, found = attacker.CurrentTarget.UUID, true
	}
	if !found {
		target, found = c.nearestAliveEnemy(attacker)
	}

	if found {
		attacker.CurrentTarget = timeline.SomeID(target)
		kind := timeline.AttackTriggered
		if ev.ScheduleNext {
			kind = timeline.AttackAuto
		}
		var attackSeq uint64
		c.withRecordingParent(ev.CauseSeq, func() {
			attackSeq = c.record(ev.TimeMs, timeline.Attack{
				AttackerInstanceID: ev.UnitID,
				TargetInstanceID:   target,
				Kind:               kind,
			})
		})
		c.addResonance(ev.UnitID, AttackResonance, ev.TimeMs, true)
		c.withRecordingCause(attackSeq, func() {
			c.applyAttack(ev.UnitID, ev.TimeMs)
		})
	}

	if !ev.ScheduleNext {
		return
	}
	attacker, ok = c.units[ev.UnitID]
	if !ok || !attacker.Stats.Alive() {
		return
	}
	c.queue.Push(BattleEvent{
		Kind:         EventAttack,
		TimeMs:       ev.TimeMs + max(attacker.Stats.AttackIntervalMs, 1),
		UnitID:       ev.UnitID,
		ScheduleNext: true,
	})
}

func (c *BattleCore) handleApplyBuff(ev BattleEvent) {
	def, ok := LookupBuff(ev.BuffID)
	if !ok || ev.DurationMs == 0 || !ev.TargetID.Valid {
		return
	}
	if _, ok := c.units[ev.TargetID.UUID]; !ok {
		return
	}
	if caster, ok := c.units[ev.UnitID]; !ok || !caster.Stats.Alive() {
		return
	}

	var appliedSeq uint64
	c.withRecordingParent(ev.CauseSeq, func() {
		appliedSeq = c.record(ev.TimeMs, timeline.BuffApplied{
			CasterInstanceID: ev.UnitID,
			TargetInstanceID: ev.TargetID.UUID,
			BuffID:           ev.BuffID,
			DurationMs:       ev.DurationMs,
		})
	})

	key := BuffKey{CasterID: ev.UnitID, TargetID: ev.TargetID.UUID, BuffID: ev.BuffID}
	active, ok := c.buffs[key]
	if !ok {
		active = &ActiveBuff{ExpiresAtMs: ev.TimeMs + ev.DurationMs}
		c.buffs[key] = active
	}
	next := ev
	next.CauseSeq = seqPtr(appliedSeq)
	if tick, ok := active.Refresh(def, ev.TimeMs, ev.DurationMs); ok {
		next.Kind, next.TimeMs = EventBuffTick, tick
		c.queue.Push(next)
	}
	if active.ExpiresAtMs > ev.TimeMs {
		next.Kind, next.TimeMs = EventBuffExpire, active.ExpiresAtMs
		c.queue.Push(next)
	}
}

// handleBuffTick applies stacks x damage as a negative heal. Stale or
// duplicate ticks are dropped.
func (c *BattleCore) handleBuffTick(ev BattleEvent) {
	def, ok := LookupBuff(ev.BuffID)
	if !ok || def.TickIntervalMs == 0 || !ev.TargetID.Valid {
		return
	}
	key := BuffKey{CasterID: ev.UnitID, TargetID: ev.TargetID.UUID, BuffID: ev.BuffID}
	active, ok := c.buffs[key]
	if !ok || !active.Due(ev.TimeMs) {
		return
	}

	var tickSeq uint64
	c.withRecordingParent(ev.CauseSeq, func() {
		tickSeq = c.record(ev.TimeMs, timeline.BuffTick{
			CasterInstanceID: ev.UnitID,
			TargetInstanceID: ev.TargetID.UUID,
			BuffID:           ev.BuffID,
		})
	})

	if dmg := def.TickDamage(active.Stacks); dmg > 0 {
		c.withRecordingCause(tickSeq, func() {
			c.processCommands([]Command{ApplyHealCommand{
				TargetID: ev.TargetID.UUID,
				Flat:     -dmg,
				SourceID: timeline.SomeID(ev.UnitID),
			}}, ev.TimeMs)
		})
	}

	// the target may have died from this tick
	active, ok = c.buffs[key]
	if !ok {
		return
	}
	if tick, ok := active.Advance(def, ev.TimeMs); ok {
		next := ev
		next.TimeMs = tick
		next.CauseSeq = seqPtr(tickSeq)
		c.queue.Push(next)
	}
}

func (c *BattleCore) handleBuffExpire(ev BattleEvent) {
	if !ev.TargetID.Valid {
		return
	}
	key := BuffKey{CasterID: ev.UnitID, TargetID: ev.TargetID.UUID, BuffID: ev.BuffID}
	active, ok := c.buffs[key]
	if !ok || ev.TimeMs < active.ExpiresAtMs {
		return
	}
	c.withRecordingParent(ev.CauseSeq, func() {
		c.record(ev.TimeMs, timeline.BuffExpired{
			CasterInstanceID: ev.UnitID,
			TargetInstanceID: ev.TargetID.UUID,
			BuffID:           ev.BuffID,
		})
	})
	delete(c.buffs, key)
}
