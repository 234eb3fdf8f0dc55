package combat

import (
	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

// applyAttack resolves a basic hit from the attacker on its current target.
func (c *BattleCore) applyAttack(attackerID uuid.UUID, nowMs uint64) {
	attacker, ok := c.units[attackerID]
	if !ok || !attacker.Stats.Alive() || !attacker.CurrentTarget.Valid {
		return
	}
	targetID := attacker.CurrentTarget.UUID
	target, ok := c.units[targetID]
	if !ok || !target.Stats.Alive() || target.Owner == attacker.Owner {
		return
	}

	result := CalculateDamage(DamageRequest{
		Source:     DamageBasicAttack,
		AttackerID: attackerID,
		TargetID:   targetID,
		BaseDamage: attacker.Stats.Attack,
		TimeMs:     nowMs,
	}, DamageContext{
		AttackerSide:    attacker.Owner,
		TargetSide:      target.Owner,
		AttackerAttack:  attacker.Stats.Attack,
		TargetDefense:   target.Stats.Defense,
		TargetCurrentHP: target.Stats.CurrentHealth,
		TargetMaxHP:     target.Stats.MaxHealth,
		OnAttackEffects: c.triggers.CollectAllTriggers(attackerID, game.TriggerOnAttack),
		OnHitEffects:    c.triggers.CollectAllTriggers(targetID, game.TriggerOnHit),
	})

	hpBefore := target.Stats.CurrentHealth
	hpAfter, _ := ApplyDamageToUnit(&target.Stats, result.FinalDamage)
	c.record(nowMs, timeline.HpChanged{
		SourceInstanceID: timeline.SomeID(attackerID),
		TargetInstanceID: targetID,
		Delta:            int64(hpAfter) - int64(hpBefore),
		HpBefore:         hpBefore,
		HpAfter:          hpAfter,
		Reason:           timeline.ReasonBasicAttack,
	})
	c.addResonance(targetID, DamageResonance(hpBefore, hpAfter), nowMs, hpAfter > 0)

	c.processCommands(result.TriggeredCommands, nowMs)
}

// processCommands is the only place commands mutate state. Pending deaths are
// drained before it returns.
func (c *BattleCore) processCommands(commands []Command, nowMs uint64) {
	for _, cmd := range commands {
		switch cmd := cmd.(type) {
		case UnitDiedCommand:
			if u, ok := c.units[cmd.UnitID]; ok {
				c.deaths.EnqueueDeath(DeadUnit{UnitID: cmd.UnitID, KillerID: cmd.KillerID, Owner: u.Owner})
			}
		case ExecuteAbilityCommand:
			c.executeAbility(cmd.AbilityID, cmd.CasterID, cmd.TargetID, nowMs)
		case ApplyModifierCommand:
			c.applyModifier(cmd, nowMs)
		case ApplyHealCommand:
			c.applyHeal(cmd, nowMs)
		case ScheduleAttackCommand:
			c.queue.Push(BattleEvent{
				Kind:     EventAttack,
				TimeMs:   nowMs + cmd.DelayMs,
				UnitID:   cmd.AttackerID,
				TargetID: cmd.TargetID,
				CauseSeq: c.currentCause(),
			})
		case ApplyBuffCommand:
			caster, ok := c.units[cmd.CasterID]
			if !ok || !caster.Stats.Alive() {
				continue
			}
			c.queue.Push(BattleEvent{
				Kind:       EventApplyBuff,
				TimeMs:     nowMs,
				UnitID:     cmd.CasterID,
				TargetID:   timeline.SomeID(cmd.TargetID),
				BuffID:     cmd.BuffID,
				DurationMs: cmd.DurationMs,
				CauseSeq:   c.currentCause(),
			})
		}
	}
	c.processPendingDeaths(nowMs)
}

func (c *BattleCore) currentCause() *uint64 {
	if n := len(c.causeStack); n > 0 {
		return seqPtr(c.causeStack[n-1])
	}
	return nil
}

// executeAbility runs the executor and, when it fires, records AbilityCast
// and applies its commands under that entry. A hint at a dead or removed unit
// is cleared before the executor sees it.
func (c *BattleCore) executeAbility(ability game.AbilityID, casterID uuid.UUID, target uuid.NullUUID, nowMs uint64) bool {
	caster, ok := c.units[casterID]
	if !ok || !caster.Stats.Alive() {
		return false
	}
	if target.Valid {
		if u, ok := c.units[target.UUID]; !ok || !u.Stats.Alive() {
			target = uuid.NullUUID{}
		}
	}
	result := c.abilities.Execute(AbilityRequest{
		AbilityID: ability,
		CasterID:  casterID,
		TargetID:  target,
		TimeMs:    nowMs,
	}, caster.Snapshot(), c.aliveSnapshots())
	if !result.Executed {
		return false
	}
	castSeq := c.record(nowMs, timeline.AbilityCast{AbilityID: ability, CasterInstanceID: casterID, TargetInstanceID: target})
	if len(result.Commands) > 0 {
		c.withRecordingCause(castSeq, func() {
			c.processCommands(result.Commands, nowMs)
		})
	}
	return true
}

func (c *BattleCore) applyModifier(cmd ApplyModifierCommand, nowMs uint64) {
	u, ok := c.units[cmd.TargetID]
	if !ok || !u.Stats.Alive() {
		return
	}
	before := u.Stats
	u.Stats.ApplyModifier(cmd.Modifier)
	c.record(nowMs, timeline.StatChanged{
		TargetInstanceID: cmd.TargetID,
		Modifier:         cmd.Modifier,
		StatsBefore:      before,
		StatsAfter:       u.Stats,
	})
	// a max health cut can leave nothing
	if !u.Stats.Alive() {
		c.deaths.EnqueueDeath(DeadUnit{UnitID: cmd.TargetID, Owner: u.Owner})
	}
}

// applyHeal handles heals and command damage alike. A unit brought to zero
// is queued for death crediting the source.
func (c *BattleCore) applyHeal(cmd ApplyHealCommand, nowMs uint64) {
	u, ok := c.units[cmd.TargetID]
	if !ok || !u.Stats.Alive() {
		return
	}
	hpBefore := u.Stats.CurrentHealth
	u.Stats.CurrentHealth = HealResult(u.Stats, cmd.Flat, cmd.Percent)
	hpAfter := u.Stats.CurrentHealth
	if hpAfter == 0 {
		c.deaths.EnqueueDeath(DeadUnit{UnitID: cmd.TargetID, KillerID: cmd.SourceID, Owner: u.Owner})
	}
	if hpAfter == hpBefore {
		return
	}
	c.record(nowMs, timeline.HpChanged{
		SourceInstanceID: cmd.SourceID,
		TargetInstanceID: cmd.TargetID,
		Delta:            int64(hpAfter) - int64(hpBefore),
		HpBefore:         hpBefore,
		HpAfter:          hpAfter,
		Reason:           timeline.ReasonCommand,
	})
	c.addResonance(cmd.TargetID, DamageResonance(hpBefore, hpAfter), nowMs, hpAfter > 0)
}
