package replay

import (
	"bytes"
	"slices"

	"github.com/google/uuid"

	"battlesim/internal/combat"
	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

// shadowUnit is the replayer's view of one living unit.
type shadowUnit struct {
	id            uuid.UUID
	owner         game.Side
	base          uuid.UUID
	pos           game.Position
	stats         game.UnitStats
	target        uuid.NullUUID
	resonance     uint32
	resonanceMax  uint32
	lockMs        uint64
	lockedUntilMs uint64
	castingUntil  uint64
	pendingCast   bool
}

func (u *shadowUnit) snapshot() combat.UnitSnapshot {
	return combat.UnitSnapshot{ID: u.id, Owner: u.owner, BaseUUID: u.base, Position: u.pos, Stats: u.stats}
}

type state struct {
	data      *game.GameData
	r         *report
	units     map[uuid.UUID]*shadowUnit
	triggers  *combat.TriggerIndex
	abilities *combat.AbilityExecutor
	buffs     map[combat.BuffKey]*combat.ActiveBuff
	// expected holds the outcomes still owed by each decision seq.
	expected map[uint64][]timeline.Event
}

func newState(data *game.GameData, r *report) *state {
	return &state{
		data:      data,
		r:         r,
		units:     map[uuid.UUID]*shadowUnit{},
		triggers:  combat.NewTriggerIndex(data),
		abilities: combat.NewAbilityExecutor(nil),
		buffs:     map[combat.BuffKey]*combat.ActiveBuff{},
		expected:  map[uint64][]timeline.Event{},
	}
}

func (s *state) expect(cause uint64, ev timeline.Event) {
	s.expected[cause] = append(s.expected[cause], ev)
}

func (s *state) spawnUnit(ev timeline.UnitSpawned, i int) {
	u := &shadowUnit{
		id:           ev.UnitInstanceID,
		owner:        ev.Owner,
		base:         ev.BaseUUID,
		pos:          ev.Position,
		stats:        ev.Stats,
		resonanceMax: game.DefaultResonanceMax,
		lockMs:       game.DefaultResonanceLockMs,
	}
	if meta, ok := s.data.Abnormality(ev.BaseUUID); ok {
		u.resonanceMax = max(meta.ResonanceMax, 1)
		u.lockMs = meta.ResonanceLockMs
		u.resonance = min(meta.ResonanceStart, u.resonanceMax)
	} else {
		s.r.add(UnknownUnitReference, i, "unit %s spawned from unknown abnormality %s", ev.UnitInstanceID, ev.BaseUUID)
	}
	s.units[u.id] = u
	s.triggers.AddUnit(u.id, u.owner)
}

func (s *state) spawnItem(ev timeline.ItemSpawned, i int) {
	if _, ok := s.units[ev.OwnerUnitInstanceID]; !ok {
		s.r.add(UnknownUnitReference, i, "item %s references unknown owner unit %s", ev.ItemInstanceID, ev.OwnerUnitInstanceID)
	}
	if _, ok := s.data.Equipment(ev.BaseUUID); !ok {
		s.r.add(UnknownItemReference, i, "item %s spawned from unknown equipment %s", ev.ItemInstanceID, ev.BaseUUID)
	}
	if s.triggers.HasItem(ev.ItemInstanceID) {
		s.r.add(UnknownItemReference, i, "item %s spawned twice", ev.ItemInstanceID)
		return
	}
	s.triggers.AddItem(combat.RuntimeItem{
		InstanceID:  ev.ItemInstanceID,
		Owner:       ev.Owner,
		OwnerUnitID: ev.OwnerUnitInstanceID,
		BaseUUID:    ev.BaseUUID,
	})
}

func (s *state) spawnArtifact(ev timeline.ArtifactSpawned, i int) {
	if _, ok := s.data.Artifact(ev.BaseUUID); !ok {
		s.r.add(UnknownArtifactReference, i, "artifact %s spawned from unknown content %s", ev.ArtifactInstanceID, ev.BaseUUID)
	}
	if s.triggers.HasArtifact(ev.ArtifactInstanceID) {
		s.r.add(UnknownArtifactReference, i, "artifact %s spawned twice", ev.ArtifactInstanceID)
		return
	}
	s.triggers.AddArtifact(combat.RuntimeArtifact{InstanceID: ev.ArtifactInstanceID, Owner: ev.Owner, BaseUUID: ev.BaseUUID})
}

func (s *state) isAliveEnemy(id uuid.UUID, owner game.Side) bool {
	u, ok := s.units[id]
	return ok && u.owner != owner && u.stats.Alive()
}

func (s *state) addResonance(id uuid.UUID, amount uint32, nowMs uint64, allowAutocast bool) {
	u, ok := s.units[id]
	if amount == 0 || !ok || !u.stats.Alive() {
		return
	}
	combat.GainResonance(&u.resonance, u.resonanceMax, &u.pendingCast, combat.ResonanceGate{
		NowMs:          nowMs,
		LockedUntilMs:  u.lockedUntilMs,
		CastingUntilMs: u.castingUntil,
		AllowAutocast:  allowAutocast,
	}, amount)
}

// aliveSnapshots mirrors the engine's executor input: living units ordered
// by instance id.
func (s *state) aliveSnapshots() []combat.UnitSnapshot {
	var out []combat.UnitSnapshot
	for _, u := range s.units {
		if u.stats.Alive() {
			out = append(out, u.snapshot())
		}
	}
	slices.SortFunc(out, func(a, b combat.UnitSnapshot) int { return bytes.Compare(a.ID[:], b.ID[:]) })
	return out
}

func (s *state) onAttack(nowMs uint64, ev timeline.Attack, i int) {
	attacker, ok := s.units[ev.AttackerInstanceID]
	if !ok {
		s.r.add(UnknownUnitReference, i, "attack references unknown attacker %s", ev.AttackerInstanceID)
		return
	}
	if _, ok := s.units[ev.TargetInstanceID]; !ok {
		s.r.add(UnknownUnitReference, i, "attack references unknown target %s", ev.TargetInstanceID)
	}
	if nowMs < attacker.castingUntil {
		s.r.add(AttackDuringCast, i, "attack at %dms occurs before casting_until_ms %d", nowMs, attacker.castingUntil)
	}
	attacker.target = timeline.SomeID(ev.TargetInstanceID)
	s.addResonance(attacker.id, combat.AttackResonance, nowMs, true)
}

// predictAttack owes the basic hit and, when it is lethal, the kill.
func (s *state) predictAttack(cause uint64, ev timeline.Attack) {
	attacker, ok := s.units[ev.AttackerInstanceID]
	if !ok {
		return
	}
	target, ok := s.units[ev.TargetInstanceID]
	if !ok {
		return
	}
	if !attacker.stats.Alive() || !target.stats.Alive() || attacker.owner == target.owner {
		return
	}

	result := combat.CalculateDamage(combat.DamageRequest{
		Source:     combat.DamageBasicAttack,
		AttackerID: attacker.id,
		TargetID:   target.id,
		BaseDamage: attacker.stats.Attack,
	}, combat.DamageContext{
		AttackerSide:    attacker.owner,
		TargetSide:      target.owner,
		AttackerAttack:  attacker.stats.Attack,
		TargetDefense:   target.stats.Defense,
		TargetCurrentHP: target.stats.CurrentHealth,
		TargetMaxHP:     target.stats.MaxHealth,
		OnAttackEffects: s.triggers.CollectAllTriggers(attacker.id, game.TriggerOnAttack),
		OnHitEffects:    s.triggers.CollectAllTriggers(target.id, game.TriggerOnHit),
	})

	before := target.stats.CurrentHealth
	after := result.TargetRemainingHP
	s.expect(cause, timeline.HpChanged{
		SourceInstanceID: timeline.SomeID(attacker.id),
		TargetInstanceID: target.id,
		Delta:            int64(after) - int64(before),
		HpBefore:         before,
		HpAfter:          after,
		Reason:           timeline.ReasonBasicAttack,
	})
	if result.TargetKilled {
		s.expect(cause, timeline.UnitDied{
			UnitInstanceID:   target.id,
			Owner:            target.owner,
			KillerInstanceID: timeline.SomeID(attacker.id),
		})
	}
}

func (s *state) onAutoCastStart(nowMs uint64, ev timeline.AutoCastStart, gating bool, i int) {
	caster, ok := s.units[ev.CasterInstanceID]
	if !ok {
		s.r.add(UnknownUnitReference, i, "AutoCastStart references unknown caster %s", ev.CasterInstanceID)
		return
	}
	if gating {
		full := max(caster.resonanceMax, 1)
		if caster.resonance < full && !caster.pendingCast {
			s.r.add(AutoCastWithoutFullResonance, i, "AutoCastStart for %s without full resonance (current=%d, max=%d)",
				caster.id, caster.resonance, full)
		}
		meta, _ := s.data.Abnormality(caster.base)
		want, _ := meta.FirstAbility()
		if want != ev.AbilityID {
			s.r.add(OutcomeMismatch, i, "AutoCastStart ability mismatch for %s: expected %q, got %q", caster.id, want, ev.AbilityID)
		}
		var hint uuid.NullUUID
		if caster.target.Valid && s.isAliveEnemy(caster.target.UUID, caster.owner) {
			hint = caster.target
		}
		if hint != ev.TargetInstanceID {
			s.r.add(OutcomeMismatch, i, "AutoCastStart target mismatch for %s: expected %s, got %s",
				caster.id, nullable(hint), nullable(ev.TargetInstanceID))
		}
	}
	caster.pendingCast = false
	caster.castingUntil = nowMs + 1
}

func (s *state) onAutoCastEnd(nowMs uint64, ev timeline.AutoCastEnd, i int) {
	caster, ok := s.units[ev.CasterInstanceID]
	if !ok {
		s.r.add(UnknownUnitReference, i, "AutoCastEnd references unknown caster %s", ev.CasterInstanceID)
		return
	}
	caster.resonance = 0
	caster.lockedUntilMs = nowMs + caster.lockMs
	caster.castingUntil = 0
	caster.pendingCast = false
}

// predictAbility runs the ability through a private executor against the
// folded roster and owes each heal, damage and modifier it would apply.
func (s *state) predictAbility(cause, nowMs uint64, ev timeline.AbilityCast, i int) {
	caster, ok := s.units[ev.CasterInstanceID]
	if !ok {
		s.r.add(UnknownUnitReference, i, "AbilityCast references unknown caster %s", ev.CasterInstanceID)
		return
	}
	if !caster.stats.Alive() {
		return
	}
	result := s.abilities.Execute(combat.AbilityRequest{
		AbilityID: ev.AbilityID,
		CasterID:  caster.id,
		TargetID:  ev.TargetInstanceID,
		TimeMs:    nowMs,
	}, caster.snapshot(), s.aliveSnapshots())
	if !result.Executed {
		s.r.add(OutcomeMismatch, i, "AbilityCast %s for %s was recorded but the executor declined it", ev.AbilityID, caster.id)
		return
	}

	sh := s.shadow()
	for _, cmd := range result.Commands {
		switch cmd := cmd.(type) {
		case combat.ApplyHealCommand:
			if out, ok := sh.heal(cmd); ok {
				s.expect(cause, out)
			}
		case combat.ApplyModifierCommand:
			if out, ok := sh.modify(cmd); ok {
				s.expect(cause, out)
			}
		}
	}
	sh.expectDeaths(s, cause)
}

// predictBuffTick owes stacks x damage-per-tick as a negative heal from the
// caster.
func (s *state) predictBuffTick(cause uint64, ev timeline.BuffTick) {
	def, ok := combat.LookupBuff(ev.BuffID)
	if !ok {
		return
	}
	b, ok := s.buffs[combat.BuffKey{CasterID: ev.CasterInstanceID, TargetID: ev.TargetInstanceID, BuffID: ev.BuffID}]
	if !ok {
		return
	}
	dmg := def.TickDamage(b.Stacks)
	if dmg <= 0 {
		return
	}
	sh := s.shadow()
	if out, ok := sh.heal(combat.ApplyHealCommand{
		TargetID: ev.TargetInstanceID,
		Flat:     -dmg,
		SourceID: timeline.SomeID(ev.CasterInstanceID),
	}); ok {
		s.expect(cause, out)
	}
	sh.expectDeaths(s, cause)
}

func (s *state) onBuffApplied(nowMs uint64, ev timeline.BuffApplied, i int) {
	def, ok := combat.LookupBuff(ev.BuffID)
	if !ok {
		s.r.add(InvalidBuffEvent, i, "BuffApplied with unknown buff_id %d", uint64(ev.BuffID))
		return
	}
	if ev.DurationMs == 0 {
		s.r.add(InvalidBuffEvent, i, "BuffApplied with duration_ms == 0")
		return
	}
	if _, ok := s.units[ev.TargetInstanceID]; !ok {
		s.r.add(UnknownUnitReference, i, "BuffApplied references unknown target %s", ev.TargetInstanceID)
		return
	}
	key := combat.BuffKey{CasterID: ev.CasterInstanceID, TargetID: ev.TargetInstanceID, BuffID: ev.BuffID}
	b, ok := s.buffs[key]
	if !ok {
		b = &combat.ActiveBuff{ExpiresAtMs: nowMs + ev.DurationMs}
		s.buffs[key] = b
	}
	b.Refresh(def, nowMs, ev.DurationMs)
}

func (s *state) onBuffTick(nowMs uint64, ev timeline.BuffTick, i int) {
	def, ok := combat.LookupBuff(ev.BuffID)
	if !ok || def.TickIntervalMs == 0 {
		s.r.add(InvalidBuffEvent, i, "BuffTick for buff_id %d which does not tick", uint64(ev.BuffID))
		return
	}
	b, ok := s.buffs[combat.BuffKey{CasterID: ev.CasterInstanceID, TargetID: ev.TargetInstanceID, BuffID: ev.BuffID}]
	if !ok {
		s.r.add(InvalidBuffEvent, i, "BuffTick without an active buff (caster=%s target=%s)", ev.CasterInstanceID, ev.TargetInstanceID)
		return
	}
	if !b.Due(nowMs) {
		s.r.add(InvalidBuffEvent, i, "BuffTick at %dms does not match the scheduled tick", nowMs)
	}
	b.Advance(def, nowMs)
}

func (s *state) onBuffExpired(nowMs uint64, ev timeline.BuffExpired, i int) {
	key := combat.BuffKey{CasterID: ev.CasterInstanceID, TargetID: ev.TargetInstanceID, BuffID: ev.BuffID}
	b, ok := s.buffs[key]
	if !ok {
		s.r.add(InvalidBuffEvent, i, "BuffExpired without an active buff (caster=%s target=%s)", ev.CasterInstanceID, ev.TargetInstanceID)
		return
	}
	if nowMs < b.ExpiresAtMs {
		s.r.add(InvalidBuffEvent, i, "BuffExpired at %dms before expires_at_ms %d", nowMs, b.ExpiresAtMs)
		return
	}
	delete(s.buffs, key)
}

// applyOutcome folds a recorded outcome into the state after checking its
// before-values.
func (s *state) applyOutcome(nowMs uint64, ev timeline.Event, i int) {
	switch e := ev.(type) {
	case timeline.HpChanged:
		u, ok := s.units[e.TargetInstanceID]
		if !ok {
			s.r.add(UnknownUnitReference, i, "HpChanged references unknown target %s", e.TargetInstanceID)
			return
		}
		if u.stats.CurrentHealth != e.HpBefore {
			s.r.add(OutcomeMismatch, i, "HpChanged hp_before mismatch for %s: state=%d, event=%d", u.id, u.stats.CurrentHealth, e.HpBefore)
		}
		u.stats.CurrentHealth = e.HpAfter
		s.addResonance(u.id, combat.DamageResonance(e.HpBefore, e.HpAfter), nowMs, e.HpAfter > 0)
	case timeline.StatChanged:
		u, ok := s.units[e.TargetInstanceID]
		if !ok {
			s.r.add(UnknownUnitReference, i, "StatChanged references unknown target %s", e.TargetInstanceID)
			return
		}
		if u.stats != e.StatsBefore {
			s.r.add(OutcomeMismatch, i, "StatChanged stats_before mismatch for %s", u.id)
		}
		u.stats = e.StatsAfter
	case timeline.UnitDied:
		if _, ok := s.units[e.UnitInstanceID]; !ok {
			s.r.add(UnknownUnitReference, i, "UnitDied references unknown unit %s", e.UnitInstanceID)
			return
		}
		delete(s.units, e.UnitInstanceID)
		s.triggers.RemoveUnit(e.UnitInstanceID)
		for key := range s.buffs {
			if key.TargetID == e.UnitInstanceID || key.CasterID == e.UnitInstanceID {
				delete(s.buffs, key)
			}
		}
		for _, u := range s.units {
			if u.target.Valid && u.target.UUID == e.UnitInstanceID {
				u.target = uuid.NullUUID{}
			}
		}
	}
}

// shadowRoster applies predicted commands without touching the real state.
type shadowRoster struct {
	stats   map[uuid.UUID]game.UnitStats
	owners  map[uuid.UUID]game.Side
	killed  []uuid.UUID
	killers map[uuid.UUID]uuid.NullUUID
}

func (s *state) shadow() *shadowRoster {
	sh := &shadowRoster{
		stats:   make(map[uuid.UUID]game.UnitStats, len(s.units)),
		owners:  make(map[uuid.UUID]game.Side, len(s.units)),
		killers: map[uuid.UUID]uuid.NullUUID{},
	}
	for id, u := range s.units {
		sh.stats[id] = u.stats
		sh.owners[id] = u.owner
	}
	return sh
}

func (sh *shadowRoster) heal(cmd combat.ApplyHealCommand) (timeline.HpChanged, bool) {
	st, ok := sh.stats[cmd.TargetID]
	if !ok || !st.Alive() {
		return timeline.HpChanged{}, false
	}
	before := st.CurrentHealth
	st.CurrentHealth = combat.HealResult(st, cmd.Flat, cmd.Percent)
	sh.stats[cmd.TargetID] = st
	if st.CurrentHealth == 0 {
		sh.kill(cmd.TargetID, cmd.SourceID)
	}
	if st.CurrentHealth == before {
		return timeline.HpChanged{}, false
	}
	return timeline.HpChanged{
		SourceInstanceID: cmd.SourceID,
		TargetInstanceID: cmd.TargetID,
		Delta:            int64(st.CurrentHealth) - int64(before),
		HpBefore:         before,
		HpAfter:          st.CurrentHealth,
		Reason:           timeline.ReasonCommand,
	}, true
}

func (sh *shadowRoster) modify(cmd combat.ApplyModifierCommand) (timeline.StatChanged, bool) {
	st, ok := sh.stats[cmd.TargetID]
	if !ok || !st.Alive() {
		return timeline.StatChanged{}, false
	}
	before := st
	st.ApplyModifier(cmd.Modifier)
	sh.stats[cmd.TargetID] = st
	if !st.Alive() {
		sh.kill(cmd.TargetID, uuid.NullUUID{})
	}
	return timeline.StatChanged{
		TargetInstanceID: cmd.TargetID,
		Modifier:         cmd.Modifier,
		StatsBefore:      before,
		StatsAfter:       st,
	}, true
}

func (sh *shadowRoster) kill(id uuid.UUID, killer uuid.NullUUID) {
	if _, dup := sh.killers[id]; dup {
		return
	}
	sh.killed = append(sh.killed, id)
	sh.killers[id] = killer
}

func (sh *shadowRoster) expectDeaths(s *state, cause uint64) {
	for _, id := range sh.killed {
		s.expect(cause, timeline.UnitDied{UnitInstanceID: id, Owner: sh.owners[id], KillerInstanceID: sh.killers[id]})
	}
}

func nullable(id uuid.NullUUID) string {
	if !id.Valid {
		return "none"
	}
	return id.UUID.String()
}
