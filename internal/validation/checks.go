package validation

import (
	"bytes"
	"slices"

	"github.com/google/uuid"

	"battlesim/internal/combat"
	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

// checkUnitState folds hp and stat changes over the spawn stats and checks
// every before-value against the folded state.
func checkUnitState(tl timeline.Timeline, r *report) {
	stats := map[uuid.UUID]game.UnitStats{}
	for i, e := range tl.Entries {
		switch ev := e.Event.(type) {
		case timeline.UnitSpawned:
			stats[ev.UnitInstanceID] = ev.Stats
		case timeline.HpChanged:
			s, ok := stats[ev.TargetInstanceID]
			if !ok {
				continue
			}
			if s.CurrentHealth != ev.HpBefore {
				r.add(HpBeforeMismatch, i, "HpChanged hp_before mismatch for %s: state=%d, event=%d",
					ev.TargetInstanceID, s.CurrentHealth, ev.HpBefore)
			}
			s.CurrentHealth = ev.HpAfter
			stats[ev.TargetInstanceID] = s
		case timeline.StatChanged:
			s, ok := stats[ev.TargetInstanceID]
			if !ok {
				continue
			}
			if s != ev.StatsBefore {
				r.add(StatsBeforeMismatch, i, "StatChanged stats_before mismatch for %s", ev.TargetInstanceID)
			}
			if msg, bad := invalidStats(ev.StatsAfter, "StatChanged stats_after"); bad {
				r.add(StatsAfterInvalid, i, "%s", msg)
			}
			stats[ev.TargetInstanceID] = ev.StatsAfter
		case timeline.BuffApplied:
			if s, ok := stats[ev.CasterInstanceID]; ok && !s.Alive() {
				r.add(BuffAppliedByDeadCaster, i, "BuffApplied caster %s has current_health=0", ev.CasterInstanceID)
			}
		case timeline.UnitDied:
			if s, ok := stats[ev.UnitInstanceID]; ok && s.Alive() {
				r.add(UnitDiedWhileAlive, i, "UnitDied recorded for %s with current_health=%d", ev.UnitInstanceID, s.CurrentHealth)
			}
		}
	}
}

type openCast struct {
	index  int
	seq    uint64
	timeMs uint64
}

// checkAutoCastPairs matches every AutoCastEnd to its start through
// cause_seq. A cast cut short by the caster's death or by the end of the
// battle is not required to close.
func checkAutoCastPairs(tl timeline.Timeline, r *report) {
	open := map[uuid.UUID]openCast{}
	type start struct {
		caster uuid.UUID
		timeMs uint64
	}
	starts := map[uint64]start{}

	for i, e := range tl.Entries {
		switch ev := e.Event.(type) {
		case timeline.AutoCastStart:
			if _, dup := open[ev.CasterInstanceID]; dup {
				r.add(AutoCastPairInvalid, i, "AutoCastStart overlaps an existing pending cast (caster=%s)", ev.CasterInstanceID)
			}
			open[ev.CasterInstanceID] = openCast{index: i, seq: e.Seq, timeMs: e.TimeMs}
			starts[e.Seq] = start{caster: ev.CasterInstanceID, timeMs: e.TimeMs}
		case timeline.AutoCastEnd:
			cause, ok := e.Cause()
			if !ok {
				r.add(AutoCastPairInvalid, i, "AutoCastEnd is missing cause_seq (caster=%s)", ev.CasterInstanceID)
				continue
			}
			st, ok := starts[cause]
			if !ok {
				r.add(AutoCastPairInvalid, i, "AutoCastEnd cause_seq %d does not reference an AutoCastStart (caster=%s)", cause, ev.CasterInstanceID)
				continue
			}
			if st.caster != ev.CasterInstanceID {
				r.add(AutoCastPairInvalid, i, "AutoCastEnd caster mismatch: expected %s, got %s", st.caster, ev.CasterInstanceID)
			}
			if e.TimeMs != st.timeMs+1 {
				r.add(AutoCastPairInvalid, i, "AutoCastEnd timing mismatch for %s: expected %dms, got %dms", ev.CasterInstanceID, st.timeMs+1, e.TimeMs)
			}
			delete(open, ev.CasterInstanceID)
		case timeline.UnitDied:
			delete(open, ev.UnitInstanceID)
		}
	}

	endMs := tl.Entries[len(tl.Entries)-1].TimeMs
	var missing []openCast
	for _, c := range open {
		// the end was due at or after the last step
		if c.timeMs+1 >= endMs {
			continue
		}
		missing = append(missing, c)
	}
	slices.SortFunc(missing, func(a, b openCast) int { return a.index - b.index })
	for _, c := range missing {
		caster := tl.Entries[c.index].Event.(timeline.AutoCastStart).CasterInstanceID
		r.add(AutoCastPairInvalid, c.index, "missing AutoCastEnd for %s (start_seq=%d start_time_ms=%d)", caster, c.seq, c.timeMs)
	}
}

type basicHit struct {
	cause    uint64
	timeMs   uint64
	attacker uuid.UUID
	target   uuid.UUID
}

func checkAttacks(tl timeline.Timeline, s *spawnIndex, cfg Config, r *report) {
	hits := map[basicHit]bool{}
	if cfg.RequireAttackHasBasicHpChange {
		for _, e := range tl.Entries {
			hp, ok := e.Event.(timeline.HpChanged)
			if !ok || hp.Reason != timeline.ReasonBasicAttack || !hp.SourceInstanceID.Valid {
				continue
			}
			if cause, ok := e.Cause(); ok {
				hits[basicHit{cause, e.TimeMs, hp.SourceInstanceID.UUID, hp.TargetInstanceID}] = true
			}
		}
	}

	for i, e := range tl.Entries {
		a, ok := e.Event.(timeline.Attack)
		if !ok {
			continue
		}
		if a.AttackerInstanceID == a.TargetInstanceID {
			r.add(AttackTargetsSameUnit, i, "attack targets the same unit")
			continue
		}
		attackerSide, ok := s.unitOwner[a.AttackerInstanceID]
		if !ok {
			r.add(UnknownUnitReference, i, "attack references unknown attacker %s", a.AttackerInstanceID)
			continue
		}
		targetSide, ok := s.unitOwner[a.TargetInstanceID]
		if !ok {
			r.add(UnknownUnitReference, i, "attack references unknown target %s", a.TargetInstanceID)
			continue
		}
		if attackerSide == targetSide {
			r.add(AttackTargetsAlly, i, "attack targets ally: attacker_owner=%s target_owner=%s", attackerSide, targetSide)
		}
		if cfg.RequireAttackHasBasicHpChange && !hits[basicHit{e.Seq, e.TimeMs, a.AttackerInstanceID, a.TargetInstanceID}] {
			r.add(AttackMissingBasicHpChange, i, "attack missing BasicAttack HpChanged at same time_ms")
		}
	}
}

// checkBuffs re-derives each buff's tick schedule from its applications and
// requires recorded ticks and expiries to follow it.
func checkBuffs(tl timeline.Timeline, r *report) {
	active := map[combat.BuffKey]*combat.ActiveBuff{}
	for i, e := range tl.Entries {
		switch ev := e.Event.(type) {
		case timeline.BuffApplied:
			def, ok := combat.LookupBuff(ev.BuffID)
			if !ok {
				r.add(UnknownBuffID, i, "unknown buff_id %d on BuffApplied", uint64(ev.BuffID))
				continue
			}
			if ev.DurationMs == 0 {
				r.add(BuffAppliedDurationZero, i, "BuffApplied has duration_ms == 0")
				continue
			}
			key := combat.BuffKey{CasterID: ev.CasterInstanceID, TargetID: ev.TargetInstanceID, BuffID: ev.BuffID}
			b, ok := active[key]
			if !ok {
				b = &combat.ActiveBuff{ExpiresAtMs: e.TimeMs + ev.DurationMs}
				active[key] = b
			}
			b.Refresh(def, e.TimeMs, ev.DurationMs)
		case timeline.BuffTick:
			def, ok := combat.LookupBuff(ev.BuffID)
			if !ok {
				r.add(UnknownBuffID, i, "unknown buff_id %d on BuffTick", uint64(ev.BuffID))
				continue
			}
			if def.TickIntervalMs == 0 {
				r.add(BuffTickInvalid, i, "BuffTick recorded for buff with tick_interval_ms == 0")
				continue
			}
			b, ok := active[combat.BuffKey{CasterID: ev.CasterInstanceID, TargetID: ev.TargetInstanceID, BuffID: ev.BuffID}]
			if !ok {
				r.add(BuffTickInvalid, i, "BuffTick recorded without an active BuffApplied (buff_id=%d)", uint64(ev.BuffID))
				continue
			}
			if e.TimeMs >= b.ExpiresAtMs {
				r.add(BuffTickInvalid, i, "BuffTick at %dms is at/after expires_at_ms %d", e.TimeMs, b.ExpiresAtMs)
				continue
			}
			if !b.Due(e.TimeMs) {
				r.add(BuffTickInvalid, i, "BuffTick at %dms does not match the expected next tick", e.TimeMs)
			}
			b.Advance(def, e.TimeMs)
		case timeline.BuffExpired:
			if _, ok := combat.LookupBuff(ev.BuffID); !ok {
				r.add(UnknownBuffID, i, "unknown buff_id %d on BuffExpired", uint64(ev.BuffID))
				continue
			}
			key := combat.BuffKey{CasterID: ev.CasterInstanceID, TargetID: ev.TargetInstanceID, BuffID: ev.BuffID}
			b, ok := active[key]
			if !ok {
				r.add(BuffExpiredInvalid, i, "BuffExpired recorded without an active BuffApplied (buff_id=%d)", uint64(ev.BuffID))
				continue
			}
			if e.TimeMs < b.ExpiresAtMs {
				r.add(BuffExpiredInvalid, i, "BuffExpired at %dms is before expires_at_ms %d", e.TimeMs, b.ExpiresAtMs)
				continue
			}
			delete(active, key)
		case timeline.UnitDied:
			for key := range active {
				if key.TargetID == ev.UnitInstanceID || key.CasterID == ev.UnitInstanceID {
					delete(active, key)
				}
			}
		}
	}
}

func checkDeaths(tl timeline.Timeline, s *spawnIndex, cfg Config, r *report) {
	diedAt := map[uuid.UUID]int{}
	for i, e := range tl.Entries {
		d, ok := e.Event.(timeline.UnitDied)
		if !ok {
			continue
		}
		if _, dup := diedAt[d.UnitInstanceID]; dup {
			r.add(UnitDiedDuplicate, i, "unit %s has multiple UnitDied entries", d.UnitInstanceID)
			continue
		}
		diedAt[d.UnitInstanceID] = i
	}
	if len(diedAt) == 0 {
		return
	}

	for i, e := range tl.Entries {
		for _, id := range timeline.ReferencedUnits(e.Event) {
			at, ok := diedAt[id]
			if ok && at < i && actsOn(e.Event, id, cfg) {
				r.add(DeadUnitActsAfterDeath, i, "unit %s is referenced after death at time_ms %d", id, e.TimeMs)
			}
		}
	}

	for i, e := range tl.Entries {
		if d, ok := e.Event.(timeline.UnitDied); ok {
			if _, known := s.unitOwner[d.UnitInstanceID]; !known {
				r.add(UnknownUnitReference, i, "UnitDied references unknown unit %s", d.UnitInstanceID)
			}
		}
	}
}

// actsOn reports whether ev uses dead as an actor or, when configured, as a
// target.
func actsOn(ev timeline.Event, dead uuid.UUID, cfg Config) bool {
	actor := func(id uuid.UUID) bool { return cfg.ForbidDeadUnitsAsAttackers && id == dead }
	target := func(id uuid.UUID) bool { return cfg.ForbidDeadUnitsAsTargets && id == dead }
	optTarget := func(id uuid.NullUUID) bool { return id.Valid && target(id.UUID) }

	switch e := ev.(type) {
	case timeline.Attack:
		return actor(e.AttackerInstanceID) || target(e.TargetInstanceID)
	case timeline.AutoCastStart:
		return actor(e.CasterInstanceID) || optTarget(e.TargetInstanceID)
	case timeline.AutoCastEnd:
		return actor(e.CasterInstanceID)
	case timeline.AbilityCast:
		return actor(e.CasterInstanceID) || optTarget(e.TargetInstanceID)
	case timeline.BuffApplied:
		return actor(e.CasterInstanceID) || target(e.TargetInstanceID)
	case timeline.BuffTick:
		return actor(e.CasterInstanceID) || target(e.TargetInstanceID)
	case timeline.BuffExpired:
		return target(e.TargetInstanceID)
	case timeline.HpChanged:
		return target(e.TargetInstanceID)
	case timeline.StatChanged:
		return target(e.TargetInstanceID)
	case timeline.ItemSpawned:
		return e.OwnerUnitInstanceID == dead
	case timeline.UnitSpawned:
		return e.UnitInstanceID == dead
	case timeline.UnitDied:
		return e.UnitInstanceID == dead
	}
	return false
}

// checkAutoAttackCadence rebuilds each unit's auto attack schedule from its
// interval, casting windows and stat changes. Entries are walked one time
// step at a time so stat changes in a step count toward the next attack.
func checkAutoAttackCadence(tl timeline.Timeline, s *spawnIndex, cfg Config, r *report) {
	if !cfg.ValidateAutoAttackMinInterval && !cfg.ValidateAutoAttackPresence {
		return
	}
	endMs := tl.Entries[len(tl.Entries)-1].TimeMs

	deathMs := map[uuid.UUID]uint64{}
	for _, e := range tl.Entries {
		if d, ok := e.Event.(timeline.UnitDied); ok {
			if _, seen := deathMs[d.UnitInstanceID]; !seen {
				deathMs[d.UnitInstanceID] = e.TimeMs
			}
		}
	}

	units := make([]uuid.UUID, 0, len(s.unitStats))
	interval := map[uuid.UUID]uint64{}
	nextAuto := map[uuid.UUID]uint64{}
	for id, st := range s.unitStats {
		units = append(units, id)
		interval[id] = max(st.AttackIntervalMs, 1)
		nextAuto[id] = s.unitTimeMs[id] + interval[id]
	}
	slices.SortFunc(units, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	reported := map[uuid.UUID]bool{}
	castingUntil := map[uuid.UUID]uint64{}

	for i := 0; i < len(tl.Entries); {
		now := tl.Entries[i].TimeMs

		if cfg.ValidateAutoAttackPresence {
			for _, id := range units {
				expected := nextAuto[id]
				if reported[id] || expected > endMs {
					continue
				}
				if until, ok := castingUntil[id]; ok && expected < until {
					expected = until
					nextAuto[id] = expected
				}
				if expected+cfg.AutoAttackTimingToleranceMs < now && expectsAutoAttack(s, deathMs, id, expected, endMs) {
					r.add(MissingExpectedAutoAttack, NoEntry, "missing expected auto attack: unit=%s expected_time_ms=%d tolerance_ms=%d",
						id, expected, cfg.AutoAttackTimingToleranceMs)
					reported[id] = true
				}
			}
		}

		// minInterval is the smallest interval an attacker had from its
		// attack entry to the end of the step.
		minInterval := map[uuid.UUID]uint64{}
		var attackers []uuid.UUID
		j := i
		for ; j < len(tl.Entries) && tl.Entries[j].TimeMs == now; j++ {
			switch ev := tl.Entries[j].Event.(type) {
			case timeline.Attack:
				if ev.Kind != timeline.AttackAuto {
					continue
				}
				id := ev.AttackerInstanceID
				if _, seen := minInterval[id]; !seen {
					attackers = append(attackers, id)
				}
				minInterval[id] = max(interval[id], 1)
			case timeline.AutoCastStart:
				castingUntil[ev.CasterInstanceID] = now + 1
			case timeline.AutoCastEnd:
				delete(castingUntil, ev.CasterInstanceID)
			case timeline.StatChanged:
				id := ev.TargetInstanceID
				interval[id] = max(ev.StatsAfter.AttackIntervalMs, 1)
				if m, ok := minInterval[id]; ok {
					minInterval[id] = min(m, interval[id])
				}
			}
		}

		for _, id := range attackers {
			if cfg.ValidateAutoAttackMinInterval {
				if expected, ok := nextAuto[id]; ok && now < expected {
					r.add(AutoAttackTooEarly, NoEntry, "auto attack too early: unit=%s time_ms=%d expected_min_time_ms=%d", id, now, expected)
				}
			}
			nextAuto[id] = now + minInterval[id]
		}
		i = j
	}
}

// expectsAutoAttack reports whether id was alive with a living enemy at atMs.
func expectsAutoAttack(s *spawnIndex, deathMs map[uuid.UUID]uint64, id uuid.UUID, atMs, endMs uint64) bool {
	if atMs > endMs {
		return false
	}
	side, ok := s.unitOwner[id]
	if !ok || atMs < s.unitTimeMs[id] {
		return false
	}
	if d, dead := deathMs[id]; dead && d <= atMs {
		return false
	}
	for enemy, enemySide := range s.unitOwner {
		if enemySide == side || s.unitTimeMs[enemy] > atMs {
			continue
		}
		if d, dead := deathMs[enemy]; !dead || d > atMs {
			return true
		}
	}
	return false
}
