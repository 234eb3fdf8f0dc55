package combat

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

func TestBasicCombatScenario(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 10, 100, 0, 1),
		abnormality(defenderBase, 50, 0, 0, 1000),
	}, nil, nil)
	player := deckOf(testUnit{base: attackerBase, pos: game.Position{X: 0, Y: 0}})
	opponent := deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1, Y: 0}})

	core, res := runBattle(t, player, opponent, data)
	if res.Winner != game.WinnerPlayer {
		t.Fatalf("expected Player to win, got %s", res.Winner)
	}
	tl := res.Timeline
	if n := countEvents[timeline.UnitSpawned](tl, nil); n != 2 {
		t.Fatalf("expected 2 UnitSpawned, got %d", n)
	}
	if n := countEvents[timeline.Attack](tl, nil); n < 1 {
		t.Fatalf("expected at least one Attack, got %d", n)
	}
	if n := countEvents[timeline.HpChanged](tl, nil); n < 1 {
		t.Fatalf("expected at least one HpChanged, got %d", n)
	}

	defender := MakeInstanceID(defenderBase, game.SideOpponent, 0)
	died := countEvents(tl, func(ev timeline.UnitDied) bool { return ev.UnitInstanceID == defender })
	if died != 1 {
		t.Fatalf("expected exactly one UnitDied for defender, got %d", died)
	}
	last, _ := tl.Last()
	if end, ok := last.Event.(timeline.BattleEnd); !ok || end.Winner != game.WinnerPlayer {
		t.Fatalf("expected final BattleEnd{Player}, got %#v", last.Event)
	}
	if _, ok := core.Graveyard(defender); !ok {
		t.Fatal("expected defender in graveyard")
	}
	if _, ok := core.Unit(defender); ok {
		t.Fatal("expected defender removed from live units")
	}
}

func TestBasicAttackOutcomesCarryCause(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 10, 30, 0, 1),
		abnormality(defenderBase, 50, 0, 0, 1000),
	}, nil, nil)
	_, res := runBattle(t, deckOf(testUnit{base: attackerBase}), deckOf(testUnit{base: defenderBase, pos: game.Position{X: 3}}), data)

	for _, e := range res.Timeline.Entries {
		hp, ok := e.Event.(timeline.HpChanged)
		if !ok {
			continue
		}
		if int64(hp.HpAfter)-int64(hp.HpBefore) != hp.Delta {
			t.Fatalf("seq %d: delta %d does not match %d -> %d", e.Seq, hp.Delta, hp.HpBefore, hp.HpAfter)
		}
		cause, ok := e.Cause()
		if !ok {
			t.Fatalf("seq %d: expected cause_seq on HpChanged", e.Seq)
		}
		if _, ok := res.Timeline.Entries[cause].Event.(timeline.Attack); !ok {
			t.Fatalf("seq %d: expected cause to be an Attack, got %T", e.Seq, res.Timeline.Entries[cause].Event)
		}
	}
}

func TestHpDeltaCoversFullHealthRange(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 10, math.MaxUint32, 0, 1),
		abnormality(defenderBase, math.MaxUint32, 0, 0, 1000),
	}, nil, nil)
	_, res := runBattle(t, deckOf(testUnit{base: attackerBase}), deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1}}), data)

	n := countEvents(res.Timeline, func(hp timeline.HpChanged) bool {
		return hp.HpBefore == math.MaxUint32 && hp.HpAfter == 0 && hp.Delta == -math.MaxUint32
	})
	if n != 1 {
		t.Fatalf("expected one full-range HpChanged with delta %d, got %d", int64(-math.MaxUint32), n)
	}
}

func TestKillCreditAppliesOnKillModifier(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 100, 1, 0, 1000),
		abnormality(defenderBase, 40, 0, 0, 5000),
	}, []game.EquipmentMetadata{
		equipment(itemBase, game.TriggeredEffects{
			game.TriggerOnAttack: {game.AbilityEffect(game.AbilityUnknownDistortionStrike)},
			game.TriggerOnKill:   {game.ModifierEffect(game.StatModifier{Stat: game.StatAttack, Kind: game.ModifierFlat, Value: 5})},
		}),
	}, nil)
	player := deckOf(testUnit{base: attackerBase, items: []uuid.UUID{itemBase}})
	opponent := deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1}})

	core, res := runBattle(t, player, opponent, data)
	if res.Winner != game.WinnerPlayer {
		t.Fatalf("expected Player to win, got %s", res.Winner)
	}
	attacker := MakeInstanceID(attackerBase, game.SidePlayer, 0)
	u, ok := core.Unit(attacker)
	if !ok {
		t.Fatal("expected attacker alive")
	}
	if u.Stats.Attack != 6 {
		t.Fatalf("expected attack 6 after kill, got %d", u.Stats.Attack)
	}
	killed := countEvents(res.Timeline, func(ev timeline.UnitDied) bool {
		return ev.KillerInstanceID.Valid && ev.KillerInstanceID.UUID == attacker
	})
	if killed != 1 {
		t.Fatalf("expected one kill credited to attacker, got %d", killed)
	}
}

func TestSimultaneousDeathsDoNotTriggerEachOther(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 100, 1, 0, 1000),
		abnormality(defenderBase, 31, 0, 0, 5000),
		abnormality(secondBase, 30, 0, 0, 5000),
	}, []game.EquipmentMetadata{
		equipment(itemBase, game.TriggeredEffects{
			game.TriggerOnAttack: {game.AbilityEffect(game.AbilityScorchedExplosion)},
		}),
		equipment(otherItem, game.TriggeredEffects{
			game.TriggerOnAllyDeath: {game.AbilityEffect(game.AbilityRedShoesBerserk)},
		}),
	}, nil)
	player := deckOf(testUnit{base: attackerBase, items: []uuid.UUID{itemBase}})
	opponent := deckOf(
		testUnit{base: defenderBase, pos: game.Position{X: 1}, items: []uuid.UUID{otherItem}},
		testUnit{base: secondBase, pos: game.Position{X: 2}},
	)

	_, res := runBattle(t, player, opponent, data)
	if res.Winner != game.WinnerPlayer {
		t.Fatalf("expected Player to win, got %s", res.Winner)
	}
	if n := countEvents[timeline.UnitDied](res.Timeline, nil); n != 2 {
		t.Fatalf("expected 2 deaths, got %d", n)
	}
	casts := countEvents(res.Timeline, func(ev timeline.AbilityCast) bool {
		return ev.AbilityID == game.AbilityRedShoesBerserk
	})
	if casts != 0 {
		t.Fatalf("expected no OnAllyDeath cast between simultaneous deaths, got %d", casts)
	}
}

func TestAllyDeathTriggersSurvivor(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 1000, 1, 0, 1000),
		abnormality(defenderBase, 100, 0, 0, 5000),
		abnormality(secondBase, 30, 0, 0, 5000),
	}, []game.EquipmentMetadata{
		equipment(itemBase, game.TriggeredEffects{
			game.TriggerOnAttack: {game.AbilityEffect(game.AbilityScorchedExplosion)},
		}),
		equipment(otherItem, game.TriggeredEffects{
			game.TriggerOnAllyDeath: {game.AbilityEffect(game.AbilityRedShoesBerserk)},
		}),
	}, nil)
	player := deckOf(testUnit{base: attackerBase, items: []uuid.UUID{itemBase}})
	opponent := deckOf(
		testUnit{base: defenderBase, pos: game.Position{X: 1}, items: []uuid.UUID{otherItem}},
		testUnit{base: secondBase, pos: game.Position{X: 2}},
	)

	_, res := runBattle(t, player, opponent, data)
	survivor := MakeInstanceID(defenderBase, game.SideOpponent, 0)
	casts := countEvents(res.Timeline, func(ev timeline.AbilityCast) bool {
		return ev.AbilityID == game.AbilityRedShoesBerserk && ev.CasterInstanceID == survivor
	})
	if casts != 1 {
		t.Fatalf("expected one OnAllyDeath cast from the survivor, got %d", casts)
	}
}

func TestHealPercentDoesNotOverheal(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{abnormality(attackerBase, 20, 1, 0, 1000)}, nil, nil)
	core := New(deckOf(testUnit{base: attackerBase}), game.PlayerDeckInfo{}, data, Options{})
	if err := core.buildSide(game.SidePlayer, core.player); err != nil {
		t.Fatalf("build: %v", err)
	}
	id := MakeInstanceID(attackerBase, game.SidePlayer, 0)
	core.processCommands([]Command{ApplyHealCommand{TargetID: id, Percent: 50}}, 0)

	u, _ := core.Unit(id)
	if u.Stats.CurrentHealth != 20 {
		t.Fatalf("expected health 20, got %d", u.Stats.CurrentHealth)
	}
	if n := core.Timeline().Len(); n != 0 {
		t.Fatalf("expected no entry for a no-op heal, got %d", n)
	}
}

func TestPoisonTicksForTwo(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 100, 1, 0, 1000),
		abnormality(defenderBase, 1000, 0, 0, 100000),
	}, []game.EquipmentMetadata{
		equipment(itemBase, game.TriggeredEffects{
			game.TriggerOnAttack: {game.ApplyBuffEffect("poison", 3500)},
		}),
	}, nil)
	player := deckOf(testUnit{base: attackerBase, items: []uuid.UUID{itemBase}})
	opponent := deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1}})

	_, res := runBattle(t, player, opponent, data)
	ticks := countEvents(res.Timeline, func(ev timeline.HpChanged) bool {
		return ev.Reason == timeline.ReasonCommand && ev.Delta == -2
	})
	if ticks == 0 {
		t.Fatal("expected at least one poison tick for -2")
	}
	if n := countEvents[timeline.BuffApplied](res.Timeline, nil); n == 0 {
		t.Fatal("expected BuffApplied entries")
	}
}

func TestExecuteAbilityRejectsDeadCaster(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 10, 100, 0, 1),
		abnormality(defenderBase, 50, 0, 0, 1000),
	}, nil, nil)
	core, _ := runBattle(t, deckOf(testUnit{base: attackerBase}), deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1}}), data)

	defender := MakeInstanceID(defenderBase, game.SideOpponent, 0)
	before := core.Timeline().Len()
	if core.executeAbility(game.AbilityRedShoesBerserk, defender, uuid.NullUUID{}, 5) {
		t.Fatal("expected graveyard caster not to execute")
	}
	if core.Timeline().Len() != before {
		t.Fatal("expected no entries from a rejected cast")
	}
}

func TestRunBattleIsDeterministic(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 200, 12, 2, 700, game.AbilityScorchedExplosion),
		abnormality(defenderBase, 260, 9, 3, 900, game.AbilityPlagueMassHeal),
		abnormality(secondBase, 150, 15, 1, 800, game.AbilityUnknownDistortionStrike),
	}, []game.EquipmentMetadata{
		equipment(itemBase, game.TriggeredEffects{
			game.TriggerOnAttack: {game.ApplyBuffEffect("poison", 3500)},
		}),
	}, nil)
	player := deckOf(testUnit{base: attackerBase, items: []uuid.UUID{itemBase}}, testUnit{base: secondBase, pos: game.Position{Y: 1}})
	opponent := deckOf(testUnit{base: defenderBase, pos: game.Position{X: 3}}, testUnit{base: secondBase, pos: game.Position{X: 3, Y: 2}})

	core, first := runBattle(t, player, opponent, data)
	sum1, err := timeline.Checksum(first.Timeline)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	again, err := core.RunBattle()
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	_, fresh := runBattle(t, player, opponent, data)
	for _, res := range []BattleResult{again, fresh} {
		sum, err := timeline.Checksum(res.Timeline)
		if err != nil {
			t.Fatalf("checksum: %v", err)
		}
		if sum != sum1 {
			t.Fatalf("expected checksum %s, got %s", sum1, sum)
		}
	}
}

func TestCeilingTerminatesPathologicalBattle(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 1_000_000, 0, 0, 1),
		abnormality(defenderBase, 1_000_000, 0, 0, 1),
	}, nil, nil)
	_, res := runBattle(t, deckOf(testUnit{base: attackerBase}), deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1}}), data)

	if res.Winner != game.WinnerDraw {
		t.Fatalf("expected Draw, got %s", res.Winner)
	}
	last, _ := res.Timeline.Last()
	if last.TimeMs > MaxBattleTimeMs {
		t.Fatalf("expected end at or before %d, got %d", MaxBattleTimeMs, last.TimeMs)
	}
	if res.Events > 200_000 {
		t.Fatalf("expected a bounded event count, got %d", res.Events)
	}
}

func TestEventBudgetForcesDraw(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 1_000_000, 0, 0, 1),
		abnormality(defenderBase, 1_000_000, 0, 0, 1),
	}, nil, nil)
	core := New(deckOf(testUnit{base: attackerBase}), deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1}}), data, Options{MaxEvents: 100})
	res, err := core.RunBattle()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Winner != game.WinnerDraw || res.Events != 100 {
		t.Fatalf("expected Draw after 100 events, got %s after %d", res.Winner, res.Events)
	}
}

func TestBuildRules(t *testing.T) {
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(attackerBase, 10, 1, 0, 1000),
		abnormality(defenderBase, 10, 1, 0, 1000),
	}, []game.EquipmentMetadata{equipment(itemBase, nil)}, nil)
	opponent := deckOf(testUnit{base: defenderBase, pos: game.Position{X: 1}})

	dup := deckOf(testUnit{base: attackerBase})
	dup.Units = append(dup.Units, dup.Units[0])
	noPos := deckOf(testUnit{base: attackerBase})
	delete(noPos.Positions, attackerBase)
	missing := deckOf(testUnit{base: secondBase})
	twoItems := deckOf(testUnit{base: attackerBase, items: []uuid.UUID{itemBase, itemBase}})
	offField := deckOf(testUnit{base: attackerBase, pos: game.Position{X: 9}})

	cases := []struct {
		name string
		deck game.PlayerDeckInfo
		want error
	}{
		{"duplicate unit", dup, game.ErrInvalidAction},
		{"missing position", noPos, game.ErrUnitNotFound},
		{"unknown abnormality", missing, game.ErrMissingResource},
		{"duplicate equipment", twoItems, game.ErrInvalidAction},
		{"outside field", offField, game.ErrInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.deck, opponent, data, Options{}).RunBattle()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	core := New(twoItems, opponent, data, Options{AllowDuplicateEquip: true})
	if _, err := core.RunBattle(); err != nil {
		t.Fatalf("expected duplicate equipment to be allowed, got %v", err)
	}
}
