package combat

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

func TestInstanceIDs(t *testing.T) {
	base := uuid.MustParse("10000000-0000-0000-0000-000000000001")

	p := MakeInstanceID(base, game.SidePlayer, 0)
	o := MakeInstanceID(base, game.SideOpponent, 0)
	if p == o {
		t.Fatal("expected sides to derive different ids")
	}
	if p != MakeInstanceID(base, game.SidePlayer, 0) {
		t.Fatal("expected derivation to be deterministic")
	}
	if p[0] != base[0]^1 || o[0] != base[0]^2 {
		t.Fatalf("expected side tag in byte 0, got %x and %x", p[0], o[0])
	}
	if MakeInstanceID(base, game.SidePlayer, 1) == p {
		t.Fatal("expected salt to change the id")
	}
	if MakeArtifactInstanceID(base, game.SidePlayer, 0) == p {
		t.Fatal("expected artifact ids to differ from unit ids")
	}

	a := MakeItemInstanceID(base, game.SidePlayer, p, 0)
	b := MakeItemInstanceID(base, game.SidePlayer, MakeInstanceID(defenderBase, game.SidePlayer, 0), 0)
	if a == b {
		t.Fatal("expected the same item on two units to get distinct ids")
	}
}

func TestItemIDsKeepTheirOwnNamespace(t *testing.T) {
	unit := uuid.MustParse("00000000-0000-0000-0000-000000000701")
	item := uuid.MustParse("00000000-0000-0000-0000-000000000801")
	p := MakeItemInstanceID(item, game.SidePlayer, MakeInstanceID(unit, game.SidePlayer, 0), 0)
	o := MakeItemInstanceID(item, game.SideOpponent, MakeInstanceID(unit, game.SideOpponent, 0), 0)
	if p == o {
		t.Fatalf("expected mirrored items to differ, both got %s", p)
	}
	if p[0] != item[0]^unit[0]^0x11 || o[0] != item[0]^unit[0]^0x22 {
		t.Fatalf("expected item tags 0x11/0x22 in byte 0, got %x and %x", p[0], o[0])
	}
}

func TestBuildGivesEveryEntityAUniqueID(t *testing.T) {
	// 0x0701^0x0801 == 0x0702^0x0802, so the plain derivation collides
	unitA := uuid.MustParse("00000000-0000-0000-0000-000000000701")
	unitB := uuid.MustParse("00000000-0000-0000-0000-000000000702")
	itemA := uuid.MustParse("00000000-0000-0000-0000-000000000801")
	itemB := uuid.MustParse("00000000-0000-0000-0000-000000000802")
	if MakeItemInstanceID(itemA, game.SidePlayer, MakeInstanceID(unitA, game.SidePlayer, 0), 0) !=
		MakeItemInstanceID(itemB, game.SidePlayer, MakeInstanceID(unitB, game.SidePlayer, 0), 0) {
		t.Fatal("expected the raw derivation to collide for this layout")
	}

	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(unitA, 50, 5, 0, 1000),
		abnormality(unitB, 50, 5, 0, 1000),
	}, []game.EquipmentMetadata{equipment(itemA, nil), equipment(itemB, nil)}, nil)
	player := deckOf(
		testUnit{base: unitA, pos: game.Position{X: 0}, items: []uuid.UUID{itemA}},
		testUnit{base: unitB, pos: game.Position{X: 1}, items: []uuid.UUID{itemB}},
	)
	opponent := deckOf(
		testUnit{base: unitA, pos: game.Position{X: 0, Y: 7}, items: []uuid.UUID{itemA}},
		testUnit{base: unitB, pos: game.Position{X: 1, Y: 7}, items: []uuid.UUID{itemB}},
	)
	_, res := runBattle(t, player, opponent, data)

	seen := map[uuid.UUID]bool{}
	items := 0
	for _, e := range res.Timeline.Entries {
		var id uuid.UUID
		switch ev := e.Event.(type) {
		case timeline.UnitSpawned:
			id = ev.UnitInstanceID
		case timeline.ItemSpawned:
			id = ev.ItemInstanceID
			items++
		case timeline.ArtifactSpawned:
			id = ev.ArtifactInstanceID
		default:
			continue
		}
		if seen[id] {
			t.Fatalf("expected unique instance ids, %s spawned twice", id)
		}
		seen[id] = true
	}
	if items != 4 {
		t.Fatalf("expected 4 item spawns, got %d", items)
	}
}

func TestBuildRejectsCollidingUnitIDs(t *testing.T) {
	// byte 0 of 0x00 tagged for the player equals 0x03 tagged for the opponent
	player := uuid.MustParse("00000000-0000-0000-0000-000000000901")
	opponent := uuid.MustParse("03000000-0000-0000-0000-000000000901")
	data := game.NewGameData([]game.AbnormalityMetadata{
		abnormality(player, 10, 1, 0, 1000),
		abnormality(opponent, 10, 1, 0, 1000),
	}, nil, nil)
	_, err := New(
		deckOf(testUnit{base: player}),
		deckOf(testUnit{base: opponent, pos: game.Position{X: 3}}),
		data, Options{},
	).RunBattle()
	if !errors.Is(err, game.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestCalculateDamage(t *testing.T) {
	attacker := uuid.MustParse("10000000-0000-0000-0000-000000000001")
	target := uuid.MustParse("20000000-0000-0000-0000-000000000002")
	req := DamageRequest{Source: DamageBasicAttack, AttackerID: attacker, TargetID: target}

	cases := []struct {
		name   string
		ctx    DamageContext
		damage uint32
		killed bool
	}{
		{"attack minus defense", DamageContext{AttackerAttack: 10, TargetDefense: 3, TargetCurrentHP: 50}, 7, false},
		{"floor of one", DamageContext{AttackerAttack: 3, TargetDefense: 10, TargetCurrentHP: 50}, 1, false},
		{"exact kill", DamageContext{AttackerAttack: 10, TargetCurrentHP: 10}, 10, true},
		{"flat bonus", DamageContext{
			AttackerAttack: 10, TargetCurrentHP: 50,
			OnAttackEffects: []game.Effect{game.BonusDamageEffect(5, 0)},
		}, 15, false},
		{"percent bonus after flat", DamageContext{
			AttackerAttack: 10, TargetCurrentHP: 50,
			OnAttackEffects: []game.Effect{game.BonusDamageEffect(10, 50)},
		}, 30, false},
		{"negative bonus clamps at zero", DamageContext{
			AttackerAttack: 10, TargetCurrentHP: 50,
			OnHitEffects: []game.Effect{game.BonusDamageEffect(-100, 0)},
		}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := CalculateDamage(req, tc.ctx)
			if res.FinalDamage != tc.damage {
				t.Fatalf("expected damage %d, got %d", tc.damage, res.FinalDamage)
			}
			if res.TargetKilled != tc.killed {
				t.Fatalf("expected killed %v, got %v", tc.killed, res.TargetKilled)
			}
		})
	}
}

func TestCalculateDamageCommandOrder(t *testing.T) {
	attacker := uuid.MustParse("10000000-0000-0000-0000-000000000001")
	target := uuid.MustParse("20000000-0000-0000-0000-000000000002")
	res := CalculateDamage(DamageRequest{AttackerID: attacker, TargetID: target}, DamageContext{
		AttackerAttack:  20,
		TargetCurrentHP: 5,
		OnAttackEffects: []game.Effect{game.ApplyBuffEffect("poison", 1000)},
		OnHitEffects:    []game.Effect{game.HealEffect(3, 0)},
	})
	if len(res.TriggeredCommands) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(res.TriggeredCommands))
	}
	if _, ok := res.TriggeredCommands[0].(ApplyBuffCommand); !ok {
		t.Fatalf("expected ApplyBuff first, got %T", res.TriggeredCommands[0])
	}
	heal, ok := res.TriggeredCommands[1].(ApplyHealCommand)
	if !ok || heal.TargetID != target || heal.Flat != 3 {
		t.Fatalf("expected OnHit heal on target, got %#v", res.TriggeredCommands[1])
	}
	died, ok := res.TriggeredCommands[2].(UnitDiedCommand)
	if !ok || died.UnitID != target || died.KillerID.UUID != attacker {
		t.Fatalf("expected UnitDied last, got %#v", res.TriggeredCommands[2])
	}
}

func TestHealResult(t *testing.T) {
	stats := game.NewUnitStats(100, 40, 1, 0, 1000)
	if hp := HealResult(stats, 10, 10); hp != 60 {
		t.Fatalf("expected 60, got %d", hp)
	}
	if hp := HealResult(stats, 500, 0); hp != 100 {
		t.Fatalf("expected clamp to 100, got %d", hp)
	}
	if hp := HealResult(stats, -500, 0); hp != 0 {
		t.Fatalf("expected clamp to 0, got %d", hp)
	}
}

func TestDeathHandlerSimultaneousDeaths(t *testing.T) {
	a := uuid.MustParse("10000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("10000000-0000-0000-0000-000000000002")
	killer := uuid.MustParse("20000000-0000-0000-0000-000000000001")

	h := NewDeathHandler()
	h.EnqueueDeath(DeadUnit{UnitID: a, KillerID: timeline.SomeID(killer), Owner: game.SideOpponent})
	h.EnqueueDeath(DeadUnit{UnitID: b, KillerID: timeline.SomeID(killer), Owner: game.SideOpponent})
	h.EnqueueDeath(DeadUnit{UnitID: a, Owner: game.SideOpponent})

	pending := map[uuid.UUID]bool{a: true, b: true}
	allyFx := []game.Effect{game.AbilityEffect(game.AbilityRedShoesBerserk)}
	killFx := []game.Effect{game.ModifierEffect(game.StatModifier{Stat: game.StatAttack, Kind: game.ModifierFlat, Value: 1})}

	res := h.ProcessAllDeaths(
		func(uuid.UUID) []game.Effect { return nil },
		func(id uuid.UUID) []game.Effect {
			if id == killer {
				return killFx
			}
			return nil
		},
		func(uuid.UUID) []game.Effect { return allyFx },
		func(dead uuid.UUID, _ game.Side) []uuid.UUID {
			var out []uuid.UUID
			for _, id := range []uuid.UUID{a, b} {
				if id != dead && !pending[id] {
					out = append(out, id)
				}
			}
			return out
		},
	)
	if len(res.Removed) != 2 {
		t.Fatalf("expected 2 removals, got %d", len(res.Removed))
	}
	if len(res.Commands) != 2 {
		t.Fatalf("expected one OnKill modifier per death, got %d commands", len(res.Commands))
	}
	for _, cmd := range res.Commands {
		if _, ok := cmd.(ApplyModifierCommand); !ok {
			t.Fatalf("expected only modifiers, got %T", cmd)
		}
	}

	h.EnqueueDeath(DeadUnit{UnitID: a})
	if h.HasPending() {
		t.Fatal("expected processed unit to be ignored")
	}
}

func TestExecutorRejectsMissingCaster(t *testing.T) {
	exec := NewAbilityExecutor(nil)
	caster := UnitSnapshot{ID: attackerBase, Owner: game.SidePlayer, Stats: game.NewUnitStats(10, 10, 1, 0, 1000)}
	enemy := UnitSnapshot{ID: defenderBase, Owner: game.SideOpponent, Stats: game.NewUnitStats(10, 10, 1, 0, 1000)}

	res := exec.Execute(AbilityRequest{AbilityID: game.AbilityRedShoesBerserk, CasterID: caster.ID}, caster, []UnitSnapshot{enemy})
	if res.Executed {
		t.Fatal("expected caster outside the roster not to execute")
	}

	res = exec.Execute(AbilityRequest{AbilityID: game.AbilityRedShoesBerserk, CasterID: caster.ID}, caster, []UnitSnapshot{caster, enemy})
	if !res.Executed || len(res.Commands) != 1 {
		t.Fatalf("expected one command, got %#v", res)
	}
	dmg := res.Commands[0].(ApplyHealCommand)
	if dmg.TargetID != enemy.ID || dmg.Flat != -15 {
		t.Fatalf("expected -15 on enemy, got %#v", dmg)
	}
}

func TestExecutorCooldown(t *testing.T) {
	exec := NewAbilityExecutor(nil)
	caster := UnitSnapshot{ID: attackerBase, Owner: game.SidePlayer, Stats: game.NewUnitStats(10, 10, 1, 0, 1000)}
	units := []UnitSnapshot{caster}
	req := AbilityRequest{AbilityID: game.AbilityPlagueMassHeal, CasterID: caster.ID}

	for _, step := range []struct {
		at   uint64
		want bool
	}{{0, true}, {4999, false}, {5000, true}} {
		req.TimeMs = step.at
		if got := exec.Execute(req, caster, units).Executed; got != step.want {
			t.Fatalf("at %d: expected executed %v, got %v", step.at, step.want, got)
		}
	}
}

func TestEventQueueOrder(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ff000000-0000-0000-0000-000000000001")

	var q EventQueue
	q.Push(BattleEvent{Kind: EventAutoCastStart, TimeMs: 10, UnitID: low})
	q.Push(BattleEvent{Kind: EventAttack, TimeMs: 10, UnitID: high})
	q.Push(BattleEvent{Kind: EventAttack, TimeMs: 10, UnitID: low, TargetID: timeline.SomeID(high)})
	q.Push(BattleEvent{Kind: EventAttack, TimeMs: 10, UnitID: low})
	q.Push(BattleEvent{Kind: EventApplyBuff, TimeMs: 10, UnitID: high})
	q.Push(BattleEvent{Kind: EventAttack, TimeMs: 5, UnitID: high})

	want := []struct {
		kind   EventKind
		time   uint64
		unit   uuid.UUID
		target bool
	}{
		{EventAttack, 5, high, false},
		{EventApplyBuff, 10, high, false},
		{EventAttack, 10, low, false},
		{EventAttack, 10, low, true},
		{EventAttack, 10, high, false},
		{EventAutoCastStart, 10, low, false},
	}
	for i, w := range want {
		ev, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if ev.Kind != w.kind || ev.TimeMs != w.time || ev.UnitID != w.unit || ev.TargetID.Valid != w.target {
			t.Fatalf("pop %d: expected %s@%d, got %s@%d", i, w.kind, w.time, ev.Kind, ev.TimeMs)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestBuffRefreshAndTicks(t *testing.T) {
	def, ok := LookupBuff(game.BuffIDFromName("poison"))
	if !ok {
		t.Fatal("expected poison registered")
	}
	b := &ActiveBuff{ExpiresAtMs: 3500}
	tick, ok := b.Refresh(def, 0, 3500)
	if !ok || tick != 1000 || b.Stacks != 1 {
		t.Fatalf("expected first tick at 1000 with 1 stack, got %d %v stacks=%d", tick, ok, b.Stacks)
	}
	if _, ok := b.Refresh(def, 500, 3500); ok {
		t.Fatal("expected no second tick while one is pending")
	}
	if b.Stacks != 2 || b.ExpiresAtMs != 4000 {
		t.Fatalf("expected 2 stacks expiring at 4000, got %d at %d", b.Stacks, b.ExpiresAtMs)
	}
	if def.TickDamage(b.Stacks) != 4 {
		t.Fatalf("expected 4 damage, got %d", def.TickDamage(b.Stacks))
	}
	if b.Due(999) || !b.Due(1000) {
		t.Fatal("expected only the scheduled tick to be due")
	}
	for _, want := range []uint64{2000, 3000} {
		next, ok := b.Advance(def, want-1000)
		if !ok || next != want {
			t.Fatalf("expected next tick %d, got %d %v", want, next, ok)
		}
	}
	if _, ok := b.Advance(def, 3000); ok {
		t.Fatal("expected no tick at or past expiry")
	}

	for range 300 {
		b.Refresh(def, 0, 1)
	}
	if b.Stacks != def.MaxStacks {
		t.Fatalf("expected stacks capped at %d, got %d", def.MaxStacks, b.Stacks)
	}
}

func TestCollectAllTriggersOrder(t *testing.T) {
	art := uuid.MustParse("30000000-0000-0000-0000-000000000001")
	data := game.NewGameData(nil,
		[]game.EquipmentMetadata{equipment(itemBase, game.TriggeredEffects{
			game.TriggerOnAttack: {game.BonusDamageEffect(2, 0)},
		})},
		[]game.ArtifactMetadata{{ID: "art", UUID: art, TriggeredEffects: game.TriggeredEffects{
			game.TriggerOnAttack: {game.BonusDamageEffect(1, 0)},
		}}},
	)
	ti := NewTriggerIndex(data)
	unit := MakeInstanceID(attackerBase, game.SidePlayer, 0)
	ti.AddUnit(unit, game.SidePlayer)
	ti.AddItem(RuntimeItem{InstanceID: MakeItemInstanceID(itemBase, game.SidePlayer, unit, 0), Owner: game.SidePlayer, OwnerUnitID: unit, BaseUUID: itemBase})
	ti.AddArtifact(RuntimeArtifact{InstanceID: MakeArtifactInstanceID(art, game.SidePlayer, 0), Owner: game.SidePlayer, BaseUUID: art})

	fx := ti.CollectAllTriggers(unit, game.TriggerOnAttack)
	if len(fx) != 2 || fx[0].Flat != 1 || fx[1].Flat != 2 {
		t.Fatalf("expected artifact effect then item effect, got %#v", fx)
	}
	if got := ti.CollectAllTriggers(uuid.New(), game.TriggerOnAttack); got != nil {
		t.Fatalf("expected nil for unknown unit, got %#v", got)
	}
	ti.RemoveUnit(unit)
	if len(ti.Items()) != 0 {
		t.Fatal("expected items dropped with their unit")
	}
}

func TestNearestBreaksTiesByID(t *testing.T) {
	a := UnitSnapshot{ID: uuid.MustParse("20000000-0000-0000-0000-000000000000"), Position: game.Position{X: 1}}
	b := UnitSnapshot{ID: uuid.MustParse("10000000-0000-0000-0000-000000000000"), Position: game.Position{Y: 1}}
	far := UnitSnapshot{ID: uuid.MustParse("00000000-0000-0000-0000-000000000000"), Position: game.Position{X: 5}}
	got, ok := nearest(game.Position{}, []UnitSnapshot{a, far, b})
	if !ok || got != b.ID {
		t.Fatalf("expected %s, got %s", b.ID, got)
	}
}
