package combat

import (
	"testing"

	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

type testUnit struct {
	base  uuid.UUID
	pos   game.Position
	items []uuid.UUID
}

func abnormality(id uuid.UUID, hp, atk, def uint32, interval uint64, abilities ...game.AbilityID) game.AbnormalityMetadata {
	return game.AbnormalityMetadata{
		ID:               id.String(),
		UUID:             id,
		MaxHealth:        hp,
		Attack:           atk,
		Defense:          def,
		AttackIntervalMs: interval,
		Abilities:        abilities,
		ResonanceMax:     game.DefaultResonanceMax,
		ResonanceLockMs:  game.DefaultResonanceLockMs,
	}
}

func equipment(id uuid.UUID, fx game.TriggeredEffects) game.EquipmentMetadata {
	return game.EquipmentMetadata{ID: id.String(), UUID: id, TriggeredEffects: fx}
}

func deckOf(units ...testUnit) game.PlayerDeckInfo {
	d := game.PlayerDeckInfo{Positions: map[uuid.UUID]game.Position{}}
	for _, u := range units {
		d.Units = append(d.Units, game.OwnedUnit{BaseUUID: u.base, Level: 1, EquippedItems: u.items})
		d.Positions[u.base] = u.pos
	}
	return d
}

func runBattle(t *testing.T, player, opponent game.PlayerDeckInfo, data *game.GameData) (*BattleCore, BattleResult) {
	t.Helper()
	core := New(player, opponent, data, Options{Width: 8, Height: 8})
	res, err := core.RunBattle()
	if err != nil {
		t.Fatalf("run battle: %v", err)
	}
	return core, res
}

func countEvents[T timeline.Event](tl timeline.Timeline, match func(T) bool) int {
	n := 0
	for _, e := range tl.Entries {
		if ev, ok := e.Event.(T); ok && (match == nil || match(ev)) {
			n++
		}
	}
	return n
}

var (
	attackerBase = uuid.MustParse("00000000-0000-0000-0000-0000000003e9")
	defenderBase = uuid.MustParse("00000000-0000-0000-0000-0000000003ea")
	secondBase   = uuid.MustParse("00000000-0000-0000-0000-0000000003eb")
	itemBase     = uuid.MustParse("00000000-0000-0000-0000-0000000007d1")
	otherItem    = uuid.MustParse("00000000-0000-0000-0000-0000000007d2")
)
