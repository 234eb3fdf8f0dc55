package util

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

func content() *game.GameData {
	var abns []game.AbnormalityMetadata
	for i := 1; i <= 5; i++ {
		id := uuid.MustParse("00000000-0000-0000-0000-00000000010" + string(rune('0'+i)))
		abns = append(abns, game.AbnormalityMetadata{ID: id.String(), UUID: id, MaxHealth: 100, Attack: 10, AttackIntervalMs: 1000})
	}
	equips := []game.EquipmentMetadata{
		{ID: "e1", UUID: uuid.MustParse("00000000-0000-0000-0000-000000000201")},
		{ID: "e2", UUID: uuid.MustParse("00000000-0000-0000-0000-000000000202")},
		{ID: "e3", UUID: uuid.MustParse("00000000-0000-0000-0000-000000000203")},
	}
	arts := []game.ArtifactMetadata{{ID: "a1", UUID: uuid.MustParse("00000000-0000-0000-0000-000000000301")}}
	return game.NewGameData(abns, equips, arts)
}

func TestZeroSeedIsRemapped(t *testing.T) {
	if New(0).Int63() != New(1).Int63() {
		t.Fatalf("expected seed 0 to behave like seed 1")
	}
}

func TestRandomDecksAreDeterministic(t *testing.T) {
	data := content()
	p1, o1, err := RandomDecks(New(7), data, 8, 8, 3)
	if err != nil {
		t.Fatalf("random decks: %v", err)
	}
	p2, o2, err := RandomDecks(New(7), data, 8, 8, 3)
	if err != nil {
		t.Fatalf("random decks: %v", err)
	}
	if !reflect.DeepEqual(p1, p2) || !reflect.DeepEqual(o1, o2) {
		t.Fatalf("expected identical decks for identical seeds")
	}
}

func TestRandomDecksLayout(t *testing.T) {
	data := content()
	for seed := int64(1); seed <= 20; seed++ {
		player, opponent, err := RandomDecks(New(seed), data, 4, 6, 3)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for _, tc := range []struct {
			deck game.PlayerDeckInfo
			row  int32
		}{{player, 0}, {opponent, 5}} {
			if len(tc.deck.Units) != 3 {
				t.Fatalf("seed %d: expected 3 units, got %d", seed, len(tc.deck.Units))
			}
			cols := map[int32]bool{}
			bases := map[uuid.UUID]bool{}
			for _, u := range tc.deck.Units {
				if bases[u.BaseUUID] {
					t.Fatalf("seed %d: duplicate base %s", seed, u.BaseUUID)
				}
				bases[u.BaseUUID] = true
				pos, ok := tc.deck.Positions[u.BaseUUID]
				if !ok {
					t.Fatalf("seed %d: unit %s has no position", seed, u.BaseUUID)
				}
				if pos.Y != tc.row || pos.X < 0 || pos.X >= 4 || cols[pos.X] {
					t.Fatalf("seed %d: unexpected position %+v", seed, pos)
				}
				cols[pos.X] = true
				if len(u.EquippedItems) > maxItemsPerUnit {
					t.Fatalf("seed %d: expected at most %d items, got %d", seed, maxItemsPerUnit, len(u.EquippedItems))
				}
			}
			if len(tc.deck.Artifacts) > 1 {
				t.Fatalf("seed %d: expected at most one artifact, got %d", seed, len(tc.deck.Artifacts))
			}
		}
	}
}

func TestRandomDecksClampSizeToField(t *testing.T) {
	player, _, err := RandomDecks(New(3), content(), 2, 4, 5)
	if err != nil {
		t.Fatalf("random decks: %v", err)
	}
	if len(player.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(player.Units))
	}
}

func TestRandomDecksNeedContent(t *testing.T) {
	_, _, err := RandomDecks(New(1), game.NewGameData(nil, nil, nil), 8, 8, 3)
	if !errors.Is(err, game.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource, got %v", err)
	}
}
