package util

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

const maxItemsPerUnit = 2

func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	src := rand.NewSource(seed)
	return rand.New(src)
}

// RandomDecks draws two decks of up to size units from the content database.
// The player deploys on the first row and the opponent on the last. The same
// rng state always yields the same decks.
func RandomDecks(rng *rand.Rand, data *game.GameData, width, height uint8, size int) (game.PlayerDeckInfo, game.PlayerDeckInfo, error) {
	abns := data.AbnormalityUUIDs()
	if len(abns) == 0 {
		return game.PlayerDeckInfo{}, game.PlayerDeckInfo{}, fmt.Errorf("random decks: no abnormalities: %w", game.ErrMissingResource)
	}
	if width == 0 || height < 2 {
		return game.PlayerDeckInfo{}, game.PlayerDeckInfo{}, fmt.Errorf("random decks: field %dx%d too small", width, height)
	}
	size = min(size, len(abns), int(width))
	if size <= 0 {
		size = 1
	}
	equips := data.EquipmentUUIDs()
	arts := data.ArtifactUUIDs()

	player := randomDeck(rng, abns, equips, arts, width, 0, size)
	opponent := randomDeck(rng, abns, equips, arts, width, int32(height)-1, size)
	return player, opponent, nil
}

func randomDeck(rng *rand.Rand, abns, equips, arts []uuid.UUID, width uint8, row int32, size int) game.PlayerDeckInfo {
	deck := game.PlayerDeckInfo{Positions: map[uuid.UUID]game.Position{}}
	cols := rng.Perm(int(width))
	for i, pick := range rng.Perm(len(abns))[:size] {
		unit := game.OwnedUnit{BaseUUID: abns[pick], Level: 1}
		if len(equips) > 0 {
			n := rng.Intn(maxItemsPerUnit + 1)
			for _, e := range rng.Perm(len(equips))[:min(n, len(equips))] {
				unit.EquippedItems = append(unit.EquippedItems, equips[e])
			}
		}
		deck.Units = append(deck.Units, unit)
		deck.Positions[unit.BaseUUID] = game.Position{X: int32(cols[i]), Y: row}
	}
	if len(arts) > 0 && rng.Intn(2) == 1 {
		deck.Artifacts = append(deck.Artifacts, game.OwnedArtifact{BaseUUID: arts[rng.Intn(len(arts))]})
	}
	return deck
}
