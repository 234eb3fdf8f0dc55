package game

import (
	"fmt"

	"github.com/google/uuid"

	"battlesim/internal/config"
)

type GrowthID string

const (
	GrowthKillStack        GrowthID = "KillStack"
	GrowthPveWinStack      GrowthID = "PveWinStack"
	GrowthQuestRewardStack GrowthID = "QuestRewardStack"
)

type OwnedUnit struct {
	BaseUUID      uuid.UUID
	Level         int
	GrowthStacks  map[GrowthID]int32
	EquippedItems []uuid.UUID
}

type OwnedArtifact struct {
	BaseUUID uuid.UUID
}

// PlayerDeckInfo is one side's roster as handed over by the overworld layer.
// Positions are keyed by the unit's base uuid.
type PlayerDeckInfo struct {
	Units     []OwnedUnit
	Artifacts []OwnedArtifact
	Positions map[uuid.UUID]Position
}

func (d PlayerDeckInfo) ArtifactUUIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(d.Artifacts))
	for i, a := range d.Artifacts {
		out[i] = a.BaseUUID
	}
	return out
}

// EffectiveStats computes spawn stats: content base stats, kill-stack growth
// on attack, then Permanent modifiers of equipped items and side artifacts.
// Health starts full.
func (u OwnedUnit) EffectiveStats(data *GameData, artifacts []uuid.UUID) (UnitStats, error) {
	origin, ok := data.Abnormality(u.BaseUUID)
	if !ok {
		return UnitStats{}, fmt.Errorf("abnormality %s: %w", u.BaseUUID, ErrMissingResource)
	}
	if origin.AttackIntervalMs == 0 {
		return UnitStats{}, fmt.Errorf("abnormality %s: attack_interval_ms must be > 0: %w", u.BaseUUID, ErrInvalidUnitStats)
	}

	stats := NewUnitStats(origin.MaxHealth, origin.MaxHealth, origin.Attack, origin.Defense, origin.AttackIntervalMs)
	if v, ok := u.GrowthStacks[GrowthKillStack]; ok {
		stats.AddAttack(int64(v))
	}

	for _, itemUUID := range u.EquippedItems {
		item, ok := data.Equipment(itemUUID)
		if !ok {
			return UnitStats{}, fmt.Errorf("equipment %s: %w", itemUUID, ErrMissingResource)
		}
		stats.ApplyModifiers(item.TriggeredEffects.PermanentModifiers())
	}
	for _, artifactUUID := range artifacts {
		artifact, ok := data.Artifact(artifactUUID)
		if !ok {
			return UnitStats{}, fmt.Errorf("artifact %s: %w", artifactUUID, ErrMissingResource)
		}
		stats.ApplyModifiers(artifact.TriggeredEffects.PermanentModifiers())
	}

	stats.CurrentHealth = stats.MaxHealth
	return stats, nil
}

// DecksFromConfig converts a YAML battle setup into both decks.
func DecksFromConfig(bc *config.BattleConfig) (PlayerDeckInfo, PlayerDeckInfo, error) {
	player, err := deckFromConfig(bc.Player)
	if err != nil {
		return PlayerDeckInfo{}, PlayerDeckInfo{}, fmt.Errorf("player deck: %w", err)
	}
	opponent, err := deckFromConfig(bc.Opponent)
	if err != nil {
		return PlayerDeckInfo{}, PlayerDeckInfo{}, fmt.Errorf("opponent deck: %w", err)
	}
	return player, opponent, nil
}

func deckFromConfig(def config.DeckDef) (PlayerDeckInfo, error) {
	deck := PlayerDeckInfo{Positions: map[uuid.UUID]Position{}}
	for _, u := range def.Units {
		base, err := uuid.Parse(u.UUID)
		if err != nil {
			return PlayerDeckInfo{}, fmt.Errorf("unit %q: %w", u.UUID, err)
		}
		unit := OwnedUnit{BaseUUID: base, Level: u.Level}
		if u.KillStack != 0 {
			unit.GrowthStacks = map[GrowthID]int32{GrowthKillStack: u.KillStack}
		}
		for _, it := range u.Items {
			itemID, err := uuid.Parse(it)
			if err != nil {
				return PlayerDeckInfo{}, fmt.Errorf("unit %q item %q: %w", u.UUID, it, err)
			}
			unit.EquippedItems = append(unit.EquippedItems, itemID)
		}
		deck.Units = append(deck.Units, unit)
		deck.Positions[base] = Position{X: u.Position[0], Y: u.Position[1]}
	}
	for _, a := range def.Artifacts {
		id, err := uuid.Parse(a)
		if err != nil {
			return PlayerDeckInfo{}, fmt.Errorf("artifact %q: %w", a, err)
		}
		deck.Artifacts = append(deck.Artifacts, OwnedArtifact{BaseUUID: id})
	}
	return deck, nil
}
