package combat

import (
	"fmt"

	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

// buildSide spawns one deck's artifacts, units and items into the runtime
// maps. Duplicate unit or artifact base uuids are invalid actions.
func (c *BattleCore) buildSide(side game.Side, deck game.PlayerDeckInfo) error {
	seenArtifacts := map[uuid.UUID]bool{}
	for i, a := range deck.Artifacts {
		if seenArtifacts[a.BaseUUID] {
			return fmt.Errorf("%s artifact %s listed twice: %w", side, a.BaseUUID, game.ErrInvalidAction)
		}
		seenArtifacts[a.BaseUUID] = true
		if _, ok := c.data.Artifact(a.BaseUUID); !ok {
			return fmt.Errorf("%s artifact %s: %w", side, a.BaseUUID, game.ErrMissingResource)
		}
		artifactID := MakeArtifactInstanceID(a.BaseUUID, side, uint32(i))
		if !c.claimID(artifactID) {
			return fmt.Errorf("%s artifact %s: instance id %s already in use: %w", side, a.BaseUUID, artifactID, game.ErrInvalidAction)
		}
		c.triggers.AddArtifact(RuntimeArtifact{
			InstanceID: artifactID,
			Owner:      side,
			BaseUUID:   a.BaseUUID,
		})
	}

	artifactUUIDs := deck.ArtifactUUIDs()
	seenUnits := map[uuid.UUID]bool{}
	for _, owned := range deck.Units {
		if seenUnits[owned.BaseUUID] {
			return fmt.Errorf("%s unit %s listed twice: %w", side, owned.BaseUUID, game.ErrInvalidAction)
		}
		seenUnits[owned.BaseUUID] = true

		stats, err := owned.EffectiveStats(c.data, artifactUUIDs)
		if err != nil {
			return fmt.Errorf("%s unit: %w", side, err)
		}
		pos, ok := deck.Positions[owned.BaseUUID]
		if !ok {
			return fmt.Errorf("%s unit %s has no position: %w", side, owned.BaseUUID, game.ErrUnitNotFound)
		}
		if !c.opts.AllowDuplicateEquip && hasDuplicate(owned.EquippedItems) {
			return fmt.Errorf("%s unit %s equips the same item twice: %w", side, owned.BaseUUID, game.ErrInvalidAction)
		}

		id := MakeInstanceID(owned.BaseUUID, side, 0)
		if !c.claimID(id) {
			return fmt.Errorf("%s unit %s: instance id %s already in use: %w", side, owned.BaseUUID, id, game.ErrInvalidAction)
		}
		if err := c.field.Place(id, pos); err != nil {
			return fmt.Errorf("%s unit %s: %w", side, owned.BaseUUID, err)
		}

		unit := &RuntimeUnit{
			InstanceID:      id,
			Owner:           side,
			BaseUUID:        owned.BaseUUID,
			Stats:           stats,
			Position:        pos,
			ResonanceMax:    game.DefaultResonanceMax,
			ResonanceLockMs: game.DefaultResonanceLockMs,
		}
		if meta, ok := c.data.Abnormality(owned.BaseUUID); ok {
			unit.ResonanceMax = max(meta.ResonanceMax, 1)
			unit.ResonanceLockMs = meta.ResonanceLockMs
			unit.ResonanceCurrent = min(meta.ResonanceStart, unit.ResonanceMax)
		}
		c.units[id] = unit
		c.triggers.AddUnit(id, side)

		for i, equip := range owned.EquippedItems {
			c.triggers.AddItem(RuntimeItem{
				InstanceID:  c.itemInstanceID(equip, side, id, uint32(i)),
				Owner:       side,
				OwnerUnitID: id,
				BaseUUID:    equip,
			})
		}
	}
	return nil
}

// claimID reserves id for this battle and reports whether it was free.
func (c *BattleCore) claimID(id uuid.UUID) bool {
	if c.instanceIDs[id] {
		return false
	}
	c.instanceIDs[id] = true
	return true
}

// itemInstanceID derives the item id and, when an earlier entity already
// holds it, steps the salt until the id is free. Distinct salts always give
// distinct ids, so this ends within one step per claimed id.
func (c *BattleCore) itemInstanceID(equip uuid.UUID, side game.Side, owner uuid.UUID, salt uint32) uuid.UUID {
	id := MakeItemInstanceID(equip, side, owner, salt)
	for !c.claimID(id) {
		salt += itemSaltStep
		id = MakeItemInstanceID(equip, side, owner, salt)
	}
	return id
}

func hasDuplicate(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}

// recordSpawns writes BattleStart and every spawn entry, each group ordered
// by instance id bytes.
func (c *BattleCore) recordSpawns() {
	c.record(0, timeline.BattleStart{Width: c.field.Width, Height: c.field.Height})
	for _, u := range c.sortedUnits() {
		c.record(0, timeline.UnitSpawned{
			UnitInstanceID: u.InstanceID,
			Owner:          u.Owner,
			BaseUUID:       u.BaseUUID,
			Position:       u.Position,
			Stats:          u.Stats,
		})
	}
	for _, a := range c.triggers.Artifacts() {
		c.record(0, timeline.ArtifactSpawned{ArtifactInstanceID: a.InstanceID, Owner: a.Owner, BaseUUID: a.BaseUUID})
	}
	for _, it := range c.triggers.Items() {
		c.record(0, timeline.ItemSpawned{
			ItemInstanceID:      it.InstanceID,
			Owner:               it.Owner,
			OwnerUnitInstanceID: it.OwnerUnitID,
			BaseUUID:            it.BaseUUID,
		})
	}
}
