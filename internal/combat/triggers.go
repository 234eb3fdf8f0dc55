package combat

import (
	"slices"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

// RuntimeArtifact is a side-wide effect carrier. Immutable after spawn.
type RuntimeArtifact struct {
	InstanceID uuid.UUID
	Owner      game.Side
	BaseUUID   uuid.UUID
}

// RuntimeItem is equipment bound to one unit instance.
type RuntimeItem struct {
	InstanceID  uuid.UUID
	Owner       game.Side
	OwnerUnitID uuid.UUID
	BaseUUID    uuid.UUID
}

// TriggerIndex answers trigger lookups for one battle roster. Both the live
// core and the replayer build one from their own view of the spawned
// entities.
type TriggerIndex struct {
	data      *game.GameData
	owners    map[uuid.UUID]game.Side
	artifacts []RuntimeArtifact
	items     []RuntimeItem
}

func NewTriggerIndex(data *game.GameData) *TriggerIndex {
	return &TriggerIndex{data: data, owners: map[uuid.UUID]game.Side{}}
}

func (ti *TriggerIndex) AddUnit(id uuid.UUID, owner game.Side) { ti.owners[id] = owner }

// RemoveUnit forgets the unit and every item it carried.
func (ti *TriggerIndex) RemoveUnit(id uuid.UUID) {
	delete(ti.owners, id)
	ti.items = slices.DeleteFunc(ti.items, func(it RuntimeItem) bool { return it.OwnerUnitID == id })
}

func (ti *TriggerIndex) AddArtifact(a RuntimeArtifact) {
	i, _ := slices.BinarySearchFunc(ti.artifacts, a.InstanceID, func(x RuntimeArtifact, id uuid.UUID) int {
		return compareIDs(x.InstanceID, id)
	})
	ti.artifacts = slices.Insert(ti.artifacts, i, a)
}

func (ti *TriggerIndex) AddItem(it RuntimeItem) {
	i, _ := slices.BinarySearchFunc(ti.items, it.InstanceID, func(x RuntimeItem, id uuid.UUID) int {
		return compareIDs(x.InstanceID, id)
	})
	ti.items = slices.Insert(ti.items, i, it)
}

func (ti *TriggerIndex) HasItem(id uuid.UUID) bool {
	return slices.ContainsFunc(ti.items, func(it RuntimeItem) bool { return it.InstanceID == id })
}

func (ti *TriggerIndex) HasArtifact(id uuid.UUID) bool {
	return slices.ContainsFunc(ti.artifacts, func(a RuntimeArtifact) bool { return a.InstanceID == id })
}

func (ti *TriggerIndex) Artifacts() []RuntimeArtifact { return slices.Clone(ti.artifacts) }
func (ti *TriggerIndex) Items() []RuntimeItem         { return slices.Clone(ti.items) }

// CollectAllTriggers returns the side's artifact effects followed by the
// unit's item effects, each group ordered by instance id bytes. Unknown units
// yield nil.
func (ti *TriggerIndex) CollectAllTriggers(unitID uuid.UUID, trigger game.TriggerType) []game.Effect {
	owner, ok := ti.owners[unitID]
	if !ok {
		return nil
	}
	var out []game.Effect
	for _, a := range ti.artifacts {
		if a.Owner != owner {
			continue
		}
		if meta, ok := ti.data.Artifact(a.BaseUUID); ok {
			out = append(out, meta.TriggeredEffects[trigger]...)
		}
	}
	for _, it := range ti.items {
		if it.OwnerUnitID != unitID {
			continue
		}
		if meta, ok := ti.data.Equipment(it.BaseUUID); ok {
			out = append(out, meta.TriggeredEffects[trigger]...)
		}
	}
	return out
}
