package validation

import (
	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

type spawnIndex struct {
	counts     ExpectedCounts
	unitIndex  map[uuid.UUID]int
	unitTimeMs map[uuid.UUID]uint64
	unitStats  map[uuid.UUID]game.UnitStats
	unitOwner  map[uuid.UUID]game.Side
	itemOwner  map[uuid.UUID]game.Side
	artOwner   map[uuid.UUID]game.Side
}

func extractSpawns(tl timeline.Timeline, r *report) *spawnIndex {
	s := &spawnIndex{
		unitIndex:  map[uuid.UUID]int{},
		unitTimeMs: map[uuid.UUID]uint64{},
		unitStats:  map[uuid.UUID]game.UnitStats{},
		unitOwner:  map[uuid.UUID]game.Side{},
		itemOwner:  map[uuid.UUID]game.Side{},
		artOwner:   map[uuid.UUID]game.Side{},
	}
	for i, e := range tl.Entries {
		switch ev := e.Event.(type) {
		case timeline.UnitSpawned:
			s.counts.Units++
			id := ev.UnitInstanceID
			if _, dup := s.unitOwner[id]; dup {
				r.add(DuplicateUnitSpawn, i, "unit %s spawned multiple times", id)
			} else {
				s.unitIndex[id] = i
				s.unitTimeMs[id] = e.TimeMs
				s.unitStats[id] = ev.Stats
			}
			s.unitOwner[id] = ev.Owner
		case timeline.ItemSpawned:
			s.counts.Items++
			if _, dup := s.itemOwner[ev.ItemInstanceID]; dup {
				r.add(DuplicateItemSpawn, i, "item %s spawned multiple times", ev.ItemInstanceID)
			}
			s.itemOwner[ev.ItemInstanceID] = ev.Owner
			side, ok := s.unitOwner[ev.OwnerUnitInstanceID]
			if !ok {
				r.add(UnknownUnitReference, i, "item %s spawned for unknown unit %s", ev.ItemInstanceID, ev.OwnerUnitInstanceID)
				continue
			}
			if side != ev.Owner {
				r.add(UnknownUnitReference, i, "item %s owner side %s mismatches owner unit side %s (unit=%s)",
					ev.ItemInstanceID, ev.Owner, side, ev.OwnerUnitInstanceID)
			}
		case timeline.ArtifactSpawned:
			s.counts.Artifacts++
			if _, dup := s.artOwner[ev.ArtifactInstanceID]; dup {
				r.add(DuplicateArtifactSpawn, i, "artifact %s spawned multiple times", ev.ArtifactInstanceID)
			}
			s.artOwner[ev.ArtifactInstanceID] = ev.Owner
		}
	}
	return s
}

func checkSpawnCounts(actual ExpectedCounts, expected *ExpectedCounts, r *report) {
	if expected == nil {
		return
	}
	if actual.Units != expected.Units {
		r.add(UnitSpawnCountMismatch, NoEntry, "UnitSpawned count mismatch: expected=%d, actual=%d", expected.Units, actual.Units)
	}
	if actual.Items != expected.Items {
		r.add(ItemSpawnCountMismatch, NoEntry, "ItemSpawned count mismatch: expected=%d, actual=%d", expected.Items, actual.Items)
	}
	if actual.Artifacts != expected.Artifacts {
		r.add(ArtifactSpawnCountMismatch, NoEntry, "ArtifactSpawned count mismatch: expected=%d, actual=%d", expected.Artifacts, actual.Artifacts)
	}
}

// checkSpawnOrder requires every unit an entry mentions to have spawned at
// an earlier index and no later in time.
func checkSpawnOrder(tl timeline.Timeline, s *spawnIndex, r *report) {
	for i, e := range tl.Entries {
		if _, ok := e.Event.(timeline.UnitSpawned); ok {
			continue
		}
		for _, id := range timeline.ReferencedUnits(e.Event) {
			at, ok := s.unitIndex[id]
			if !ok {
				r.add(UnknownUnitReference, i, "%s references unknown unit %s", e.Event.EventType(), id)
				continue
			}
			if at > i || s.unitTimeMs[id] > e.TimeMs {
				r.add(UnitReferencedBeforeSpawn, i, "unit %s referenced before spawn (ref_index=%d ref_time_ms=%d spawn_index=%d spawn_time_ms=%d)",
					id, i, e.TimeMs, at, s.unitTimeMs[id])
			}
		}
	}
}
