package timeline

import (
	"github.com/google/uuid"

	"battlesim/internal/game"
)

type EventType string

const (
	TypeBattleStart     EventType = "BattleStart"
	TypeArtifactSpawned EventType = "ArtifactSpawned"
	TypeItemSpawned     EventType = "ItemSpawned"
	TypeUnitSpawned     EventType = "UnitSpawned"
	TypeAttack          EventType = "Attack"
	TypeAutoCastStart   EventType = "AutoCastStart"
	TypeAutoCastEnd     EventType = "AutoCastEnd"
	TypeAbilityCast     EventType = "AbilityCast"
	TypeBuffApplied     EventType = "BuffApplied"
	TypeBuffTick        EventType = "BuffTick"
	TypeBuffExpired     EventType = "BuffExpired"
	TypeHpChanged       EventType = "HpChanged"
	TypeStatChanged     EventType = "StatChanged"
	TypeUnitDied        EventType = "UnitDied"
	TypeBattleEnd       EventType = "BattleEnd"
)

// Event is one timeline payload. Every implementation is a comparable value
// type so recorded outcomes can be matched with ==.
type Event interface {
	EventType() EventType
}

type AttackKind string

const (
	AttackAuto      AttackKind = "Auto"
	AttackTriggered AttackKind = "Triggered"
)

type HpChangeReason string

const (
	ReasonBasicAttack HpChangeReason = "BasicAttack"
	ReasonCommand     HpChangeReason = "Command"
)

type BattleStart struct {
	Width  uint8 `json:"width"`
	Height uint8 `json:"height"`
}

type ArtifactSpawned struct {
	ArtifactInstanceID uuid.UUID `json:"artifact_instance_id"`
	Owner              game.Side `json:"owner"`
	BaseUUID           uuid.UUID `json:"base_uuid"`
}

type ItemSpawned struct {
	ItemInstanceID      uuid.UUID `json:"item_instance_id"`
	Owner               game.Side `json:"owner"`
	OwnerUnitInstanceID uuid.UUID `json:"owner_unit_instance_id"`
	BaseUUID            uuid.UUID `json:"base_uuid"`
}

type UnitSpawned struct {
	UnitInstanceID uuid.UUID      `json:"unit_instance_id"`
	Owner          game.Side      `json:"owner"`
	BaseUUID       uuid.UUID      `json:"base_uuid"`
	Position       game.Position  `json:"position"`
	Stats          game.UnitStats `json:"stats"`
}

// Attack.Kind is empty only in hand-built or legacy logs.
type Attack struct {
	AttackerInstanceID uuid.UUID  `json:"attacker_instance_id"`
	TargetInstanceID   uuid.UUID  `json:"target_instance_id"`
	Kind               AttackKind `json:"kind,omitempty"`
}

type AutoCastStart struct {
	CasterInstanceID uuid.UUID      `json:"caster_instance_id"`
	AbilityID        game.AbilityID `json:"ability_id,omitempty"`
	TargetInstanceID uuid.NullUUID  `json:"target_instance_id"`
}

type AutoCastEnd struct {
	CasterInstanceID uuid.UUID `json:"caster_instance_id"`
}

type AbilityCast struct {
	AbilityID        game.AbilityID `json:"ability_id"`
	CasterInstanceID uuid.UUID      `json:"caster_instance_id"`
	TargetInstanceID uuid.NullUUID  `json:"target_instance_id"`
}

type BuffApplied struct {
	CasterInstanceID uuid.UUID   `json:"caster_instance_id"`
	TargetInstanceID uuid.UUID   `json:"target_instance_id"`
	BuffID           game.BuffID `json:"buff_id"`
	DurationMs       uint64      `json:"duration_ms"`
}

type BuffTick struct {
	CasterInstanceID uuid.UUID   `json:"caster_instance_id"`
	TargetInstanceID uuid.UUID   `json:"target_instance_id"`
	BuffID           game.BuffID `json:"buff_id"`
}

type BuffExpired struct {
	CasterInstanceID uuid.UUID   `json:"caster_instance_id"`
	TargetInstanceID uuid.UUID   `json:"target_instance_id"`
	BuffID           game.BuffID `json:"buff_id"`
}

type HpChanged struct {
	SourceInstanceID uuid.NullUUID  `json:"source_instance_id"`
	TargetInstanceID uuid.UUID      `json:"target_instance_id"`
	Delta            int64          `json:"delta"`
	HpBefore         uint32         `json:"hp_before"`
	HpAfter          uint32         `json:"hp_after"`
	Reason           HpChangeReason `json:"reason"`
}

type StatChanged struct {
	SourceInstanceID uuid.NullUUID     `json:"source_instance_id"`
	TargetInstanceID uuid.UUID         `json:"target_instance_id"`
	Modifier         game.StatModifier `json:"modifier"`
	StatsBefore      game.UnitStats    `json:"stats_before"`
	StatsAfter       game.UnitStats    `json:"stats_after"`
}

type UnitDied struct {
	UnitInstanceID   uuid.UUID     `json:"unit_instance_id"`
	Owner            game.Side     `json:"owner"`
	KillerInstanceID uuid.NullUUID `json:"killer_instance_id"`
}

type BattleEnd struct {
	Winner game.Winner `json:"winner"`
}

func (BattleStart) EventType() EventType     { return TypeBattleStart }
func (ArtifactSpawned) EventType() EventType { return TypeArtifactSpawned }
func (ItemSpawned) EventType() EventType     { return TypeItemSpawned }
func (UnitSpawned) EventType() EventType     { return TypeUnitSpawned }
func (Attack) EventType() EventType          { return TypeAttack }
func (AutoCastStart) EventType() EventType   { return TypeAutoCastStart }
func (AutoCastEnd) EventType() EventType     { return TypeAutoCastEnd }
func (AbilityCast) EventType() EventType     { return TypeAbilityCast }
func (BuffApplied) EventType() EventType     { return TypeBuffApplied }
func (BuffTick) EventType() EventType        { return TypeBuffTick }
func (BuffExpired) EventType() EventType     { return TypeBuffExpired }
func (HpChanged) EventType() EventType       { return TypeHpChanged }
func (StatChanged) EventType() EventType     { return TypeStatChanged }
func (UnitDied) EventType() EventType        { return TypeUnitDied }
func (BattleEnd) EventType() EventType       { return TypeBattleEnd }

// IsOutcome reports whether the event is a state change attributed to a
// decision.
func IsOutcome(ev Event) bool {
	switch ev.(type) {
	case HpChanged, StatChanged, UnitDied:
		return true
	}
	return false
}

// IsDecision reports whether the event may be the cause of outcomes.
func IsDecision(ev Event) bool {
	switch ev.(type) {
	case Attack, AbilityCast, BuffTick:
		return true
	}
	return false
}

// ReferencedUnits lists every unit instance id the event mentions, in field
// order.
func ReferencedUnits(ev Event) []uuid.UUID {
	withOptional := func(ids []uuid.UUID, opt uuid.NullUUID) []uuid.UUID {
		if opt.Valid {
			return append(ids, opt.UUID)
		}
		return ids
	}
	switch e := ev.(type) {
	case UnitSpawned:
		return []uuid.UUID{e.UnitInstanceID}
	case ItemSpawned:
		return []uuid.UUID{e.OwnerUnitInstanceID}
	case Attack:
		return []uuid.UUID{e.AttackerInstanceID, e.TargetInstanceID}
	case AutoCastStart:
		return withOptional([]uuid.UUID{e.CasterInstanceID}, e.TargetInstanceID)
	case AutoCastEnd:
		return []uuid.UUID{e.CasterInstanceID}
	case AbilityCast:
		return withOptional([]uuid.UUID{e.CasterInstanceID}, e.TargetInstanceID)
	case BuffApplied:
		return []uuid.UUID{e.CasterInstanceID, e.TargetInstanceID}
	case BuffTick:
		return []uuid.UUID{e.CasterInstanceID, e.TargetInstanceID}
	case BuffExpired:
		return []uuid.UUID{e.CasterInstanceID, e.TargetInstanceID}
	case HpChanged:
		if e.SourceInstanceID.Valid {
			return []uuid.UUID{e.SourceInstanceID.UUID, e.TargetInstanceID}
		}
		return []uuid.UUID{e.TargetInstanceID}
	case StatChanged:
		if e.SourceInstanceID.Valid {
			return []uuid.UUID{e.SourceInstanceID.UUID, e.TargetInstanceID}
		}
		return []uuid.UUID{e.TargetInstanceID}
	case UnitDied:
		return withOptional([]uuid.UUID{e.UnitInstanceID}, e.KillerInstanceID)
	}
	return nil
}

// SomeID wraps a present optional instance id.
func SomeID(id uuid.UUID) uuid.NullUUID { return uuid.NullUUID{UUID: id, Valid: true} }
