package game

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"battlesim/internal/config"
)

const (
	DefaultResonanceMax    uint32 = 100
	DefaultResonanceLockMs uint64 = 1000
)

type AbnormalityMetadata struct {
	ID               string
	UUID             uuid.UUID
	Name             string
	RiskLevel        string
	Price            int
	MaxHealth        uint32
	Attack           uint32
	Defense          uint32
	AttackIntervalMs uint64
	Abilities        []AbilityID
	ResonanceStart   uint32
	ResonanceMax     uint32
	ResonanceLockMs  uint64
}

// FirstAbility is the ability used for autocasts.
func (m *AbnormalityMetadata) FirstAbility() (AbilityID, bool) {
	if m == nil || len(m.Abilities) == 0 {
		return "", false
	}
	return m.Abilities[0], true
}

type EquipmentMetadata struct {
	ID               string
	UUID             uuid.UUID
	Name             string
	Price            int
	TriggeredEffects TriggeredEffects
}

type ArtifactMetadata struct {
	ID               string
	UUID             uuid.UUID
	Name             string
	Price            int
	TriggeredEffects TriggeredEffects
}

// GameData is the read-only content database shared by every battle.
type GameData struct {
	abnormalities map[uuid.UUID]*AbnormalityMetadata
	equipment     map[uuid.UUID]*EquipmentMetadata
	artifacts     map[uuid.UUID]*ArtifactMetadata
}

func NewGameData(abnormalities []AbnormalityMetadata, equipment []EquipmentMetadata, artifacts []ArtifactMetadata) *GameData {
	d := &GameData{
		abnormalities: make(map[uuid.UUID]*AbnormalityMetadata, len(abnormalities)),
		equipment:     make(map[uuid.UUID]*EquipmentMetadata, len(equipment)),
		artifacts:     make(map[uuid.UUID]*ArtifactMetadata, len(artifacts)),
	}
	for i := range abnormalities {
		d.abnormalities[abnormalities[i].UUID] = &abnormalities[i]
	}
	for i := range equipment {
		d.equipment[equipment[i].UUID] = &equipment[i]
	}
	for i := range artifacts {
		d.artifacts[artifacts[i].UUID] = &artifacts[i]
	}
	return d
}

func (d *GameData) Abnormality(id uuid.UUID) (*AbnormalityMetadata, bool) {
	if d == nil {
		return nil, false
	}
	m, ok := d.abnormalities[id]
	return m, ok
}

func (d *GameData) Equipment(id uuid.UUID) (*EquipmentMetadata, bool) {
	if d == nil {
		return nil, false
	}
	m, ok := d.equipment[id]
	return m, ok
}

func (d *GameData) Artifact(id uuid.UUID) (*ArtifactMetadata, bool) {
	if d == nil {
		return nil, false
	}
	m, ok := d.artifacts[id]
	return m, ok
}

func (d *GameData) AbnormalityUUIDs() []uuid.UUID { return sortedKeys(d.abnormalities) }
func (d *GameData) EquipmentUUIDs() []uuid.UUID   { return sortedKeys(d.equipment) }
func (d *GameData) ArtifactUUIDs() []uuid.UUID    { return sortedKeys(d.artifacts) }

func sortedKeys[V any](m map[uuid.UUID]V) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return out
}

// FromConfig converts loaded YAML tables into the content database.
func FromConfig(c *config.Content) (*GameData, error) {
	if c == nil {
		return NewGameData(nil, nil, nil), nil
	}
	abns := make([]AbnormalityMetadata, 0, len(c.Abnormalities.Abnormalities))
	for _, a := range c.Abnormalities.Abnormalities {
		id, err := uuid.Parse(a.UUID)
		if err != nil {
			return nil, fmt.Errorf("abnormality %q: %w", a.ID, err)
		}
		m := AbnormalityMetadata{
			ID:               a.ID,
			UUID:             id,
			Name:             a.Name,
			RiskLevel:        a.RiskLevel,
			Price:            a.Price,
			MaxHealth:        a.MaxHealth,
			Attack:           a.Attack,
			Defense:          a.Defense,
			AttackIntervalMs: a.AttackIntervalMs,
			ResonanceStart:   a.ResonanceStart,
			ResonanceMax:     a.ResonanceMax,
			ResonanceLockMs:  DefaultResonanceLockMs,
		}
		if m.ResonanceMax == 0 {
			m.ResonanceMax = DefaultResonanceMax
		}
		if a.ResonanceLockMs != nil {
			m.ResonanceLockMs = *a.ResonanceLockMs
		}
		for _, ab := range a.Abilities {
			m.Abilities = append(m.Abilities, AbilityID(ab))
		}
		abns = append(abns, m)
	}

	equips := make([]EquipmentMetadata, 0, len(c.Equipment.Equipment))
	for _, e := range c.Equipment.Equipment {
		id, err := uuid.Parse(e.UUID)
		if err != nil {
			return nil, fmt.Errorf("equipment %q: %w", e.ID, err)
		}
		fx, err := triggersFromConfig(e.Triggers)
		if err != nil {
			return nil, fmt.Errorf("equipment %q: %w", e.ID, err)
		}
		equips = append(equips, EquipmentMetadata{ID: e.ID, UUID: id, Name: e.Name, Price: e.Price, TriggeredEffects: fx})
	}

	arts := make([]ArtifactMetadata, 0, len(c.Artifacts.Artifacts))
	for _, a := range c.Artifacts.Artifacts {
		id, err := uuid.Parse(a.UUID)
		if err != nil {
			return nil, fmt.Errorf("artifact %q: %w", a.ID, err)
		}
		fx, err := triggersFromConfig(a.Triggers)
		if err != nil {
			return nil, fmt.Errorf("artifact %q: %w", a.ID, err)
		}
		arts = append(arts, ArtifactMetadata{ID: a.ID, UUID: id, Name: a.Name, Price: a.Price, TriggeredEffects: fx})
	}
	return NewGameData(abns, equips, arts), nil
}

func triggersFromConfig(tt config.TriggerTable) (TriggeredEffects, error) {
	out := TriggeredEffects{}
	for name, defs := range tt {
		trigger := TriggerType(name)
		switch trigger {
		case TriggerOnAttack, TriggerOnHit, TriggerOnKill, TriggerOnDeath, TriggerOnAllyDeath, TriggerPermanent:
		default:
			return nil, fmt.Errorf("unknown trigger %q", name)
		}
		for _, def := range defs {
			e, err := effectFromConfig(def)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out[trigger] = append(out[trigger], e)
		}
	}
	return out, nil
}

func effectFromConfig(def config.EffectDef) (Effect, error) {
	switch EffectKind(def.Type) {
	case EffectModifier:
		if def.Modifier == nil {
			return Effect{}, fmt.Errorf("modifier effect without modifier")
		}
		m, err := modifierFromConfig(*def.Modifier)
		if err != nil {
			return Effect{}, err
		}
		return ModifierEffect(m), nil
	case EffectBonusDamage:
		return BonusDamageEffect(def.Flat, def.Percent), nil
	case EffectHeal:
		return HealEffect(def.Flat, def.Percent), nil
	case EffectAbility:
		if def.Ability == "" {
			return Effect{}, fmt.Errorf("ability effect without ability")
		}
		return AbilityEffect(AbilityID(def.Ability)), nil
	case EffectApplyBuff:
		if def.Buff == "" {
			return Effect{}, fmt.Errorf("buff effect without buff")
		}
		return ApplyBuffEffect(def.Buff, def.DurationMs), nil
	}
	return Effect{}, fmt.Errorf("unknown effect type %q", def.Type)
}

func modifierFromConfig(def config.ModifierDef) (StatModifier, error) {
	m := StatModifier{Stat: StatID(def.Stat), Kind: ModifierKind(def.Kind), Value: def.Value}
	switch m.Stat {
	case StatMaxHealth, StatAttack, StatDefense, StatAttackIntervalMs:
	default:
		return StatModifier{}, fmt.Errorf("unknown stat %q", def.Stat)
	}
	switch m.Kind {
	case ModifierFlat, ModifierPercent:
	case "":
		m.Kind = ModifierFlat
	default:
		return StatModifier{}, fmt.Errorf("unknown modifier kind %q", def.Kind)
	}
	return m, nil
}
