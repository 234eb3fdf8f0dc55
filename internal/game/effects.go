package game

type TriggerType string

const (
	TriggerOnAttack    TriggerType = "OnAttack"
	TriggerOnHit       TriggerType = "OnHit"
	TriggerOnKill      TriggerType = "OnKill"
	TriggerOnDeath     TriggerType = "OnDeath"
	TriggerOnAllyDeath TriggerType = "OnAllyDeath"
	TriggerPermanent   TriggerType = "Permanent"
)

type EffectKind string

const (
	EffectModifier    EffectKind = "Modifier"
	EffectBonusDamage EffectKind = "BonusDamage"
	EffectHeal        EffectKind = "Heal"
	EffectAbility     EffectKind = "Ability"
	EffectApplyBuff   EffectKind = "ApplyBuff"
)

// Effect is one entry of an item or artifact trigger table. Only the fields
// relevant to Kind are set.
type Effect struct {
	Kind       EffectKind
	Modifier   StatModifier
	Flat       int32
	Percent    int32
	Ability    AbilityID
	BuffName   string
	DurationMs uint64
}

func ModifierEffect(m StatModifier) Effect { return Effect{Kind: EffectModifier, Modifier: m} }

func BonusDamageEffect(flat, percent int32) Effect {
	return Effect{Kind: EffectBonusDamage, Flat: flat, Percent: percent}
}

func HealEffect(flat, percent int32) Effect {
	return Effect{Kind: EffectHeal, Flat: flat, Percent: percent}
}

func AbilityEffect(id AbilityID) Effect { return Effect{Kind: EffectAbility, Ability: id} }

func ApplyBuffEffect(name string, durationMs uint64) Effect {
	return Effect{Kind: EffectApplyBuff, BuffName: name, DurationMs: durationMs}
}

type TriggeredEffects map[TriggerType][]Effect

// PermanentModifiers returns the stat modifiers applied once at spawn.
func (t TriggeredEffects) PermanentModifiers() []StatModifier {
	var out []StatModifier
	for _, e := range t[TriggerPermanent] {
		if e.Kind == EffectModifier {
			out = append(out, e.Modifier)
		}
	}
	return out
}
