package combat

import "battlesim/internal/game"

type TargetScope int

const (
	ScopeSelf TargetScope = iota
	ScopeAllySingle
	ScopeAllyAll
	ScopeEnemySingle
	ScopeEnemyAll
)

type SkillEffectKind int

const (
	SkillDirectDamage SkillEffectKind = iota
	SkillHeal
	SkillExtraAttack
	SkillStatModifiers
)

type SkillEffect struct {
	Kind      SkillEffectKind
	Amount    int32
	Count     int
	Modifiers []game.StatModifier
	Target    TargetScope
}

type SkillTemplate struct {
	ID         game.AbilityID
	CooldownMs uint64
	Effects    []SkillEffect
}

// SkillBook maps ability ids to their templates.
type SkillBook struct {
	byID map[game.AbilityID]SkillTemplate
}

func NewSkillBook() *SkillBook {
	sb := &SkillBook{byID: map[game.AbilityID]SkillTemplate{}}
	for _, tpl := range defaultSkills() {
		sb.Register(tpl)
	}
	return sb
}

func (sb *SkillBook) Register(tpl SkillTemplate) { sb.byID[tpl.ID] = tpl }

func (sb *SkillBook) Template(id game.AbilityID) (SkillTemplate, bool) {
	if sb == nil {
		return SkillTemplate{}, false
	}
	tpl, ok := sb.byID[id]
	return tpl, ok
}

func defaultSkills() []SkillTemplate {
	return []SkillTemplate{
		{
			ID:      game.AbilityScorchedExplosion,
			Effects: []SkillEffect{{Kind: SkillDirectDamage, Amount: 30, Target: ScopeEnemyAll}},
		},
		{
			ID:         game.AbilityPlagueMassHeal,
			CooldownMs: 5000,
			Effects:    []SkillEffect{{Kind: SkillHeal, Amount: 20, Target: ScopeAllyAll}},
		},
		{
			ID:      game.AbilityRedShoesBerserk,
			Effects: []SkillEffect{{Kind: SkillDirectDamage, Amount: 15, Target: ScopeEnemySingle}},
		},
		{
			ID:         game.AbilityFragmentOfUniverseNova,
			CooldownMs: 10000,
			Effects:    []SkillEffect{{Kind: SkillDirectDamage, Amount: 25, Target: ScopeEnemyAll}},
		},
		{
			ID: game.AbilityFairyFestivalBlessing,
			Effects: []SkillEffect{{
				Kind:      SkillStatModifiers,
				Modifiers: []game.StatModifier{{Stat: game.StatAttack, Kind: game.ModifierFlat, Value: 5}},
				Target:    ScopeAllyAll,
			}},
		},
		{
			ID:         game.AbilityUnknownDistortionStrike,
			CooldownMs: 8000,
			Effects:    []SkillEffect{{Kind: SkillDirectDamage, Amount: 50, Target: ScopeEnemySingle}},
		},
	}
}
