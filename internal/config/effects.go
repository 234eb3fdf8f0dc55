package config

// TriggerTable maps a trigger name (OnAttack, OnHit, OnKill, OnDeath,
// OnAllyDeath, Permanent) to the effects fired by it.
type TriggerTable map[string][]EffectDef

type EffectDef struct {
	Type       string       `yaml:"type"`
	Modifier   *ModifierDef `yaml:"modifier"`
	Flat       int32        `yaml:"flat"`
	Percent    int32        `yaml:"percent"`
	Ability    string       `yaml:"ability"`
	Buff       string       `yaml:"buff"`
	DurationMs uint64       `yaml:"duration_ms"`
	Note       string       `yaml:"note"`
}

type ModifierDef struct {
	Stat  string `yaml:"stat"`
	Kind  string `yaml:"kind"`
	Value int32  `yaml:"value"`
}
