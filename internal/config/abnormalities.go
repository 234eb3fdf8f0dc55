package config

type AbnormalitiesConfig struct {
	Abnormalities []AbnormalityDef `yaml:"abnormalities"`
}

type AbnormalityDef struct {
	ID               string   `yaml:"id"`
	UUID             string   `yaml:"uuid"`
	Name             string   `yaml:"name"`
	RiskLevel        string   `yaml:"risk_level"`
	Price            int      `yaml:"price"`
	MaxHealth        uint32   `yaml:"max_health"`
	Attack           uint32   `yaml:"attack"`
	Defense          uint32   `yaml:"defense"`
	AttackIntervalMs uint64   `yaml:"attack_interval_ms"`
	Abilities        []string `yaml:"abilities"`
	ResonanceStart   uint32   `yaml:"resonance_start"`
	ResonanceMax     uint32   `yaml:"resonance_max"`
	ResonanceLockMs  *uint64  `yaml:"resonance_lock_ms"`
	Note             string   `yaml:"note"`
}
