package config

// BattleConfig describes one matchup: field size and both decks.
type BattleConfig struct {
	Width               uint8   `yaml:"width"`
	Height              uint8   `yaml:"height"`
	AllowDuplicateEquip bool    `yaml:"allow_duplicate_equip"`
	Player              DeckDef `yaml:"player"`
	Opponent            DeckDef `yaml:"opponent"`
}

type DeckDef struct {
	Units     []DeckUnitDef `yaml:"units"`
	Artifacts []string      `yaml:"artifacts"`
}

type DeckUnitDef struct {
	UUID      string   `yaml:"uuid"`
	Level     int      `yaml:"level"`
	KillStack int32    `yaml:"kill_stack"`
	Items     []string `yaml:"items"`
	Position  [2]int32 `yaml:"position"`
}
