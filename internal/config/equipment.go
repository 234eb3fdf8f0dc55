package config

type EquipmentConfig struct {
	Equipment []EquipmentDef `yaml:"equipment"`
}

type EquipmentDef struct {
	ID       string       `yaml:"id"`
	UUID     string       `yaml:"uuid"`
	Name     string       `yaml:"name"`
	Price    int          `yaml:"price"`
	Triggers TriggerTable `yaml:"triggers"`
	Note     string       `yaml:"note"`
}
