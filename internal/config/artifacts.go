package config

type ArtifactsConfig struct {
	Artifacts []ArtifactDef `yaml:"artifacts"`
}

type ArtifactDef struct {
	ID       string       `yaml:"id"`
	UUID     string       `yaml:"uuid"`
	Name     string       `yaml:"name"`
	Price    int          `yaml:"price"`
	Triggers TriggerTable `yaml:"triggers"`
	Note     string       `yaml:"note"`
}
