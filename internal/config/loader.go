package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	AbnormalitiesFile = "abnormalities.yaml"
	EquipmentFile     = "equipment.yaml"
	ArtifactsFile     = "artifacts.yaml"

	defaultFieldWidth  = 8
	defaultFieldHeight = 8
)

// Content bundles the static content tables read from one directory.
type Content struct {
	Abnormalities AbnormalitiesConfig
	Equipment     EquipmentConfig
	Artifacts     ArtifactsConfig
}

func loadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func LoadAll(dir string) (*Content, error) {
	var c Content
	if err := loadYAML(filepath.Join(dir, AbnormalitiesFile), &c.Abnormalities); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, EquipmentFile), &c.Equipment); err != nil {
		return nil, err
	}
	// artifacts are optional; a content set without them is still playable
	if err := loadYAML(filepath.Join(dir, ArtifactsFile), &c.Artifacts); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return &c, nil
}

func LoadBattle(path string) (*BattleConfig, error) {
	var bc BattleConfig
	if err := loadYAML(path, &bc); err != nil {
		return nil, err
	}
	if bc.Width == 0 {
		bc.Width = defaultFieldWidth
	}
	if bc.Height == 0 {
		bc.Height = defaultFieldHeight
	}
	return &bc, nil
}
