package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresetsYaml []byte

type ModelTypePreset struct {
	DefaultSteps           int     `yaml:"default_steps"`
	DefaultGuidance        float64 `yaml:"default_guidance"`
	DefaultResolution      int     `yaml:"default_resolution"`
	DefaultTrainingSteps   int     `yaml:"default_training_steps"`
	SecondsPerTrainingStep float64 `yaml:"seconds_per_training_step"`
}

// Presets holds per-model-type defaults for training and generation. The
// built-in presets can be overridden with a yaml file at startup.
type Presets struct {
	ModelTypes map[string]ModelTypePreset `yaml:"model_types"`
}

func DefaultPresets() Presets {
	presets, err := parsePresets(defaultPresetsYaml)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in presets: %v", err))
	}
	return presets
}

func LoadPresets(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Presets{}, fmt.Errorf("error reading presets file %v: %w", path, err)
	}
	return parsePresets(data)
}

func parsePresets(data []byte) (Presets, error) {
	var presets Presets
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return Presets{}, fmt.Errorf("error parsing presets: %w", err)
	}
	if len(presets.ModelTypes) == 0 {
		return Presets{}, fmt.Errorf("presets must define at least one model type")
	}
	return presets, nil
}

func (p Presets) Get(modelType string) (ModelTypePreset, error) {
	preset, ok := p.ModelTypes[modelType]
	if !ok {
		return ModelTypePreset{}, fmt.Errorf("unknown model type '%v'", modelType)
	}
	return preset, nil
}

func (p ModelTypePreset) EstimatedMinutes(trainingSteps int) int {
	minutes := float64(trainingSteps) * p.SecondsPerTrainingStep / 60
	if minutes < 1 {
		return 1
	}
	return int(minutes)
}
