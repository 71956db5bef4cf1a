package config

import "fmt"

const (
	maxPromptLength = 1000

	minImageCount = 1
	maxImageCount = 4

	minInferenceSteps = 1
	maxInferenceSteps = 50

	minGuidance = 1.0
	maxGuidance = 20.0

	minDimension   = 256
	maxDimension   = 2048
	dimensionAlign = 64
)

type GenerationParams struct {
	Prompt   string  `json:"prompt"`
	Count    int     `json:"count"`
	Steps    int     `json:"steps"`
	Guidance float64 `json:"guidance"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// ApplyDefaults fills zero-valued fields from the model type's preset.
func (params *GenerationParams) ApplyDefaults(preset ModelTypePreset) {
	if params.Count == 0 {
		params.Count = minImageCount
	}
	if params.Steps == 0 {
		params.Steps = preset.DefaultSteps
	}
	if params.Guidance == 0 {
		params.Guidance = preset.DefaultGuidance
	}
	if params.Width == 0 {
		params.Width = preset.DefaultResolution
	}
	if params.Height == 0 {
		params.Height = preset.DefaultResolution
	}
}

func (params *GenerationParams) Validate() error {
	if params.Prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if len(params.Prompt) > maxPromptLength {
		return fmt.Errorf("prompt cannot exceed %d characters", maxPromptLength)
	}
	if params.Count < minImageCount || params.Count > maxImageCount {
		return fmt.Errorf("count must be between %d and %d", minImageCount, maxImageCount)
	}
	if params.Steps < minInferenceSteps || params.Steps > maxInferenceSteps {
		return fmt.Errorf("steps must be between %d and %d", minInferenceSteps, maxInferenceSteps)
	}
	if params.Guidance < minGuidance || params.Guidance > maxGuidance {
		return fmt.Errorf("guidance must be between %v and %v", minGuidance, maxGuidance)
	}
	if err := checkDimension("width", params.Width); err != nil {
		return err
	}
	if err := checkDimension("height", params.Height); err != nil {
		return err
	}
	return nil
}

func checkDimension(name string, value int) error {
	if value < minDimension || value > maxDimension {
		return fmt.Errorf("%v must be between %d and %d", name, minDimension, maxDimension)
	}
	if value%dimensionAlign != 0 {
		return fmt.Errorf("%v must be a multiple of %d", name, dimensionAlign)
	}
	return nil
}

// ValidateTrainingSteps bounds the requested fine-tuning step count.
func ValidateTrainingSteps(steps int) error {
	if steps < 100 || steps > 5000 {
		return fmt.Errorf("training steps must be between 100 and 5000")
	}
	return nil
}

func ValidateResolution(resolution int) error {
	return checkDimension("resolution", resolution)
}
