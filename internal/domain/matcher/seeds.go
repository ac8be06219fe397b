package matcher

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManualSeed is one curated original-name → company override
type ManualSeed struct {
	Original    string `yaml:"original"`
	CompanyName string `yaml:"company"`
	CompanyID   string `yaml:"company_id"`
}

// FalsePositiveSeed is one curated suppression: the named company must never
// be auto-matched to the original name
type FalsePositiveSeed struct {
	Original    string `yaml:"original"`
	CompanyName string `yaml:"company"`
}

// Seeds holds the curated lists used to bootstrap the match cache
type Seeds struct {
	ManualMatches  []ManualSeed
	FalsePositives []FalsePositiveSeed
}

// LoadSeeds reads the configured seed files. Either path may be empty, in
// which case that list is simply absent.
func LoadSeeds(manualPath, falsePositivePath string) (Seeds, error) {
	var seeds Seeds

	if manualPath != "" {
		if err := loadYAML(manualPath, &seeds.ManualMatches); err != nil {
			return Seeds{}, fmt.Errorf("failed to load manual match seeds: %w", err)
		}
	}
	if falsePositivePath != "" {
		if err := loadYAML(falsePositivePath, &seeds.FalsePositives); err != nil {
			return Seeds{}, fmt.Errorf("failed to load false-positive seeds: %w", err)
		}
	}

	return seeds, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
