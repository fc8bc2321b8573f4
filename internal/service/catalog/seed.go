package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of a catalog seed or balance-patch file.
type seedFile struct {
	Achievements []Definition `yaml:"achievements"`
}

// LoadSeedFile reads achievement definitions from a YAML file.
func LoadSeedFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	if len(file.Achievements) == 0 {
		return nil, fmt.Errorf("seed file %s contains no achievements", path)
	}

	return file.Achievements, nil
}
