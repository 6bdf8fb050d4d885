package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stratus-io/stratus/internal/ir"
)

// Load reads a plan file, parses it and validates it. A plan that fails
// validation is returned as *engine.InvalidPlanError carrying every
// violation found, and never reaches a provider.
func Load(path string) (*ir.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}
	p, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("plan file %s: %w", path, err)
	}
	return p, nil
}

// LoadBytes parses and validates a plan from raw YAML.
func LoadBytes(data []byte) (*ir.Plan, error) {
	var p ir.Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
