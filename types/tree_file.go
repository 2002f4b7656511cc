package types

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTreeFile reads a serialized position tree from a YAML file.
// The editor collaborator passes trees in-process; the file form exists for
// the CLI and for fixtures.
func LoadTreeFile(path string) (*PositionTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file %s: %w", path, err)
	}
	var tree PositionTree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse tree file %s: %w", path, err)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tree file %s: %w", path, err)
	}
	return &tree, nil
}
