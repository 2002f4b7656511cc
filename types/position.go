package types

import (
	"fmt"
	"strings"
)

// PositionType identifies the kind of node in a position tree
type PositionType string

const (
	PositionTypeFile      PositionType = "file"
	PositionTypeNamespace PositionType = "namespace"
	PositionTypeTest      PositionType = "test"
)

// IsValid reports whether the position type is one of the known kinds
func (t PositionType) IsValid() bool {
	switch t {
	case PositionTypeFile, PositionTypeNamespace, PositionTypeTest:
		return true
	}
	return false
}

// Position is a node in the externally supplied test hierarchy.
// The tree is owned by the discovery collaborator; this module only reads it.
//
// IDs follow the build tool's locator convention: a fully qualified
// "package.Class.method" for tests, "package.Class" for namespaces and a
// source file path for files. A test's ID is always prefixed by the ID of
// its enclosing namespace.
type Position struct {
	ID   string       `yaml:"id"`
	Type PositionType `yaml:"type"`
	Path string       `yaml:"path,omitempty"`
}

// PositionTree holds positions in discovery order. Matching walks the
// positions in exactly this order, so the order is load-bearing.
type PositionTree struct {
	Positions []Position `yaml:"positions"`
}

// Tests returns the test-typed positions in tree order.
func (t *PositionTree) Tests() []Position {
	var out []Position
	for _, p := range t.Positions {
		if p.Type == PositionTypeTest {
			out = append(out, p)
		}
	}
	return out
}

// Containers returns the namespace- and file-typed positions in tree order.
func (t *PositionTree) Containers() []Position {
	var out []Position
	for _, p := range t.Positions {
		if p.Type == PositionTypeNamespace || p.Type == PositionTypeFile {
			out = append(out, p)
		}
	}
	return out
}

// FindByID returns the position with the given ID, if present.
func (t *PositionTree) FindByID(id string) (Position, bool) {
	for _, p := range t.Positions {
		if p.ID == id {
			return p, true
		}
	}
	return Position{}, false
}

// IsDescendantID reports whether childID denotes a descendant of parentID.
// A descendant has the parent ID as a proper string prefix.
func IsDescendantID(parentID, childID string) bool {
	return childID != parentID && strings.HasPrefix(childID, parentID)
}

// Validate checks basic tree well-formedness: non-empty unique IDs and
// known position types. It does not verify the hierarchy invariant, which
// is owned by the discovery collaborator.
func (t *PositionTree) Validate() error {
	seen := make(map[string]struct{}, len(t.Positions))
	for _, p := range t.Positions {
		if p.ID == "" {
			return fmt.Errorf("position with empty id (type %q)", p.Type)
		}
		if !p.Type.IsValid() {
			return fmt.Errorf("position %q has unknown type %q", p.ID, p.Type)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate position id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
