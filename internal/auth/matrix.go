package auth

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed permissions.yaml
var defaultMatrixContent []byte

// Matrix is the static role -> section -> action permission table.
// It is built once at startup and never mutated afterwards.
type Matrix struct {
	entries map[Role]map[Section]map[Action]bool
}

// matrixFile is the on-disk YAML shape: role name -> section -> allowed actions.
type matrixFile struct {
	Roles map[string]map[string][]string `yaml:"roles"`
}

// DefaultMatrix returns the embedded matrix. It panics if the embedded file is invalid,
// which can only happen at build time.
func DefaultMatrix() *Matrix {
	m, err := ParseMatrix(defaultMatrixContent)
	if err != nil {
		panic(fmt.Sprintf("embedded permission matrix: %v", err))
	}
	return m
}

// LoadMatrix reads the matrix from path, or returns the embedded default when path is empty.
func LoadMatrix(path string) (*Matrix, error) {
	if path == "" {
		return ParseMatrix(defaultMatrixContent)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission matrix: %w", err)
	}
	return ParseMatrix(data)
}

// ParseMatrix decodes a YAML matrix. Unknown roles, sections or actions are rejected.
func ParseMatrix(data []byte) (*Matrix, error) {
	var file matrixFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode permission matrix: %w", err)
	}

	entries := make(map[Role]map[Section]map[Action]bool, len(file.Roles))
	for roleName, sections := range file.Roles {
		role, err := ParseRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("permission matrix: %w", err)
		}
		if _, dup := entries[role]; dup {
			return nil, fmt.Errorf("permission matrix: role %s defined twice", role)
		}
		bySection := make(map[Section]map[Action]bool, len(sections))
		for sectionName, actions := range sections {
			section, err := ParseSection(sectionName)
			if err != nil {
				return nil, fmt.Errorf("permission matrix role %s: %w", role, err)
			}
			byAction := make(map[Action]bool, len(actions))
			for _, actionName := range actions {
				action, err := ParseAction(actionName)
				if err != nil {
					return nil, fmt.Errorf("permission matrix role %s section %s: %w", role, section, err)
				}
				byAction[action] = true
			}
			bySection[section] = byAction
		}
		entries[role] = bySection
	}

	return &Matrix{entries: entries}, nil
}

// NewMatrix builds a matrix from an in-memory table. The input is copied.
func NewMatrix(table map[Role]map[Section][]Action) *Matrix {
	entries := make(map[Role]map[Section]map[Action]bool, len(table))
	for role, sections := range table {
		bySection := make(map[Section]map[Action]bool, len(sections))
		for section, actions := range sections {
			byAction := make(map[Action]bool, len(actions))
			for _, a := range actions {
				byAction[a] = true
			}
			bySection[section] = byAction
		}
		entries[role] = bySection
	}
	return &Matrix{entries: entries}
}

// Lookup returns the matrix bit. A missing role, section or action is false.
func (m *Matrix) Lookup(role Role, section Section, action Action) bool {
	if m == nil {
		return false
	}
	return m.entries[role][section][action]
}

// Sections returns the sections with at least one allowed action for role, sorted.
func (m *Matrix) Sections(role Role) []Section {
	if m == nil {
		return nil
	}
	out := make([]Section, 0, len(m.entries[role]))
	for section, actions := range m.entries[role] {
		for _, ok := range actions {
			if ok {
				out = append(out, section)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
