package incidence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Skeleton is one node of an externally authored taxonomy: a nested list of
// subject names whose order encodes domain meaning (the syllabus's own
// structure). Skeletons arrive either from the backend or from a local
// YAML file.
type Skeleton struct {
	Name     string      `json:"name" yaml:"name"`
	Children []*Skeleton `json:"children,omitempty" yaml:"children,omitempty"`
}

// LoadSkeletonFile reads a taxonomy skeleton from a YAML file. The file is
// a list of nodes:
//
//	- name: Constitutional Law
//	  children:
//	    - name: Fundamental Rights
//	    - name: State Organization
//	- name: Administrative Law
func LoadSkeletonFile(path string) ([]*Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}

	var nodes []*Skeleton
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse taxonomy file: %w", err)
	}

	if err := validateSkeleton(nodes); err != nil {
		return nil, fmt.Errorf("invalid taxonomy in %s: %w", path, err)
	}
	return nodes, nil
}

func validateSkeleton(nodes []*Skeleton) error {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil || n.Name == "" {
			return fmt.Errorf("taxonomy node with empty name")
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate taxonomy node %q", n.Name)
		}
		seen[n.Name] = true
		if err := validateSkeleton(n.Children); err != nil {
			return fmt.Errorf("under %q: %w", n.Name, err)
		}
	}
	return nil
}
