package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/waypoint/pkg/models"
)

// Descriptor is the on-disk form of a capability: a YAML file in the
// catalogue directory declaring identity and resource weight. The
// invoker itself is compiled in; the descriptor binds to it by name
// and lets projects tune descriptions and resource classes without a
// rebuild.
type Descriptor struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	ResourceClass string `yaml:"resource_class"`
	// Disabled removes a built-in capability from the catalogue.
	Disabled bool `yaml:"disabled,omitempty"`
}

// LoadCatalogue reads every *.yaml descriptor under dir and applies it
// to the builtin capability set: descriptors can re-describe, re-class,
// or disable builtins. The merged set is registered into a fresh
// registry. A missing directory yields the builtins unchanged.
func LoadCatalogue(dir string, builtins []Capability) (*Registry, error) {
	merged := make(map[string]Capability, len(builtins))
	for _, cap := range builtins {
		merged[cap.Name] = cap
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading catalogue dir: %w", err)
		}
		entries = nil
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		desc, err := readDescriptor(path)
		if err != nil {
			return nil, err
		}

		cap, ok := merged[desc.Name]
		if !ok {
			// Descriptors cannot introduce capabilities with no
			// compiled invoker behind them.
			return nil, fmt.Errorf("descriptor %s names unknown capability %q", entry.Name(), desc.Name)
		}
		if desc.Disabled {
			delete(merged, desc.Name)
			continue
		}
		if desc.Description != "" {
			cap.Description = desc.Description
		}
		if desc.ResourceClass != "" {
			class := models.ResourceClass(desc.ResourceClass)
			if !class.Valid() {
				return nil, fmt.Errorf("descriptor %s: invalid resource class %q", entry.Name(), desc.ResourceClass)
			}
			cap.ResourceClass = class
		}
		merged[desc.Name] = cap
	}

	reg := New()
	for _, cap := range merged {
		if err := reg.Register(cap); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func readDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	var desc Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing descriptor %s: %w", path, err)
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("descriptor %s is missing a name", path)
	}
	return &desc, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
