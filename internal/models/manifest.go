package models

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the optional per-directory registry overlay.
const ManifestFileName = "models.yaml"

// manifest is the on-disk form of a registry overlay.
type manifest struct {
	Models []Descriptor `yaml:"models"`
}

// LoadManifest reads a YAML manifest and registers every descriptor it
// contains. Entries with the same name as a built-in replace it, so a
// deployment can retune tile geometry or add new model families without
// a rebuild.
func LoadManifest(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read model manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return 0, fmt.Errorf("failed to parse model manifest %s: %w", path, err)
	}

	for i := range m.Models {
		if m.Models[i].Channels == 0 {
			m.Models[i].Channels = 3
		}
		if err := Register(m.Models[i]); err != nil {
			return i, fmt.Errorf("model manifest %s entry %d: %w", path, i, err)
		}
	}
	return len(m.Models), nil
}

// LoadManifestFromDir loads the overlay manifest from a models directory
// if one is present. A missing manifest is not an error.
func LoadManifestFromDir(modelsDir string) (int, error) {
	path := filepath.Join(GetModelsDir(modelsDir), ManifestFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}
	return LoadManifest(path)
}
