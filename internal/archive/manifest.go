package archive

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest summarizes one export: it accompanies the volume set so the
// receiving side can verify completeness without opening every archive.
type Manifest struct {
	Name        string `yaml:"name"`
	TotalSample int    `yaml:"total_sample_count"`
	UniqueFiles int    `yaml:"total_unique_file_count"`
	Volumes     int    `yaml:"volumes"`
}

// WriteManifest saves the manifest next to the volume set.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads an export manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
