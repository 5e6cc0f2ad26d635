// Package dataset loads dataset manifests and metafiles, scans records for
// media references, and rewrites media paths after deduplication.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the YAML manifest describing a collection of datasets.
type Config struct {
	DataDir         string            `yaml:"DataDir"`
	Datasets        map[string]*Entry `yaml:"Datasets"`
	TotalSampleNums int               `yaml:"TotalSampleNums"`
}

// Entry describes one dataset inside the manifest.
type Entry struct {
	MetaFiles  string `yaml:"MetaFiles"`
	SampleNums int    `yaml:"sample_nums"`
}

// LoadConfig reads and validates a dataset manifest. A manifest naming a
// MetaFiles directory that does not exist is a configuration error and is
// rejected before any work starts.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigFrom(path, "")
}

// LoadConfigFrom is LoadConfig with relative MetaFiles paths anchored under
// baseDir; used for configs extracted from an archive, whose dataset paths
// are relative to the extraction root.
func LoadConfigFrom(path, baseDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.Datasets) == 0 {
		return nil, fmt.Errorf("config %s defines no datasets", path)
	}
	for name, entry := range cfg.Datasets {
		if entry == nil || entry.MetaFiles == "" {
			return nil, fmt.Errorf("dataset %s has no MetaFiles path", name)
		}
		if baseDir != "" && !filepath.IsAbs(entry.MetaFiles) {
			entry.MetaFiles = filepath.Join(baseDir, entry.MetaFiles)
		}
		info, err := os.Stat(entry.MetaFiles)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: MetaFiles path %s: %w", name, entry.MetaFiles, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("dataset %s: MetaFiles path %s is not a directory", name, entry.MetaFiles)
		}
	}
	return &cfg, nil
}

// Save writes the manifest to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
