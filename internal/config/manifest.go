package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes which exports a batch run converts.
//
//	dir: backup
//	files:
//	  - contributors.csv
//	  - "exports/**/*.csv"
//	optional:
//	  - parts.csv
type Manifest struct {
	Dir      string   `yaml:"dir"`
	Files    []string `yaml:"files"`
	Optional []string `yaml:"optional"`
}

// DefaultManifest returns the built-in candidate list rooted at dir.
func DefaultManifest(dir string) *Manifest {
	return &Manifest{
		Dir:      dir,
		Files:    BatchFiles(),
		Optional: OptionalBatchFiles(),
	}
}

// LoadManifest reads a YAML manifest. Missing keys fall back to the defaults:
// an absent dir uses fallbackDir, absent files/optional use the built-in lists.
// An explicit empty list (files: []) is kept as empty.
func LoadManifest(path, fallbackDir string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if m.Dir == "" {
		m.Dir = fallbackDir
	}
	if m.Files == nil {
		m.Files = BatchFiles()
	}
	if m.Optional == nil {
		m.Optional = OptionalBatchFiles()
	}

	return m, nil
}
