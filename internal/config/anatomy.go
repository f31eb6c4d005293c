package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Anatomy describes where publishes land on disk.
//
//	roots:
//	  work: /mnt/projects
//	templates:
//	  dir: "{root[work]}/{project[name]}/{hierarchy}/{folder[name]}/publish/usd"
//	  file: "{root[work]}/.../{folder[name]}_USD_v{version:0>5}.usda"
//	version_pattern: '_USD_v(\d+)\.usda$'
type Anatomy struct {
	Roots          map[string]string `yaml:"roots"`
	Templates      AnatomyTemplates  `yaml:"templates"`
	VersionPattern string            `yaml:"version_pattern"`
}

type AnatomyTemplates struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// LoadAnatomy reads an anatomy YAML file.
func LoadAnatomy(path string) (*Anatomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read anatomy file: %w", err)
	}

	var anatomy Anatomy
	if err := yaml.Unmarshal(data, &anatomy); err != nil {
		return nil, fmt.Errorf("failed to parse anatomy file %s: %w", path, err)
	}
	if anatomy.Roots == nil {
		anatomy.Roots = map[string]string{}
	}
	return &anatomy, nil
}

// Anatomy resolves the effective anatomy: the anatomy file if configured,
// with WorkRoot and VersionPattern from the config taking precedence.
func (c PublishConfig) Anatomy() (*Anatomy, error) {
	anatomy := &Anatomy{Roots: map[string]string{}}
	if c.AnatomyFile != "" {
		loaded, err := LoadAnatomy(c.AnatomyFile)
		if err != nil {
			return nil, err
		}
		anatomy = loaded
	}
	if c.WorkRoot != "" {
		anatomy.Roots["work"] = c.WorkRoot
	}
	if c.VersionPattern != "" {
		anatomy.VersionPattern = c.VersionPattern
	}
	if anatomy.Roots["work"] == "" {
		return nil, fmt.Errorf("anatomy has no work root")
	}
	return anatomy, nil
}
