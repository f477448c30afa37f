package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// CorpusConfig describes the courses directory and how its files are
// turned into chunks. It lives in a YAML file next to the corpus so
// the same description is shared by every binary.
type CorpusConfig struct {
	CoursesDir string `yaml:"courses_dir"`

	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	BatchSize     int `yaml:"batch_size"`
	MinPageLength int `yaml:"min_page_length"`
	MinLineLength int `yaml:"min_line_length"`

	SupportedExtensions []string `yaml:"supported_extensions"`
	ExcludedPatterns    []string `yaml:"excluded_patterns"`

	// SubjectNames maps a top-level folder under CoursesDir to the
	// subject label shown to users and stored in chunk metadata.
	SubjectNames map[string]string `yaml:"subject_names"`
}

func LoadCorpus(path string) (CorpusConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return CorpusConfig{}, fmt.Errorf("read corpus config %s: %w", path, err)
	}

	var cfg CorpusConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return CorpusConfig{}, fmt.Errorf("parse corpus config %s: %w", path, err)
	}
	if cfg.CoursesDir == "" {
		return CorpusConfig{}, fmt.Errorf("corpus config %s: courses_dir est requis", path)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *CorpusConfig) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 200
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.MinPageLength <= 0 {
		c.MinPageLength = 50
	}
	if c.MinLineLength <= 0 {
		c.MinLineLength = 3
	}
	if len(c.SupportedExtensions) == 0 {
		c.SupportedExtensions = []string{".pdf", ".txt", ".md", ".csv", ".xlsx"}
	}
	if len(c.ExcludedPatterns) == 0 {
		c.ExcludedPatterns = []string{".*", "~$*"}
	}
}

// Subjects returns the distinct subject labels, sorted. This is the
// list served by the API and accepted as a search filter.
func (c *CorpusConfig) Subjects() []string {
	seen := make(map[string]struct{}, len(c.SubjectNames))
	out := make([]string, 0, len(c.SubjectNames))
	for _, name := range c.SubjectNames {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
