package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Business profile defaults.
const (
	DefaultLocation     = "Australia"
	DefaultQueryCount   = 10
	maxQueriesPerType   = 500
	businessFileMode    = 0o644
	businessTempPattern = ".config-*.yaml"
)

// QueryCounts is how many questions of each type a run generates.
type QueryCounts struct {
	Consumer int `json:"consumer"`
	Business int `json:"business"`
}

// BusinessConfig is the profile of the business under test. It is shared
// with the provider scripts, which read the YAML keys directly.
type BusinessConfig struct {
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Location    string      `json:"location"`
	Aliases     []string    `json:"aliases"`
	Competitors []string    `json:"competitors"`
	Queries     QueryCounts `json:"queries"`
}

// businessFile is the on-disk YAML layout.
type businessFile struct {
	Name               string   `yaml:"business_name"`
	URL                string   `yaml:"business_url"`
	Location           string   `yaml:"business_location"`
	Aliases            []string `yaml:"business_aliases"`
	Competitors        []string `yaml:"business_competitors,omitempty"`
	NumConsumerQueries int      `yaml:"num_consumer_queries"`
	NumBusinessQueries int      `yaml:"num_business_queries"`
}

// Normalize fills defaults and trims names.
func (b *BusinessConfig) Normalize() {
	b.Name = strings.TrimSpace(b.Name)
	b.URL = strings.TrimSpace(b.URL)
	b.Location = strings.TrimSpace(b.Location)
	if b.Location == "" {
		b.Location = DefaultLocation
	}
	b.Aliases = trimAll(b.Aliases)
	b.Competitors = trimAll(b.Competitors)
	if b.Queries.Consumer == 0 {
		b.Queries.Consumer = DefaultQueryCount
	}
	if b.Queries.Business == 0 {
		b.Queries.Business = DefaultQueryCount
	}
}

// Validate checks the profile can drive a test run.
func (b *BusinessConfig) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("config error: business name is required")
	}
	if b.Queries.Consumer < 0 || b.Queries.Consumer > maxQueriesPerType {
		return fmt.Errorf("config error: consumer query count must be 0-%d", maxQueriesPerType)
	}
	if b.Queries.Business < 0 || b.Queries.Business > maxQueriesPerType {
		return fmt.Errorf("config error: business query count must be 0-%d", maxQueriesPerType)
	}
	return nil
}

// Dir is the results directory name for the business.
func (b *BusinessConfig) Dir() string {
	return strings.Join(strings.Fields(b.Name), "_")
}

// BusinessStore reads and writes the YAML business profile.
type BusinessStore struct {
	mu   sync.RWMutex
	path string
}

// NewBusinessStore creates a store for the profile at path.
func NewBusinessStore(path string) *BusinessStore {
	return &BusinessStore{path: path}
}

// Path returns the profile location.
func (s *BusinessStore) Path() string {
	return s.path
}

// Load reads the profile. A missing file yields a profile with defaults and
// no name.
func (s *BusinessStore) Load() (*BusinessConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := &BusinessConfig{}
		cfg.Normalize()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read business config %s: %w", s.path, err)
	}

	var f businessFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse business config %s: %w", s.path, err)
	}
	cfg := &BusinessConfig{
		Name:        f.Name,
		URL:         f.URL,
		Location:    f.Location,
		Aliases:     f.Aliases,
		Competitors: f.Competitors,
		Queries:     QueryCounts{Consumer: f.NumConsumerQueries, Business: f.NumBusinessQueries},
	}
	cfg.Normalize()
	return cfg, nil
}

// Save validates and atomically replaces the profile.
func (s *BusinessStore) Save(cfg *BusinessConfig) error {
	c := *cfg
	c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(&businessFile{
		Name:               c.Name,
		URL:                c.URL,
		Location:           c.Location,
		Aliases:            nonNil(c.Aliases),
		Competitors:        c.Competitors,
		NumConsumerQueries: c.Queries.Consumer,
		NumBusinessQueries: c.Queries.Business,
	})
	if err != nil {
		return fmt.Errorf("failed to encode business config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, businessTempPattern)
	if err != nil {
		return fmt.Errorf("failed to write business config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write business config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write business config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), businessFileMode); err != nil {
		return fmt.Errorf("failed to write business config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace business config: %w", err)
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
