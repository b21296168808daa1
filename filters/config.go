package filters

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// PipelineConfig is the YAML definition of which stages run and how they
// are tuned. A nil section leaves that stage out of the pipeline.
type PipelineConfig struct {
	Dedupe   *DedupeConfig   `yaml:"dedupe"`
	TopKeys  *TopKeysConfig  `yaml:"top_keys"`
	CMSLimit *CMSLimitConfig `yaml:"cms_limit"`
}

// defaults merged under each configured section
var (
	dedupeDefaults = DedupeConfig{
		IDField:   "id",
		SizeBytes: 1 << 20,
	}
	topKeysDefaults = TopKeysConfig{
		Capacity: 100,
	}
	cmsLimitDefaults = CMSLimitConfig{
		CacheSize: 128,
		Depth:     5,
		Bound:     BoundUpper,
	}
)

// LoadPipelineConfig reads a pipeline definition and fills unset values
// from the defaults.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filters: reading pipeline config: %w", err)
	}
	return ParsePipelineConfig(raw)
}

func ParsePipelineConfig(raw []byte) (*PipelineConfig, error) {
	cfg := &PipelineConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("filters: parsing pipeline config: %w", err)
	}
	if cfg.Dedupe != nil {
		if err := mergo.Merge(cfg.Dedupe, dedupeDefaults); err != nil {
			return nil, fmt.Errorf("filters: merging dedupe defaults: %w", err)
		}
	}
	if cfg.TopKeys != nil {
		if err := mergo.Merge(cfg.TopKeys, topKeysDefaults); err != nil {
			return nil, fmt.Errorf("filters: merging top_keys defaults: %w", err)
		}
	}
	if cfg.CMSLimit != nil {
		if err := mergo.Merge(cfg.CMSLimit, cmsLimitDefaults); err != nil {
			return nil, fmt.Errorf("filters: merging cms_limit defaults: %w", err)
		}
	}
	// mergo cannot tell an explicit zero from an unset field, so decode the
	// document once more over the merged sections. Explicit values win,
	// zeros included, and reach stage validation instead of being clamped
	// back to a default.
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("filters: parsing pipeline config: %w", err)
	}
	return cfg, nil
}

// Build constructs the configured stages in their fixed order: dedupe,
// top keys, then the sketch limit. The returned CMSLimit (nil when not
// configured) must be closed at shutdown to flush cached sketches; the
// returned TopKeys handle (nil when not configured) serves snapshots.
func (c *PipelineConfig) Build() (*Pipeline, *CMSLimit, *TopKeys, error) {
	var dup *FilterDuplicates
	var top *TopKeys
	var limit *CMSLimit
	var err error
	if c.Dedupe != nil {
		dup = NewFilterDuplicates(*c.Dedupe)
	}
	if c.TopKeys != nil {
		top, err = NewTopKeys(*c.TopKeys)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if c.CMSLimit != nil {
		limit, err = NewCMSLimit(*c.CMSLimit)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return NewPipeline(dup, top, limit), limit, top, nil
}
