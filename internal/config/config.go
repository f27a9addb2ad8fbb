// Package config loads the Helix controller's YAML configuration, the
// switch-to-controller map, and the port-description CSV (spec §6).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/helix-sdn/helix/internal/herr"
	"github.com/helix-sdn/helix/internal/localctrl"
	"github.com/helix-sdn/helix/internal/metrics"
	"github.com/helix-sdn/helix/internal/te"
)

// Config is the top-level local-controller configuration document, one
// section per spec §6 key/value block.
type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Stats       StatsConfig       `yaml:"stats"`
	MultiCtrl   MultiCtrlConfig   `yaml:"multi_ctrl"`
	TE          TEConfig          `yaml:"te"`
}

// ApplicationConfig is the `[application]` block.
type ApplicationConfig struct {
	OptimiseProtection bool   `yaml:"optimise_protection"`
	SpliceMode         string `yaml:"splice_mode"`
	StaticPortDesc     string `yaml:"static_port_desc"`
}

// StatsConfig is the `[stats]` block.
type StatsConfig struct {
	Collect     bool    `yaml:"collect"`
	CollectPort bool    `yaml:"collect_port"`
	Interval    float64 `yaml:"interval"`
	OutPort     bool    `yaml:"out_port"`
}

// MultiCtrlConfig is the `[multi_ctrl]` block.
type MultiCtrlConfig struct {
	StartCom bool `yaml:"start_com"`
	DomainID int  `yaml:"domain_id"`
}

// TEConfig is the `[te]` block. OptiMethod is the raw config string;
// Method() resolves it to an internal/te.Method at load time.
type TEConfig struct {
	UtilisationThreshold float64 `yaml:"utilisation_threshold"`
	ConsolidateTime      float64 `yaml:"consolidate_time"`
	OptiMethod           string  `yaml:"opti_method"`
	CandidateSortRev     bool    `yaml:"candidate_sort_rev"`
	PotPathSortRev       bool    `yaml:"pot_path_sort_rev"`
	PartialAccept        bool    `yaml:"partial_accept"`
}

// DefaultConfig matches the spec §6 defaults.
func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			OptimiseProtection: true,
			SpliceMode:         "strict",
		},
		Stats: StatsConfig{
			Collect:     true,
			CollectPort: true,
			Interval:    10.0,
			OutPort:     false,
		},
		MultiCtrl: MultiCtrlConfig{
			StartCom: true,
			DomainID: 0,
		},
		TE: TEConfig{
			UtilisationThreshold: 0.90,
			ConsolidateTime:      1.0,
			OptiMethod:           "FirstSol",
			CandidateSortRev:     true,
			PotPathSortRev:       false,
			PartialAccept:        false,
		},
	}
}

// Load reads and parses a YAML config document, starting from defaults
// for any field the document omits.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the §6 bounds and enums; a violation is a fatal
// herr.ErrConfig.
func (c *Config) Validate() error {
	if c.Stats.Interval < 0.5 || c.Stats.Interval > 600 {
		return fmt.Errorf("stats.interval %v out of [0.5,600]: %w", c.Stats.Interval, herr.ErrConfig)
	}
	if c.TE.UtilisationThreshold < 0 || c.TE.UtilisationThreshold > 1 {
		return fmt.Errorf("te.utilisation_threshold %v out of [0,1]: %w", c.TE.UtilisationThreshold, herr.ErrConfig)
	}
	if c.TE.ConsolidateTime <= 0 {
		return fmt.Errorf("te.consolidate_time must be positive: %w", herr.ErrConfig)
	}
	if c.MultiCtrl.DomainID < 0 {
		return fmt.Errorf("multi_ctrl.domain_id must be non-negative: %w", herr.ErrConfig)
	}
	if _, err := c.TE.Method(); err != nil {
		return err
	}
	if _, err := c.RecoveryStrategy(); err != nil {
		return err
	}
	return nil
}

// Method resolves the configured opti_method string to the closed set of
// four TE strategies (spec §4.E/§9: "replace dynamic dispatch on
// opti_method string with a closed set of four strategies").
func (t TEConfig) Method() (te.Method, error) {
	switch t.OptiMethod {
	case "FirstSol", "":
		return te.FirstSol, nil
	case "BestSolUsage":
		return te.BestSolUsage, nil
	case "BestSolPLen":
		return te.BestSolPLen, nil
	case "CSPFRecomp":
		return te.CSPFRecomp, nil
	default:
		return 0, fmt.Errorf("te.opti_method %q not one of FirstSol|BestSolUsage|BestSolPLen|CSPFRecomp: %w", t.OptiMethod, herr.ErrConfig)
	}
}

// TEEngineConfig builds an internal/te.Config from the validated document.
// reg is optional; pass nil to build a Config that never touches Prometheus.
func (c *Config) TEEngineConfig(reg *metrics.Registry) te.Config {
	method, _ := c.TE.Method()
	return te.Config{
		Tau:                c.TE.UtilisationThreshold,
		ConsolidationDelay: time.Duration(c.TE.ConsolidateTime * float64(time.Second)),
		Method:             method,
		CandidateSortRev:   c.TE.CandidateSortRev,
		PotPathSortRev:     c.TE.PotPathSortRev,
		PartialAccept:      c.TE.PartialAccept,
		Metrics:            reg,
	}
}

// StatsInterval returns the poll interval as a time.Duration.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.Stats.Interval * float64(time.Second))
}

// RecoveryStrategy resolves the configured protection strategy (spec §9's
// RecoveryStrategy variants): optimise_protection=false selects Reactive
// (no precomputed backup); optimise_protection=true selects one of the
// two protection variants according to application.splice_mode.
func (c *Config) RecoveryStrategy() (localctrl.RecoveryStrategy, error) {
	if !c.Application.OptimiseProtection {
		return localctrl.Reactive, nil
	}
	switch c.Application.SpliceMode {
	case "strict", "":
		return localctrl.ProtectionStrict, nil
	case "loose":
		return localctrl.ProtectionLooseSplice, nil
	default:
		return 0, fmt.Errorf("application.splice_mode %q not one of strict|loose: %w", c.Application.SpliceMode, herr.ErrConfig)
	}
}
