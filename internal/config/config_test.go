package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/helix-sdn/helix/internal/localctrl"
	"github.com/helix-sdn/helix/internal/te"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeTemp(t, "helix.yaml", `
stats:
  interval: 5.0
te:
  opti_method: BestSolUsage
  partial_accept: true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stats.Interval != 5.0 {
		t.Fatalf("expected overridden interval 5.0, got %v", cfg.Stats.Interval)
	}
	if !cfg.Application.OptimiseProtection {
		t.Fatalf("expected default optimise_protection=true to survive a partial override")
	}
	method, err := cfg.TE.Method()
	if err != nil || method != te.BestSolUsage {
		t.Fatalf("expected BestSolUsage, got %v err=%v", method, err)
	}
}

func TestValidateRejectsOutOfBoundsInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stats.Interval = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for out-of-bounds interval")
	}
}

func TestValidateRejectsUnknownOptiMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TE.OptiMethod = "Bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown opti_method")
	}
}

func TestValidateRejectsUnknownSpliceMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Application.SpliceMode = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown splice_mode")
	}
}

func TestRecoveryStrategySelection(t *testing.T) {
	cfg := DefaultConfig()
	if strat, err := cfg.RecoveryStrategy(); err != nil || strat != localctrl.ProtectionStrict {
		t.Fatalf("expected ProtectionStrict by default, got %v err=%v", strat, err)
	}

	cfg.Application.SpliceMode = "loose"
	if strat, err := cfg.RecoveryStrategy(); err != nil || strat != localctrl.ProtectionLooseSplice {
		t.Fatalf("expected ProtectionLooseSplice, got %v err=%v", strat, err)
	}

	cfg.Application.OptimiseProtection = false
	if strat, err := cfg.RecoveryStrategy(); err != nil || strat != localctrl.Reactive {
		t.Fatalf("expected Reactive when optimise_protection is false, got %v err=%v", strat, err)
	}
}

func TestPortDescLookupFallsBackWhenAbsent(t *testing.T) {
	p := writeTemp(t, "ports.csv", "dpid,port,speed\n1,2,1000000000\n")
	pd, err := LoadPortDesc(p)
	if err != nil {
		t.Fatalf("LoadPortDesc: %v", err)
	}
	if got := pd.Lookup(1, 2, 0); got != 1_000_000_000 {
		t.Fatalf("expected declared speed, got %d", got)
	}
	if got := pd.Lookup(9, 9, 42); got != 42 {
		t.Fatalf("expected fallback for absent entry, got %d", got)
	}
}

func TestSwitchMapValidateRejectsNonPositiveExtraInstance(t *testing.T) {
	sm := &SwitchMap{Ctrl: map[string]ControllerDesc{
		"c1": {ExtraInstances: []int{0}},
	}}
	if err := sm.Validate(); err == nil {
		t.Fatalf("expected rejection of explicit 0 in extra_instances")
	}
}
