package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestSyncConfig_EmptyModeDefaultsManual(t *testing.T) {
	cfg := SyncConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty auto_heal should default to manual: %v", err)
	}
	if cfg.AutoHeal != AutoHealManual {
		t.Errorf("auto_heal = %q, want %q", cfg.AutoHeal, AutoHealManual)
	}
}

func TestSyncConfig_WatchMode(t *testing.T) {
	cfg := SyncConfig{AutoHeal: "watch"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("watch mode should pass: %v", err)
	}
}

func TestSyncConfig_InvalidMode(t *testing.T) {
	cfg := SyncConfig{AutoHeal: "eager"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown auto_heal mode should fail validation")
	}
}

func TestQualityConfig_ZeroesNormalised(t *testing.T) {
	cfg := QualityConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero thresholds should normalise to defaults: %v", err)
	}
	if cfg.MaxAgeYears != 120 || cfg.MinParentAgeYears != 13 || cfg.MaxParentAgeYears != 70 || cfg.MaxAfterDeathYears != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestQualityConfig_ParentAgeWindowOrdering(t *testing.T) {
	cfg := QualityConfig{MinParentAgeYears: 70, MaxParentAgeYears: 70}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("min parent age at or above max should fail")
	}
	if !strings.Contains(err.Error(), "min_parent_age_years") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGraphConfig_ZeroNormalisedToFive(t *testing.T) {
	cfg := GraphConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero generations should normalise: %v", err)
	}
	if cfg.DefaultMaxGenerations != 5 {
		t.Errorf("default_max_generations = %d, want 5", cfg.DefaultMaxGenerations)
	}
}

func TestGraphConfig_NegativeMeansUnlimited(t *testing.T) {
	cfg := GraphConfig{DefaultMaxGenerations: -1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("negative generations should pass: %v", err)
	}
	if cfg.DefaultMaxGenerations != -1 {
		t.Errorf("default_max_generations = %d, want -1", cfg.DefaultMaxGenerations)
	}
}

func TestNewDefaultConfig_Validates(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Sync.AutoHeal != AutoHealManual {
		t.Errorf("default auto_heal = %q, want %q", cfg.Sync.AutoHeal, AutoHealManual)
	}
	if cfg.Graph.DefaultMaxGenerations != 5 {
		t.Errorf("default generations = %d, want 5", cfg.Graph.DefaultMaxGenerations)
	}
}
