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

func TestScanConfig_Defaults(t *testing.T) {
	cfg := ScanConfig{Root: "."}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("minimal scan config should pass: %v", err)
	}
	if len(cfg.EffectiveTags()) == 0 {
		t.Error("effective tags should fall back to defaults")
	}
	if len(cfg.EffectiveExcludeDirs()) == 0 {
		t.Error("effective exclude dirs should fall back to defaults")
	}
}

func TestScanConfig_EmptyRoot(t *testing.T) {
	cfg := ScanConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty root should fail validation")
	}
}

func TestScanConfig_BadExcludePattern(t *testing.T) {
	cfg := ScanConfig{Root: ".", ExcludePatterns: []string{"(unclosed"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid exclude pattern should fail validation")
	}
}

func TestScanConfig_HashChangesWithTags(t *testing.T) {
	a := ScanConfig{Root: "."}
	b := ScanConfig{Root: ".", Tags: []string{"TODO"}}
	if a.Hash() == b.Hash() {
		t.Error("different tag vocabularies should produce different hashes")
	}
}

func TestWatchConfig_Validation(t *testing.T) {
	cfg := WatchConfig{DebounceMS: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero debounce should fail validation")
	}
	cfg = WatchConfig{DebounceMS: 250, MaxTotal: 100}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid watch config should pass: %v", err)
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

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
