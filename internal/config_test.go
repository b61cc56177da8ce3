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

func TestGraphConfig_Validate(t *testing.T) {
	cfg := GraphConfig{SemanticMinConfidence: 0.6, MaxHops: 2, MaxDocs: 24}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid graph config should pass: %v", err)
	}

	cfg = GraphConfig{SemanticMinConfidence: 1.5}
	if err := cfg.Validate(); err == nil {
		t.Error("confidence above 1.0 should fail")
	}

	cfg = GraphConfig{MaxHops: 9}
	if err := cfg.Validate(); err == nil {
		t.Error("hops above 4 should fail")
	}
}

func TestGraphConfig_SettingsOverlay(t *testing.T) {
	// Zero config keeps every default.
	s := (&GraphConfig{}).Settings()
	if !s.SemanticEnabled || s.GraphMaxHops != 2 || s.SemanticBatchSize != 25 {
		t.Errorf("defaults = %+v", s)
	}

	// Set fields overlay, unset fields survive.
	off := false
	cfg := GraphConfig{
		SemanticEnabled: &off,
		MaxHops:         3,
		IncludePrefixes: []string{"Lore/"},
	}
	s = cfg.Settings()
	if s.SemanticEnabled {
		t.Error("semantic toggle not applied")
	}
	if s.GraphMaxHops != 3 {
		t.Errorf("max hops = %d", s.GraphMaxHops)
	}
	if len(s.IncludePrefixes) != 1 || s.IncludePrefixes[0] != "Lore/" {
		t.Errorf("include prefixes = %v", s.IncludePrefixes)
	}
	if s.GraphMaxDocs != 24 || !s.GraphRetrievalEnabled {
		t.Errorf("unset fields changed: %+v", s)
	}
}
