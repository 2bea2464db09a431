package credentials

import "testing"

// TestTokenEnvVarName tests environment variable naming
func TestTokenEnvVarName(t *testing.T) {
	cases := map[string]string{
		"gcal":      "TASKBRIDGE_GCAL_TOKEN",
		"gcal-work": "TASKBRIDGE_GCAL_WORK_TOKEN",
		"mock":      "TASKBRIDGE_MOCK_TOKEN",
	}
	for source, want := range cases {
		if got := tokenEnvVarName(source); got != want {
			t.Errorf("tokenEnvVarName(%q) = %q, want %q", source, got, want)
		}
	}
}

// TestResolveFromEnv tests resolution through the environment
func TestResolveFromEnv(t *testing.T) {
	t.Setenv("TASKBRIDGE_TESTSRC_TOKEN", "env-token")

	token, err := Resolve("testsrc", "config-token")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if token.Value != "env-token" || token.Source != SourceEnv {
		t.Errorf("Expected env token preferred over config, got %+v", token)
	}
}

// TestResolveFallsBackToConfig tests the lowest-priority source
func TestResolveFallsBackToConfig(t *testing.T) {
	token, err := Resolve("testsrc-unset", "config-token")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if token.Value != "config-token" || token.Source != SourceConfig {
		t.Errorf("Expected config fallback, got %+v", token)
	}
}

// TestResolveNothingFound tests the error when no source has a token
func TestResolveNothingFound(t *testing.T) {
	if _, err := Resolve("testsrc-unset", ""); err == nil {
		t.Error("Expected error when no token is available")
	}
}

// TestResolveRequiresSource tests input validation
func TestResolveRequiresSource(t *testing.T) {
	if _, err := Resolve("", "token"); err == nil {
		t.Error("Expected error for empty source name")
	}
}
