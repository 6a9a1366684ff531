package settings

import "testing"

func TestLoad_Defaults(t *testing.T) {
	s := Load(map[string]string{})

	if s.WorkRoot != "/tmp/work" {
		t.Errorf("WorkRoot = %q", s.WorkRoot)
	}
	if s.Mode != "internal_fast" {
		t.Errorf("Mode = %q", s.Mode)
	}
	if s.LogFormat != "text" {
		t.Errorf("LogFormat = %q", s.LogFormat)
	}
	if !s.StrictTemplates {
		t.Error("StrictTemplates should default true")
	}
	if s.ValidateEnvStrict {
		t.Error("ValidateEnvStrict should default false")
	}
	if s.ConnectorCacheDefault != "run" {
		t.Errorf("ConnectorCacheDefault = %q", s.ConnectorCacheDefault)
	}
}

func TestLoad_Overrides(t *testing.T) {
	env := map[string]string{
		"AETHERFLOW_WORK_ROOT":               "/srv/work",
		"AETHERFLOW_MODE":                    "strict",
		"AETHERFLOW_LOG_FORMAT":              "json",
		"AETHERFLOW_LOG_LEVEL":               "debug",
		"AETHERFLOW_STRICT_TEMPLATES":        "false",
		"AETHERFLOW_VALIDATE_ENV_STRICT":     "true",
		"AETHERFLOW_CONNECTOR_CACHE_DEFAULT": "flow",
		"AETHERFLOW_SECRETS_MODULE":          "vault",
		"AETHERFLOW_SECRETS_PATH":            "/etc/secrets",
	}
	s := Load(env)

	if s.WorkRoot != "/srv/work" {
		t.Errorf("WorkRoot = %q", s.WorkRoot)
	}
	if s.Mode != "strict" {
		t.Errorf("Mode = %q", s.Mode)
	}
	if s.LogFormat != "json" {
		t.Errorf("LogFormat = %q", s.LogFormat)
	}
	if s.StrictTemplates {
		t.Error("StrictTemplates should be false")
	}
	if !s.ValidateEnvStrict {
		t.Error("ValidateEnvStrict should be true")
	}
	if s.ConnectorCacheDefault != "flow" {
		t.Errorf("ConnectorCacheDefault = %q", s.ConnectorCacheDefault)
	}
	if s.SecretsModule != "vault" {
		t.Errorf("SecretsModule = %q", s.SecretsModule)
	}
	if s.SecretsPath != "/etc/secrets" {
		t.Errorf("SecretsPath = %q", s.SecretsPath)
	}
}

func TestLoad_InvalidBoolFallsBackToDefault(t *testing.T) {
	s := Load(map[string]string{"AETHERFLOW_STRICT_TEMPLATES": "not-a-bool"})
	if !s.StrictTemplates {
		t.Error("expected fallback to default true for unparseable bool")
	}
}

func TestSnapshot_DoesNotMutateEnviron(t *testing.T) {
	t.Setenv("AETHERFLOW_TEST_SNAPSHOT_VAR", "value")

	snap := Snapshot()
	if snap["AETHERFLOW_TEST_SNAPSHOT_VAR"] != "value" {
		t.Fatalf("expected snapshot to capture set var, got %+v", snap["AETHERFLOW_TEST_SNAPSHOT_VAR"])
	}

	snap["AETHERFLOW_TEST_SNAPSHOT_VAR"] = "mutated"

	second := Snapshot()
	if second["AETHERFLOW_TEST_SNAPSHOT_VAR"] != "value" {
		t.Errorf("mutating a returned snapshot affected a later snapshot: %q", second["AETHERFLOW_TEST_SNAPSHOT_VAR"])
	}
}
