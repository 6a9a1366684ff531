package resources

import "testing"

func TestDeepMerge_NestedOverridesMerge(t *testing.T) {
	base := map[string]any{
		"host": "localhost",
		"nested": map[string]any{
			"a": 1,
			"b": 2,
		},
	}
	override := map[string]any{
		"port": 5432,
		"nested": map[string]any{
			"b": 3,
			"c": 4,
		},
	}

	got := DeepMerge(base, override)

	if got["host"] != "localhost" {
		t.Errorf("host = %v", got["host"])
	}
	if got["port"] != 5432 {
		t.Errorf("port = %v", got["port"])
	}
	nested, ok := got["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested is not a map: %T", got["nested"])
	}
	if nested["a"] != 1 || nested["b"] != 3 || nested["c"] != 4 {
		t.Errorf("nested = %+v", nested)
	}
}

func TestDeepMerge_NonMapOverwrites(t *testing.T) {
	base := map[string]any{"tags": []any{"a", "b"}}
	override := map[string]any{"tags": []any{"c"}}

	got := DeepMerge(base, override)
	tags, ok := got["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "c" {
		t.Errorf("tags = %v, want overwritten to [c]", got["tags"])
	}
}

func TestDeepMerge_DoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"nested": map[string]any{"a": 1}}
	override := map[string]any{"nested": map[string]any{"a": 2}}

	DeepMerge(base, override)

	if base["nested"].(map[string]any)["a"] != 1 {
		t.Error("DeepMerge mutated base")
	}
	if override["nested"].(map[string]any)["a"] != 2 {
		t.Error("DeepMerge mutated override")
	}
}

func TestMergeDecode_ConfigPathsDedupe(t *testing.T) {
	profile := map[string]any{
		"config_paths": []any{"password", "api_key"},
	}
	resource := map[string]any{
		"config_paths": []any{"api_key", "token"},
	}

	got := MergeDecode(profile, resource)
	paths, ok := got["config_paths"].([]any)
	if !ok {
		t.Fatalf("config_paths is not []any: %T", got["config_paths"])
	}
	want := []any{"password", "api_key", "token"}
	if len(paths) != len(want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %v, want %v", i, paths[i], want[i])
		}
	}
}

func TestMergeDecode_BoolMapsDeepMerge(t *testing.T) {
	profile := map[string]any{
		"config": map[string]any{"password": true},
	}
	resource := map[string]any{
		"config": map[string]any{"token": true},
	}

	got := MergeDecode(profile, resource)
	cfg, ok := got["config"].(map[string]any)
	if !ok {
		t.Fatalf("config is not a map: %T", got["config"])
	}
	if cfg["password"] != true || cfg["token"] != true {
		t.Errorf("config = %+v", cfg)
	}
}
