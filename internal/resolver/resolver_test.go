package resolver

import (
	"errors"
	"testing"
)

func TestRenderString_SimpleSubstitution(t *testing.T) {
	root := map[string]any{
		"job": map[string]any{"name": "extract"},
		"env": map[string]any{"REGION": "us-east-1"},
	}
	allowed := map[string]bool{"job": true, "env": true}

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "single token", value: "{{job.name}}", want: "extract"},
		{name: "token in sentence", value: "running job {{job.name}} in {{env.REGION}}", want: "running job extract in us-east-1"},
		{name: "no tokens", value: "plain text", want: "plain text"},
		{name: "whitespace inside braces", value: "{{ job.name }}", want: "extract"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderString(tt.value, root, allowed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderString(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestRenderString_Default(t *testing.T) {
	root := map[string]any{"env": map[string]any{}}
	allowed := map[string]bool{"env": true}

	got, err := RenderString("{{env.MISSING:fallback}}", root, allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}
}

func TestRenderString_MissingKeyWithoutDefault(t *testing.T) {
	root := map[string]any{"env": map[string]any{}}
	allowed := map[string]bool{"env": true}

	_, err := RenderString("{{env.MISSING}}", root, allowed)
	var missingErr *MissingKeyError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected MissingKeyError, got %v (%T)", err, err)
	}
	if missingErr.Path != "env.MISSING" {
		t.Errorf("got path %q, want %q", missingErr.Path, "env.MISSING")
	}
}

func TestRenderString_DisallowedRoot(t *testing.T) {
	root := map[string]any{"secrets": map[string]any{"token": "x"}}
	allowed := map[string]bool{"env": true}

	_, err := RenderString("{{secrets.token}}", root, allowed)
	var rootErr *DisallowedRootError
	if !errors.As(err, &rootErr) {
		t.Fatalf("expected DisallowedRootError, got %v (%T)", err, err)
	}
	if rootErr.Root != "secrets" {
		t.Errorf("got root %q, want %q", rootErr.Root, "secrets")
	}
}

func TestRenderString_UnsupportedSyntax(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "dollar-brace", value: "${env.REGION}"},
		{name: "jinja block", value: "{% if x %}y{% endif %}"},
		{name: "comment syntax", value: "{# comment #}"},
		{name: "bare braces", value: "{}"},
		{name: "bare single brace", value: "literal {x} here"},
		{name: "unterminated token", value: "{{env.REGION"},
		{name: "invalid path characters", value: "{{env.REGION-1}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RenderString(tt.value, nil, nil)
			var synErr *SyntaxError
			if !errors.As(err, &synErr) {
				t.Fatalf("RenderString(%q) expected SyntaxError, got %v (%T)", tt.value, err, err)
			}
		})
	}
}

func TestRenderStringOrTyped_PreservesType(t *testing.T) {
	root := map[string]any{
		"jobs": map[string]any{
			"extract": map[string]any{
				"outputs": map[string]any{
					"row_count": float64(42),
					"flag":      true,
				},
			},
		},
	}
	allowed := map[string]bool{"jobs": true}

	got, err := RenderStringOrTyped("{{jobs.extract.outputs.row_count}}", root, allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := got.(float64); !ok || f != 42 {
		t.Errorf("got %v (%T), want float64(42)", got, got)
	}

	got, err = RenderStringOrTyped("{{jobs.extract.outputs.flag}}", root, allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, ok := got.(bool); !ok || !b {
		t.Errorf("got %v (%T), want bool(true)", got, got)
	}
}

func TestRenderStringOrTyped_EmbeddedStaysString(t *testing.T) {
	root := map[string]any{"jobs": map[string]any{"extract": map[string]any{"outputs": map[string]any{"row_count": float64(42)}}}}
	allowed := map[string]bool{"jobs": true}

	got, err := RenderStringOrTyped("count={{jobs.extract.outputs.row_count}}", root, allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "count=42" {
		t.Errorf("got %v, want %q", got, "count=42")
	}
}

func TestRenderValue_DeepWalk(t *testing.T) {
	root := map[string]any{"env": map[string]any{"REGION": "us-east-1"}}
	allowed := map[string]bool{"env": true}

	obj := map[string]any{
		"region": "{{env.REGION}}",
		"tags":   []any{"{{env.REGION}}", "static"},
		"nested": map[string]any{"region": "{{env.REGION}}"},
		"number": float64(7),
	}

	rendered, err := RenderValue(obj, root, allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := rendered.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", rendered)
	}
	if out["region"] != "us-east-1" {
		t.Errorf("region = %v, want us-east-1", out["region"])
	}
	tags, ok := out["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "us-east-1" || tags[1] != "static" {
		t.Errorf("tags = %v", out["tags"])
	}
	if out["number"] != float64(7) {
		t.Errorf("number = %v, want 7", out["number"])
	}
}

func TestIsStandaloneToken(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "{{env.REGION}}", want: true},
		{value: "{{env.REGION:default}}", want: true},
		{value: "  {{env.REGION}}  ", want: true},
		{value: "prefix {{env.REGION}}", want: false},
		{value: "{{env.REGION}} suffix", want: false},
		{value: "plain", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := IsStandaloneToken(tt.value); got != tt.want {
				t.Errorf("IsStandaloneToken(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestExtractEnvPaths(t *testing.T) {
	obj := map[string]any{
		"a": "{{env.FOO}}",
		"b": []any{"{{env.BAR}}", "{{job.name}}"},
		"c": map[string]any{"d": "{{env.FOO}}"},
	}
	got := ExtractEnvPaths(obj)
	want := map[string]bool{"env.FOO": true, "env.BAR": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys %v", got, want)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected path %q", p)
		}
	}
}
