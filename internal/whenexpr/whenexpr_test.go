package whenexpr

import (
	"testing"
)

func TestEvalString_Literals(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "true literal", expr: "true", want: true},
		{name: "false literal", expr: "false", want: false},
		{name: "empty expression defaults true", expr: "", want: true},
		{name: "blank expression defaults true", expr: "   ", want: true},
		{name: "not true", expr: "not true", want: false},
		{name: "double not", expr: "not not true", want: true},
		{name: "and both true", expr: "true and true", want: true},
		{name: "and short circuit false", expr: "false and true", want: false},
		{name: "or short circuit true", expr: "true or false", want: true},
		{name: "or both false", expr: "false or false", want: false},
		{name: "parenthesized", expr: "(true and false) or true", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalString(tt.expr, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EvalString(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalString_Comparisons(t *testing.T) {
	root := map[string]any{
		"jobs": map[string]any{
			"extract": map[string]any{
				"status": "SUCCESS",
				"outputs": map[string]any{
					"row_count": float64(42),
				},
			},
		},
		"env": map[string]any{
			"REGION": "us-east-1",
		},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "string equality", expr: `jobs.extract.status == 'SUCCESS'`, want: true},
		{name: "string inequality", expr: `jobs.extract.status != 'SUCCESS'`, want: false},
		{name: "numeric greater than", expr: "jobs.extract.outputs.row_count > 10", want: true},
		{name: "numeric less than false", expr: "jobs.extract.outputs.row_count < 10", want: false},
		{name: "env path equality", expr: `env.REGION == 'us-east-1'`, want: true},
		{name: "combined and", expr: `jobs.extract.status == 'SUCCESS' and jobs.extract.outputs.row_count >= 42`, want: true},
		{name: "missing path compares false", expr: `jobs.extract.outputs.missing == 'x'`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalString(tt.expr, root)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EvalString(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParse_RejectsDisallowedRoot(t *testing.T) {
	_, err := Parse("secrets.token == 'x'")
	if err == nil {
		t.Fatal("expected error for disallowed root, got nil")
	}
}

func TestParse_RejectsGarbage(t *testing.T) {
	tests := []string{
		"jobs.extract.status ==",
		"and true",
		"(true",
		"true ~ false",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			if _, err := Parse(expr); err == nil {
				t.Errorf("Parse(%q) expected error, got nil", expr)
			}
		})
	}
}

func TestEval_NonBooleanResultErrors(t *testing.T) {
	e, err := Parse("jobs.extract.outputs.row_count")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	root := map[string]any{
		"jobs": map[string]any{
			"extract": map[string]any{
				"outputs": map[string]any{"row_count": float64(3)},
			},
		},
	}
	if _, err := Eval(e, root); err == nil {
		t.Error("expected error evaluating a non-boolean expression, got nil")
	}
}

func TestEval_NotOnNonBooleanErrors(t *testing.T) {
	_, err := EvalString("not jobs.extract.outputs.row_count", map[string]any{
		"jobs": map[string]any{
			"extract": map[string]any{
				"outputs": map[string]any{"row_count": float64(3)},
			},
		},
	})
	if err == nil {
		t.Error("expected error, got nil")
	}
}
