package spec

import (
	"errors"
	"testing"
)

func validFlow() *FlowSpec {
	return &FlowSpec{
		Flow: FlowMetadata{ID: "demo"},
		Jobs: []JobSpec{
			{ID: "job1", Steps: []StepSpec{{ID: "step1", Type: "noop"}}},
		},
	}
}

func TestValidate_EmptyJobs(t *testing.T) {
	tests := []struct {
		name string
		spec *FlowSpec
	}{
		{name: "nil spec", spec: nil},
		{name: "no jobs", spec: &FlowSpec{Flow: FlowMetadata{ID: "demo"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec, ValidateOptions{})
			if !errors.Is(err, ErrEmptyJobs) {
				t.Errorf("expected ErrEmptyJobs, got %v", err)
			}
		})
	}
}

func TestValidate_EmptyFlowID(t *testing.T) {
	fs := validFlow()
	fs.Flow.ID = ""
	err := Validate(fs, ValidateOptions{})
	if !errors.Is(err, ErrEmptyFlowID) {
		t.Errorf("expected ErrEmptyFlowID, got %v", err)
	}
}

func TestValidate_DuplicateJobID(t *testing.T) {
	fs := validFlow()
	fs.Jobs = append(fs.Jobs, JobSpec{ID: "job1", Steps: []StepSpec{{ID: "s2", Type: "noop"}}})

	err := Validate(fs, ValidateOptions{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v (%T)", err, err)
	}
	if !errors.Is(vErr.Err, ErrDuplicateJobID) {
		t.Errorf("expected ErrDuplicateJobID, got %v", vErr.Err)
	}
}

func TestValidate_DependencyOrdering(t *testing.T) {
	tests := []struct {
		name    string
		jobs    []JobSpec
		wantErr error
	}{
		{
			name: "self dependency",
			jobs: []JobSpec{
				{ID: "job1", DependsOn: []string{"job1"}, Steps: []StepSpec{{ID: "s1", Type: "noop"}}},
			},
			wantErr: ErrSelfDependency,
		},
		{
			name: "missing dependency",
			jobs: []JobSpec{
				{ID: "job1", DependsOn: []string{"nope"}, Steps: []StepSpec{{ID: "s1", Type: "noop"}}},
			},
			wantErr: ErrMissingDependency,
		},
		{
			name: "forward dependency",
			jobs: []JobSpec{
				{ID: "job1", DependsOn: []string{"job2"}, Steps: []StepSpec{{ID: "s1", Type: "noop"}}},
				{ID: "job2", Steps: []StepSpec{{ID: "s2", Type: "noop"}}},
			},
			wantErr: ErrForwardDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &FlowSpec{Flow: FlowMetadata{ID: "demo"}, Jobs: tt.jobs}
			err := Validate(fs, ValidateOptions{})
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v (%T)", err, err)
			}
			if !errors.Is(vErr.Err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, vErr.Err)
			}
		})
	}
}

func TestValidate_StepChecks(t *testing.T) {
	tests := []struct {
		name    string
		steps   []StepSpec
		wantErr error
	}{
		{
			name:    "empty step id",
			steps:   []StepSpec{{ID: "", Type: "noop"}},
			wantErr: ErrEmptyStepID,
		},
		{
			name:    "duplicate step id",
			steps:   []StepSpec{{ID: "s1", Type: "noop"}, {ID: "s1", Type: "noop"}},
			wantErr: ErrDuplicateStepID,
		},
		{
			name:    "empty step type",
			steps:   []StepSpec{{ID: "s1", Type: ""}},
			wantErr: ErrUnknownStepType,
		},
		{
			name:    "invalid on_no_data",
			steps:   []StepSpec{{ID: "s1", Type: "noop", OnNoData: "bogus"}},
			wantErr: ErrInvalidEnum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &FlowSpec{
				Flow: FlowMetadata{ID: "demo"},
				Jobs: []JobSpec{{ID: "job1", Steps: tt.steps}},
			}
			err := Validate(fs, ValidateOptions{})
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v (%T)", err, err)
			}
			if !errors.Is(vErr.Err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, vErr.Err)
			}
		})
	}
}

func TestValidate_UnknownResourceRef(t *testing.T) {
	fs := &FlowSpec{
		Flow: FlowMetadata{ID: "demo"},
		Jobs: []JobSpec{
			{ID: "job1", Steps: []StepSpec{
				{ID: "s1", Type: "external.process", Inputs: map[string]any{"resource": "db"}},
			}},
		},
	}
	err := Validate(fs, ValidateOptions{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v (%T)", err, err)
	}
	if !errors.Is(vErr.Err, ErrUnknownResourceRef) {
		t.Errorf("expected ErrUnknownResourceRef, got %v", vErr.Err)
	}
}

func TestValidate_InvalidWhenExpression(t *testing.T) {
	fs := &FlowSpec{
		Flow: FlowMetadata{ID: "demo"},
		Jobs: []JobSpec{
			{ID: "job1", When: "secrets.token == 'x'", Steps: []StepSpec{{ID: "s1", Type: "noop"}}},
		},
	}
	err := Validate(fs, ValidateOptions{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v (%T)", err, err)
	}
	if !errors.Is(vErr.Err, ErrInvalidWhen) {
		t.Errorf("expected ErrInvalidWhen, got %v", vErr.Err)
	}
}

func TestValidate_InvalidEnums(t *testing.T) {
	tests := []struct {
		name string
		fs   *FlowSpec
	}{
		{
			name: "bad cleanup policy",
			fs: &FlowSpec{
				Flow: FlowMetadata{ID: "demo", Workspace: WorkspaceSpec{CleanupPolicy: "sometimes"}},
				Jobs: []JobSpec{{ID: "job1", Steps: []StepSpec{{ID: "s1", Type: "noop"}}}},
			},
		},
		{
			name: "bad lock scope",
			fs: &FlowSpec{
				Flow: FlowMetadata{ID: "demo", Locks: LocksSpec{Scope: "global"}},
				Jobs: []JobSpec{{ID: "job1", Steps: []StepSpec{{ID: "s1", Type: "noop"}}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.fs, ValidateOptions{})
			if !errors.Is(err, ErrInvalidEnum) {
				t.Errorf("expected ErrInvalidEnum, got %v", err)
			}
		})
	}
}

func TestValidate_EnvStrict(t *testing.T) {
	fs := &FlowSpec{
		Flow: FlowMetadata{ID: "demo"},
		Jobs: []JobSpec{
			{ID: "job1", Steps: []StepSpec{
				{ID: "s1", Type: "noop", Inputs: map[string]any{"region": "{{env.REGION}}"}},
			}},
		},
	}

	if err := Validate(fs, ValidateOptions{EnvStrict: true, Env: map[string]string{"REGION": "us-east-1"}}); err != nil {
		t.Errorf("expected no error with REGION present, got %v", err)
	}

	err := Validate(fs, ValidateOptions{EnvStrict: true, Env: map[string]string{}})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v (%T)", err, err)
	}
}

func TestValidate_ValidSpec(t *testing.T) {
	if err := Validate(validFlow(), ValidateOptions{}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
