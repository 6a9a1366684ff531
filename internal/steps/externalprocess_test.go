package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aetherflow/aetherflow/internal/runctx"
)

func testRunContextForProcess(t *testing.T) *runctx.RunContext {
	t.Helper()
	root := t.TempDir()
	return &runctx.RunContext{FlowID: "demo", RunID: "run1", WorkRoot: root}
}

func TestExternalProcessStep_Success(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)

	result, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c", "echo hello"},
		"log":     map[string]any{"stdout": "capture", "stderr": "capture"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("status = %q", result.Status)
	}
	if result.Outputs["exit_code"] != 0 {
		t.Errorf("exit_code = %v", result.Outputs["exit_code"])
	}
	if result.Outputs["stdout"] != "hello\n" {
		t.Errorf("stdout = %q", result.Outputs["stdout"])
	}
}

func TestExternalProcessStep_NonZeroExitFails(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)

	_, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c", "exit 7"},
	})
	if err == nil {
		t.Fatal("expected error for non-zero exit, got nil")
	}
}

func TestExternalProcessStep_SuccessExitCodesAllowsNonZero(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)

	result, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c", "exit 3"},
		"success": map[string]any{"exit_codes": []any{float64(0), float64(3)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["exit_code"] != 3 {
		t.Errorf("exit_code = %v", result.Outputs["exit_code"])
	}
}

func TestExternalProcessStep_TimeoutWithoutRetry(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)

	_, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command":            []any{"/bin/sh", "-c", "sleep 5"},
		"timeout_seconds":    float64(0.1),
		"kill_grace_seconds": float64(0.1),
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExternalProcessStep_RetryOnExitCodeEventuallySucceeds(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)
	marker := filepath.Join(t.TempDir(), "attempted")

	result, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c",
			"if [ -f " + marker + " ]; then exit 0; else touch " + marker + "; exit 1; fi"},
		"retry": map[string]any{
			"max_attempts":        float64(2),
			"retry_on_exit_codes": []any{float64(1)},
			"sleep_seconds":       float64(0),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["attempts"] != 2 {
		t.Errorf("attempts = %v, want 2", result.Outputs["attempts"])
	}
}

func TestExternalProcessStep_SuccessValidation_RequiredFileMissing(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)

	_, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c", "true"},
		"success": map[string]any{"required_files": []any{filepath.Join(t.TempDir(), "never-created")}},
	})
	if !errors.Is(err, ErrOutputsInvalid) {
		t.Fatalf("expected ErrOutputsInvalid, got %v", err)
	}
}

func TestExternalProcessStep_SuccessValidation_RequiredFilePresent(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "done")

	result, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c", "touch " + marker},
		"success": map[string]any{"required_files": []any{marker}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("status = %q", result.Status)
	}
}

func TestExternalProcessStep_AtomicDirPromotesOnSuccess(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)
	base := t.TempDir()
	temp := filepath.Join(base, "temp")
	final := filepath.Join(base, "final")

	result, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c", "echo data > \"$AETHERFLOW_OUTPUT_DIR/out.txt\""},
		"idempotency": map[string]any{
			"strategy":         "atomic_dir",
			"temp_output_dir":  temp,
			"final_output_dir": final,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("status = %q", result.Status)
	}
	if _, statErr := os.Stat(filepath.Join(final, "out.txt")); statErr != nil {
		t.Errorf("expected out.txt promoted into final dir: %v", statErr)
	}
}

// TestExternalProcessStep_AtomicDirDoesNotPromoteOnValidationFailure verifies
// Testable Property 7: on failure, no file appears in final_output_dir that
// wasn't present before the attempt. Validation must run before the
// temp->final move.
func TestExternalProcessStep_AtomicDirDoesNotPromoteOnValidationFailure(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)
	base := t.TempDir()
	temp := filepath.Join(base, "temp")
	final := filepath.Join(base, "final")

	_, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command": []any{"/bin/sh", "-c", "echo data > \"$AETHERFLOW_OUTPUT_DIR/out.txt\""},
		"idempotency": map[string]any{
			"strategy":         "atomic_dir",
			"temp_output_dir":  temp,
			"final_output_dir": final,
		},
		"success": map[string]any{"required_files": []any{filepath.Join(base, "never-created")}},
	})
	if !errors.Is(err, ErrOutputsInvalid) {
		t.Fatalf("expected ErrOutputsInvalid, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(final, "out.txt")); !os.IsNotExist(statErr) {
		t.Errorf("expected no file promoted into final dir on validation failure, stat err = %v", statErr)
	}
}

func TestExternalProcessStep_IdempotencyMarkerSkipsRerun(t *testing.T) {
	s := ExternalProcessStep{}
	rc := testRunContextForProcess(t)
	marker := filepath.Join(t.TempDir(), "marker")
	if err := os.WriteFile(marker, []byte("done"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	result, err := s.Run(context.Background(), rc, "job1", "step1", map[string]any{
		"command":     []any{"/bin/sh", "-c", "exit 1"}, // would fail if actually run
		"idempotency": map[string]any{"strategy": "marker", "marker_path": marker},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSkipped {
		t.Errorf("status = %q, want %q", result.Status, StatusSkipped)
	}
}
