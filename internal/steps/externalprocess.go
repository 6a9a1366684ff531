package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aetherflow/aetherflow/internal/runctx"
)

// ExternalProcessStep runs a subprocess with timeout escalation, idempotency
// strategies, retry/backoff, and success validation, per spec.md §4.7.
type ExternalProcessStep struct{}

func (ExternalProcessStep) Run(ctx context.Context, rc *runctx.RunContext, jobID, stepID string, inputs map[string]any) (Result, error) {
	cfg, err := parseExternalProcessConfig(inputs, rc.StepArtifactsDir(jobID, stepID))
	if err != nil {
		return Result{}, err
	}

	if cfg.Idempotency.Strategy == "marker" && cfg.Idempotency.MarkerPath != "" {
		if _, statErr := os.Stat(cfg.Idempotency.MarkerPath); statErr == nil {
			if err := validateSuccess(cfg.Success, 0); err == nil {
				return Result{Status: StatusSkipped, Outputs: map[string]any{
					"skipped": true,
					"marker":  cfg.Idempotency.MarkerPath,
					"reason":  "marker_present",
				}}, nil
			}
		}
	}

	if cfg.Idempotency.Strategy == "atomic_dir" {
		if cfg.Idempotency.TempOutputDir == "" || cfg.Idempotency.FinalOutputDir == "" {
			return Result{}, fmt.Errorf("external.process: atomic_dir requires temp_output_dir and final_output_dir")
		}
		if err := os.RemoveAll(cfg.Idempotency.TempOutputDir); err != nil {
			return Result{}, fmt.Errorf("external.process: clear temp dir: %w", err)
		}
		if err := os.MkdirAll(cfg.Idempotency.TempOutputDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("external.process: create temp dir: %w", err)
		}
	}

	injected := map[string]string{
		"AETHERFLOW_FLOW_ID": rc.FlowID,
		"AETHERFLOW_RUN_ID":  rc.RunID,
	}
	if cfg.Idempotency.Strategy == "atomic_dir" {
		injected["AETHERFLOW_OUTPUT_DIR"] = cfg.Idempotency.TempOutputDir
	}

	var attempts int
	var lastErr error
	for {
		attempts++
		exitCode, stdoutBuf, stderrBuf, timedOut, runErr := runOnce(ctx, cfg, injected)
		if runErr != nil && !timedOut {
			return Result{}, fmt.Errorf("external.process: spawn failed: %w", runErr)
		}

		if timedOut {
			lastErr = fmt.Errorf("external.process: %w after %v", ErrTimeout, time.Duration(cfg.TimeoutSeconds*float64(time.Second)))
			if cfg.Retry.RetryOnTimeout && attempts < cfg.Retry.MaxAttempts {
				sleepBackoff(cfg.Retry, attempts)
				continue
			}
			return Result{}, lastErr
		}

		if !containsInt(cfg.Success.ExitCodes, exitCode) {
			lastErr = fmt.Errorf("external.process: exit code %d not in success set %v", exitCode, cfg.Success.ExitCodes)
			if containsInt(cfg.Retry.RetryOnExitCodes, exitCode) && attempts < cfg.Retry.MaxAttempts {
				sleepBackoff(cfg.Retry, attempts)
				continue
			}
			return Result{}, lastErr
		}

		// Validate before promoting: Testable Property 7 requires that on
		// failure no file appears in final_output_dir that wasn't already
		// there, so the temp->final move must happen only after validation
		// passes, not before.
		if err := validateSuccess(cfg.Success, exitCode); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrOutputsInvalid, err)
		}

		if cfg.Idempotency.Strategy == "atomic_dir" {
			if err := promoteAtomicDir(cfg.Idempotency.TempOutputDir, cfg.Idempotency.FinalOutputDir); err != nil {
				return Result{}, fmt.Errorf("external.process: promote atomic_dir: %w", err)
			}
		}

		outputs := map[string]any{"exit_code": exitCode, "attempts": attempts}
		if cfg.Log.Stdout == "capture" {
			outputs["stdout"] = capBytes(stdoutBuf, cfg.Log.MaxCaptureKB)
		}
		if cfg.Log.Stderr == "capture" {
			outputs["stderr"] = capBytes(stderrBuf, cfg.Log.MaxCaptureKB)
		}
		if cfg.Log.FilePath != "" {
			outputs["log_file"] = cfg.Log.FilePath
		}
		for k, v := range cfg.Outputs {
			outputs[k] = v
		}
		return Result{Status: StatusSuccess, Outputs: outputs}, nil
	}
}

// runOnce executes one attempt, enforcing the Starting -> Running [->
// TimedOut -> Terminating -> Killed] -> Exited state machine via a
// terminate-then-kill escalation.
func runOnce(ctx context.Context, cfg *externalProcessConfig, injected map[string]string) (exitCode int, stdout, stderr *bytes.Buffer, timedOut bool, err error) {
	name := cfg.Command[0]
	args := cfg.Command[1:]

	cmd := exec.Command(name, args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = buildEnv(cfg, injected)

	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	var stdoutWriter, stderrWriter io.Writer
	stdoutWriter, stdoutCloser := outputSink(cfg.Log.Stdout, os.Stdout, stdout, cfg.Log.FilePath)
	stderrWriter, stderrCloser := outputSink(cfg.Log.Stderr, os.Stderr, stderr, cfg.Log.FilePath)
	defer closeIfSet(stdoutCloser)
	defer closeIfSet(stderrCloser)
	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	if err := os.MkdirAll(cfg.Cwd, 0o755); err != nil {
		return 0, stdout, stderr, false, err
	}
	if err := cmd.Start(); err != nil {
		return 0, stdout, stderr, false, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer <-chan time.Time
	if cfg.TimeoutSeconds > 0 {
		t := time.NewTimer(time.Duration(cfg.TimeoutSeconds * float64(time.Second)))
		defer t.Stop()
		timer = t.C
	}

	select {
	case werr := <-done:
		return extractExitCode(werr), stdout, stderr, false, nil
	case <-timer:
		// TimedOut -> Terminating: graceful signal, then wait the grace period.
		_ = cmd.Process.Signal(syscall.SIGTERM)
		grace := time.NewTimer(time.Duration(cfg.KillGraceSeconds * float64(time.Second)))
		defer grace.Stop()
		select {
		case werr := <-done:
			return extractExitCode(werr), stdout, stderr, true, nil
		case <-grace.C:
			// Terminating -> Killed
			_ = cmd.Process.Kill()
			<-done
			return -1, stdout, stderr, true, nil
		}
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		<-done
		return -1, stdout, stderr, false, ctx.Err()
	}
}

func extractExitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func buildEnv(cfg *externalProcessConfig, injected map[string]string) []string {
	var env []string
	if cfg.InheritEnv {
		env = append(env, os.Environ()...)
	}
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range injected {
		env = append(env, k+"="+v)
	}
	return env
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func outputSink(mode string, inherit io.Writer, buf *bytes.Buffer, filePath string) (io.Writer, io.Closer) {
	switch mode {
	case "capture":
		return buf, nopCloser{}
	case "file":
		f, err := os.Create(filePath)
		if err != nil {
			return io.Discard, nopCloser{}
		}
		return f, f
	case "discard":
		return io.Discard, nopCloser{}
	default: // inherit
		return inherit, nopCloser{}
	}
}

func closeIfSet(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func capBytes(buf *bytes.Buffer, maxKB int) string {
	s := buf.String()
	limit := maxKB * 1024
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

func sleepBackoff(r retryConfig, attempt int) {
	delay := r.BackoffSeconds
	if delay == 0 {
		delay = r.SleepSeconds
	}
	if r.BackoffMultiplier > 1 {
		delay = delay * math.Pow(r.BackoffMultiplier, float64(attempt-1))
	}
	if r.MaxBackoffSeconds > 0 && delay > r.MaxBackoffSeconds {
		delay = r.MaxBackoffSeconds
	}
	if delay > 0 {
		time.Sleep(time.Duration(delay * float64(time.Second)))
	}
}

// promoteAtomicDir moves every entry of tempDir into finalDir with one
// os.Rename per entry. Each rename is atomic when both dirs share a mount,
// but the promotion as a whole is not, and a cross-mount rename fails with
// an error; there is no copy fallback.
func promoteAtomicDir(tempDir, finalDir string) error {
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		src := filepath.Join(tempDir, e.Name())
		dst := filepath.Join(finalDir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
		}
	}
	return nil
}

// validateSuccess checks the declared success rules. Naming the violated
// rule in the returned error, per spec.md §4.7.
func validateSuccess(s successConfig, exitCode int) error {
	if s.MarkerFile != "" {
		if _, err := os.Stat(s.MarkerFile); err != nil {
			return fmt.Errorf("marker absent: %s", s.MarkerFile)
		}
	}
	for _, f := range s.RequiredFiles {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("missing required file: %s", f)
		}
	}
	for _, g := range s.RequiredGlobs {
		matches, err := filepath.Glob(g)
		if err != nil || len(matches) == 0 {
			return fmt.Errorf("glob unsatisfied: %s", g)
		}
	}
	for _, f := range s.ForbiddenFiles {
		if _, err := os.Stat(f); err == nil {
			return fmt.Errorf("present forbidden file: %s", f)
		}
	}
	return nil
}
