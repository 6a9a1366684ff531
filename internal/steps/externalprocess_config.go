package steps

import (
	"fmt"
	"path/filepath"
)

type logConfig struct {
	Stdout      string // inherit | capture | file | discard
	Stderr      string
	FilePath    string
	MaxCaptureKB int
}

type idempotencyConfig struct {
	Strategy       string // none | marker | atomic_dir
	MarkerPath     string
	TempOutputDir  string
	FinalOutputDir string
}

type successConfig struct {
	ExitCodes      []int
	MarkerFile     string
	RequiredFiles  []string
	RequiredGlobs  []string
	ForbiddenFiles []string
}

type retryConfig struct {
	MaxAttempts        int
	SleepSeconds       float64
	BackoffSeconds     float64
	BackoffMultiplier  float64
	MaxBackoffSeconds  float64
	RetryOnExitCodes   []int
	RetryOnTimeout     bool
}

type externalProcessConfig struct {
	Command          []string
	Shell            bool
	Cwd              string
	TimeoutSeconds   float64
	KillGraceSeconds float64
	InheritEnv       bool
	Env              map[string]string
	Log              logConfig
	Idempotency      idempotencyConfig
	Success          successConfig
	Retry            retryConfig
	Outputs          map[string]any
}

func parseExternalProcessConfig(inputs map[string]any, artifactsDir string) (*externalProcessConfig, error) {
	cfg := &externalProcessConfig{
		Shell:            boolOr(inputs, "shell", false),
		KillGraceSeconds: floatOr(inputs, "kill_grace_seconds", 15),
		InheritEnv:       boolOr(inputs, "inherit_env", true),
		TimeoutSeconds:   floatOr(inputs, "timeout_seconds", 0),
	}

	switch v := inputs["command"].(type) {
	case string:
		cfg.Command = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				cfg.Command = append(cfg.Command, s)
			}
		}
	default:
		return nil, fmt.Errorf("external.process: %w: command", ErrMissingInput)
	}
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("external.process: %w: command", ErrMissingInput)
	}
	if args, ok := inputs["args"].([]any); ok {
		for _, a := range args {
			if s, ok := a.(string); ok {
				cfg.Command = append(cfg.Command, s)
			}
		}
	}

	cwd, _ := inputs["cwd"].(string)
	if cwd == "" {
		cfg.Cwd = artifactsDir
	} else if filepath.IsAbs(cwd) {
		cfg.Cwd = cwd
	} else {
		cfg.Cwd = filepath.Join(artifactsDir, cwd)
	}

	cfg.Env = map[string]string{}
	if envMap, ok := inputs["env"].(map[string]any); ok {
		for k, v := range envMap {
			if s, ok := v.(string); ok {
				cfg.Env[k] = s
			}
		}
	}

	if logSpec, ok := inputs["log"].(map[string]any); ok {
		cfg.Log.Stdout = stringOr(logSpec, "stdout", "inherit")
		cfg.Log.Stderr = stringOr(logSpec, "stderr", "inherit")
		cfg.Log.FilePath, _ = logSpec["file_path"].(string)
		cfg.Log.MaxCaptureKB = int(floatOr(logSpec, "max_capture_kb", 1024))
	} else {
		cfg.Log.Stdout = "inherit"
		cfg.Log.Stderr = "inherit"
		cfg.Log.MaxCaptureKB = 1024
	}

	if idem, ok := inputs["idempotency"].(map[string]any); ok {
		cfg.Idempotency.Strategy = stringOr(idem, "strategy", "none")
		cfg.Idempotency.MarkerPath, _ = idem["marker_path"].(string)
		cfg.Idempotency.TempOutputDir, _ = idem["temp_output_dir"].(string)
		cfg.Idempotency.FinalOutputDir, _ = idem["final_output_dir"].(string)
	} else {
		cfg.Idempotency.Strategy = "none"
	}

	cfg.Success.ExitCodes = []int{0}
	if succ, ok := inputs["success"].(map[string]any); ok {
		if codes, ok := succ["exit_codes"].([]any); ok && len(codes) > 0 {
			cfg.Success.ExitCodes = toIntSlice(codes)
		}
		cfg.Success.MarkerFile, _ = succ["marker_file"].(string)
		cfg.Success.RequiredFiles = toStringSlice(succ["required_files"])
		cfg.Success.RequiredGlobs = toStringSlice(succ["required_globs"])
		cfg.Success.ForbiddenFiles = toStringSlice(succ["forbidden_files"])
		if cfg.Idempotency.MarkerPath == "" {
			cfg.Idempotency.MarkerPath, _ = succ["marker_file"].(string)
		}
	}

	cfg.Retry.MaxAttempts = 1
	if r, ok := inputs["retry"].(map[string]any); ok {
		cfg.Retry.MaxAttempts = int(floatOr(r, "max_attempts", 1))
		cfg.Retry.SleepSeconds = floatOr(r, "sleep_seconds", 0)
		cfg.Retry.BackoffSeconds = floatOr(r, "backoff_seconds", cfg.Retry.SleepSeconds)
		cfg.Retry.BackoffMultiplier = floatOr(r, "backoff_multiplier", 1)
		cfg.Retry.MaxBackoffSeconds = floatOr(r, "max_backoff_seconds", 0)
		cfg.Retry.RetryOnTimeout = boolOr(r, "retry_on_timeout", false)
		cfg.Retry.RetryOnExitCodes = toIntSlice(r["retry_on_exit_codes"])
	}

	if out, ok := inputs["outputs"].(map[string]any); ok {
		cfg.Outputs = out
	}

	return cfg, nil
}

func boolOr(m map[string]any, key string, def bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func floatOr(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return def
}

func stringOr(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

func toIntSlice(v any) []int {
	seq, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(seq))
	for _, item := range seq {
		if f, ok := toFloat(item); ok {
			out = append(out, int(f))
		}
	}
	return out
}

func toStringSlice(v any) []string {
	seq, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
