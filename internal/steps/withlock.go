package steps

import (
	"context"
	"fmt"

	"github.com/aetherflow/aetherflow/internal/registry"
	"github.com/aetherflow/aetherflow/internal/runctx"
)

const defaultLockTTLSeconds = 600

// WithLockStep wraps an inner step under a keyed TTL mutex (spec.md §4.6).
// Inner is the step registry used to construct the nested step — it is the
// same registry with_lock itself is registered in.
type WithLockStep struct {
	Inner *registry.Registry[Step]
}

func (w *WithLockStep) Run(ctx context.Context, rc *runctx.RunContext, jobID, stepID string, inputs map[string]any) (Result, error) {
	lockKey, _ := inputs["lock_key"].(string)
	if lockKey == "" {
		return Result{}, fmt.Errorf("with_lock: %w: lock_key", ErrMissingInput)
	}

	ttl := defaultLockTTLSeconds
	if v, ok := inputs["ttl_seconds"]; ok {
		if f, ok := toFloat(v); ok {
			ttl = int(f)
		}
	}

	stepSpec, ok := inputs["step"].(map[string]any)
	if !ok {
		return Result{}, fmt.Errorf("with_lock: %w: step", ErrMissingInput)
	}
	innerType, _ := stepSpec["type"].(string)
	if innerType == "" {
		return Result{}, fmt.Errorf("with_lock: inner step missing type")
	}
	innerID, _ := stepSpec["id"].(string)
	if innerID == "" {
		innerID = stepID
	}
	innerInputs, _ := stepSpec["inputs"].(map[string]any)

	owner := rc.RunID
	acquired, err := rc.State.TryAcquireLock(ctx, lockKey, owner, ttl)
	if err != nil {
		return Result{}, fmt.Errorf("with_lock: acquire: %w", err)
	}
	if !acquired {
		return Result{}, fmt.Errorf("with_lock: key %q: %w", lockKey, ErrLockNotAcquired)
	}

	// Guaranteed release across normal, exceptional, and panic exits.
	defer func() {
		_ = rc.State.ReleaseLock(context.Background(), lockKey, owner)
	}()

	inner, err := w.Inner.Get(innerType)
	if err != nil {
		return Result{}, fmt.Errorf("with_lock: inner step: %w", err)
	}
	return inner.Run(ctx, rc, jobID, innerID, innerInputs)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
