package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aetherflow/aetherflow/internal/resources"
	"github.com/aetherflow/aetherflow/internal/runctx"
)

// HTTPRequestStep is a thin wrapper over an "http" resource/connector,
// grounded on the teacher's HTTPExecutor (internal/worker/http_executor.go)
// but expressed as a Step against a resolved connector handle. Supplemented
// from SPEC_FULL.md's domain-stack expansion.
type HTTPRequestStep struct{}

func (HTTPRequestStep) Run(ctx context.Context, rc *runctx.RunContext, _, _ string, inputs map[string]any) (Result, error) {
	resourceName, _ := inputs["resource"].(string)
	if resourceName == "" {
		return Result{}, fmt.Errorf("http.request: %w: resource", ErrMissingInput)
	}
	conn, err := rc.Connector(resourceName)
	if err != nil {
		return Result{}, err
	}
	httpConn, ok := conn.(*resources.HTTPConnector)
	if !ok {
		return Result{}, fmt.Errorf("http.request: resource %q is not an http connector", resourceName)
	}

	method, _ := inputs["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	path, _ := inputs["path"].(string)
	url := httpConn.BaseURL + path
	if u, ok := inputs["url"].(string); ok && u != "" {
		url = u
	}

	var bodyReader io.Reader
	if b, ok := inputs["body"].(string); ok && b != "" {
		bodyReader = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return Result{}, fmt.Errorf("http.request: build request: %w", err)
	}
	if headers, ok := inputs["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := httpConn.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http.request: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return Result{}, fmt.Errorf("http.request: read body: %w", err)
	}

	if !statusAllowed(resp.StatusCode, inputs) {
		return Result{}, fmt.Errorf("http.request: %w: status %d", ErrOutputsInvalid, resp.StatusCode)
	}

	outputs := map[string]any{
		"status_code": resp.StatusCode,
		"body":        buf.String(),
	}
	return Result{Status: StatusSuccess, Outputs: outputs}, nil
}

func statusAllowed(code int, inputs map[string]any) bool {
	success, _ := inputs["success"].(map[string]any)
	if success != nil {
		if raw, ok := success["status_codes"].([]any); ok && len(raw) > 0 {
			for _, v := range raw {
				if f, ok := toFloat(v); ok && int(f) == code {
					return true
				}
			}
			return false
		}
	}
	return code >= 200 && code < 300
}
