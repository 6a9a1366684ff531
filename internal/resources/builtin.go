package resources

import (
	"fmt"
	"net/http"
	"time"
)

// RegisterBuiltins wires the connector kinds the core ships with: "noop"
// (a placeholder handle for tests/probes) and "http" (a thin net/http.Client
// wrapper backing the http.request step).
func RegisterBuiltins(reg *ConnectorRegistry) {
	reg.Register("noop", "noop", func(_, _ map[string]any) (Connector, error) {
		return noopConnector{}, nil
	})
	reg.Register("http", "default", func(config, options map[string]any) (Connector, error) {
		timeout := 30 * time.Second
		if v, ok := config["timeout_seconds"]; ok {
			if f, ok := toFloat(v); ok {
				timeout = time.Duration(f * float64(time.Second))
			}
		}
		baseURL, _ := config["base_url"].(string)
		return &HTTPConnector{Client: &http.Client{Timeout: timeout}, BaseURL: baseURL}, nil
	})
}

type noopConnector struct{}

func (noopConnector) Close() error { return nil }

// HTTPConnector is a thin, stateful handle around net/http.Client.
type HTTPConnector struct {
	Client  *http.Client
	BaseURL string
}

func (c *HTTPConnector) Close() error { return nil }

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		var f float64
		_, err := fmt.Sscanf(t, "%g", &f)
		return f, err == nil
	default:
		return 0, false
	}
}
