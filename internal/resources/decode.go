package resources

import (
	"fmt"
	"strings"
)

// CollectDecodeRequests extracts dotted leaf paths to decode from a decode
// spec supporting both shapes seen in original_source/resolution.py:
// nested bool-maps under "config"/"options", and "config_paths"/"options_paths"
// lists. De-dupes while preserving first-seen order.
func CollectDecodeRequests(decodeSpec map[string]any) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, root := range []string{"config", "options"} {
		if v, ok := decodeSpec[root]; ok {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("decode.%s must be a mapping", root)
			}
			paths, err := walkBoolMap(root, m)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				add(p)
			}
		}
	}

	for _, key := range []string{"config_paths", "options_paths"} {
		v, ok := decodeSpec[key]
		if !ok {
			continue
		}
		seq, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("decode.%s must be a sequence", key)
		}
		root := strings.TrimSuffix(key, "_paths")
		for _, item := range seq {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("decode.%s entries must be non-empty strings", key)
			}
			add(root + "." + s)
		}
	}

	return out, nil
}

func walkBoolMap(prefix string, m map[string]any) ([]string, error) {
	var out []string
	for k, v := range m {
		path := prefix + "." + k
		switch t := v.(type) {
		case bool:
			if t {
				out = append(out, path)
			}
		case map[string]any:
			nested, err := walkBoolMap(path, t)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		case nil:
			// treated as false
		default:
			return nil, fmt.Errorf("decode leaf at %s must be a boolean", path)
		}
	}
	return out, nil
}

// GetByPath/SetByPath traverse a dotted path ("config.password") through a
// nested map[string]any tree, rooted at a resource_dict-shaped map (i.e. the
// first segment is "config" or "options").
func GetByPath(root map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func SetByPath(root map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := root
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
}
