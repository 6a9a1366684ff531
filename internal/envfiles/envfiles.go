// Package envfiles implements the env-file spec of spec.md §6: ordered
// dotenv/json/dir sources layered deterministically, last-wins, over a
// caller-supplied env snapshot.
package envfiles

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aetherflow/aetherflow/internal/spec"
)

// Load applies each spec in order onto a copy of base and returns the result.
// baseDir, if non-empty, resolves relative Path entries (used for
// manifest-supplied env files resolved against a synced bundle root).
func Load(base map[string]string, specs []spec.EnvFileSpec, baseDir string) (map[string]string, error) {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, es := range specs {
		path := es.Path
		if baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		vals, err := loadOne(es.Type, path)
		if err != nil {
			if es.Optional && os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("envfiles: load %s (%s): %w", path, es.Type, err)
		}
		for k, v := range vals {
			out[es.Prefix+k] = v
		}
	}
	return out, nil
}

func loadOne(kind, path string) (map[string]string, error) {
	switch kind {
	case "dotenv":
		return loadDotenv(path)
	case "json":
		return loadJSON(path)
	case "dir":
		return loadDir(path)
	default:
		return nil, fmt.Errorf("unknown env-file type: %s", kind)
	}
}

func loadDotenv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		val = unquote(val)
		out[key] = val
	}
	return out, scanner.Err()
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func loadJSON(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid json env file: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

func loadDir(path string) (map[string]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, err
		}
		out[e.Name()] = strings.TrimRight(string(data), "\n")
	}
	return out, nil
}
