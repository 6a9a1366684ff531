// Package resolver implements AetherFlow's single strict template resolver:
// a token is `{{PATH}}` or `{{PATH:DEFAULT}}`, nothing else. Scoping by
// phase is achieved purely by handing the resolver a smaller variable root —
// there is only one resolver function, never several template engines.
package resolver

import (
	"fmt"
	"regexp"
	"strings"
)

var standaloneTokenRe = regexp.MustCompile(`^\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)(?::([^}]*))?\s*\}\}$`)

var forbiddenSubstrings = []string{"${", "{%", "%}", "{#", "#}", "{}"}

func containsForbiddenSyntax(s string) bool {
	for _, f := range forbiddenSubstrings {
		if strings.Contains(s, f) {
			return true
		}
	}
	return hasBareBrace(s)
}

// hasBareBrace reports whether s contains a '{' or '}' that is not part of a
// doubled "{{" / "}}" pair — e.g. "{foo}" or a stray trailing "}". The
// grammar has no single-brace form, so any lone brace is unsupported syntax.
func hasBareBrace(s string) bool {
	i := 0
	for i < len(s) {
		switch s[i] {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				i += 2
				continue
			}
			return true
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				i += 2
				continue
			}
			return true
		}
		i++
	}
	return false
}

func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	for i, r := range tok {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			continue
		case i > 0 && r >= '0' && r <= '9':
			continue
		default:
			return false
		}
	}
	return true
}

func isValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, part := range strings.Split(path, ".") {
		if !isIdentifier(part) {
			return false
		}
	}
	return true
}

func rootOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// lookupPath traverses PATH through root as nested maps. An unresolved
// segment is reported as missing (found=false); an empty-string value is
// returned as found, and callers decide whether to treat it as missing.
func lookupPath(root map[string]any, path string) (found bool, value any) {
	parts := strings.Split(path, ".")
	var cur any = root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return false, nil
		}
		v, ok := m[p]
		if !ok {
			return false, nil
		}
		cur = v
	}
	return true, cur
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// RenderString renders every `{{PATH}}`/`{{PATH:DEFAULT}}` token in value
// against root, restricted to allowedRoots (nil means "no restriction" and
// is only used by internal helpers — callers should always pass a set).
// The result is always a string: numeric/bool typed values are stringified.
func RenderString(value string, root map[string]any, allowedRoots map[string]bool) (string, error) {
	if containsForbiddenSyntax(value) {
		return "", &SyntaxError{Value: value}
	}

	var out strings.Builder
	i := 0
	for i < len(value) {
		start := strings.Index(value[i:], "{{")
		if start < 0 {
			out.WriteString(value[i:])
			break
		}
		start += i

		// Anything before the token is copied verbatim, but a stray "}}" that
		// precedes this "{{" means we mis-scanned a bare brace earlier.
		segment := value[i:start]
		if strings.Contains(segment, "}}") {
			return "", &SyntaxError{Value: value}
		}
		out.WriteString(segment)

		end := strings.Index(value[start:], "}}")
		if end < 0 {
			return "", &SyntaxError{Value: value}
		}
		end += start

		inner := strings.TrimSpace(value[start+2 : end])
		if inner == "" || strings.ContainsAny(inner, "{}") {
			return "", &SyntaxError{Value: value}
		}

		path := inner
		var def string
		hasDefault := false
		if ci := strings.IndexByte(inner, ':'); ci >= 0 {
			path = strings.TrimSpace(inner[:ci])
			def = inner[ci+1:]
			hasDefault = true
		}

		if !isValidPath(path) {
			return "", &SyntaxError{Value: value}
		}
		if allowedRoots != nil && !allowedRoots[rootOf(path)] {
			return "", &DisallowedRootError{Path: path, Root: rootOf(path)}
		}

		found, resolved := lookupPath(root, path)
		text := stringify(resolved)
		if !found || text == "" {
			if hasDefault {
				text = def
			} else {
				return "", &MissingKeyError{Path: path}
			}
		}
		out.WriteString(text)

		i = end + 2
	}

	result := out.String()
	if containsForbiddenSyntax(result) {
		return "", &SyntaxError{Value: result}
	}
	return result, nil
}

// RenderStringOrTyped behaves like RenderString, except that when value is an
// exact standalone token (the whole string is one `{{...}}`), the raw typed
// value is returned instead of its string form — this is how numbers, bools,
// and nested structures survive substitution.
func RenderStringOrTyped(value string, root map[string]any, allowedRoots map[string]bool) (any, error) {
	if containsForbiddenSyntax(value) {
		return nil, &SyntaxError{Value: value}
	}

	m := standaloneTokenRe.FindStringSubmatch(value)
	if m == nil {
		return RenderString(value, root, allowedRoots)
	}

	path := m[1]
	hasDefault := strings.Contains(value, ":")
	def := m[2]

	if allowedRoots != nil && !allowedRoots[rootOf(path)] {
		return nil, &DisallowedRootError{Path: path, Root: rootOf(path)}
	}

	found, resolved := lookupPath(root, path)
	if found && stringify(resolved) != "" {
		return resolved, nil
	}
	if hasDefault {
		return def, nil
	}
	return nil, &MissingKeyError{Path: path}
}

// RenderValue deep-walks obj, rendering string leaves with RenderStringOrTyped
// and recursing into maps/slices. Other scalar types pass through unchanged.
func RenderValue(obj any, root map[string]any, allowedRoots map[string]bool) (any, error) {
	switch v := obj.(type) {
	case string:
		return RenderStringOrTyped(v, root, allowedRoots)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			rendered, err := RenderValue(val, root, allowedRoots)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, root, allowedRoots)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return obj, nil
	}
}

// IsStandaloneToken reports whether value is a single `{{PATH}}` or
// `{{PATH:DEFAULT}}` token with nothing else around it, used to decide
// whether a decode-marked field may be passed to the secrets decode hook.
func IsStandaloneToken(value string) bool {
	return standaloneTokenRe.MatchString(strings.TrimSpace(value))
}

// ExtractEnvPaths returns every distinct `env.*` PATH referenced anywhere in
// obj, used by strict env validation at spec-validation time.
func ExtractEnvPaths(obj any) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, path := range extractPathsFromString(t) {
				if rootOf(path) == "env" && !seen[path] {
					seen[path] = true
					out = append(out, path)
				}
			}
		case map[string]any:
			for _, val := range t {
				walk(val)
			}
		case []any:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(obj)
	return out
}

var tokenRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*(?::[^}]*)?\s*\}\}`)

func extractPathsFromString(s string) []string {
	matches := tokenRe.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
