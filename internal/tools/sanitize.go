package tools

import (
	"path/filepath"
	"regexp"
	"strings"
)

// injectionPatterns are common prompt-injection markers stripped from every
// string value a tool call carries, before the handler ever sees it.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\|?(system|im_start|im_end)\|?>`),
	regexp.MustCompile(`(?i)\bsystem\s*:`),
	regexp.MustCompile(`(?i)\b(assistant|user)\s*:`),
	regexp.MustCompile(`(?i)ignore\s+(previous|above|all)\s+instructions`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)pretend\s+you\s+are\s+`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+)?you\s+are\s+`),
	regexp.MustCompile(`(?i)from\s+now\s+on,?\s+you\s+`),
}

// StripInjectionPatterns removes known prompt-injection markers from a
// string.
func StripInjectionPatterns(value string) string {
	result := value
	for _, pattern := range injectionPatterns {
		result = pattern.ReplaceAllString(result, "")
	}
	return result
}

var pathLikeKeys = map[string]bool{
	"path": true, "file_path": true, "directory": true, "target": true,
}

// SanitizePath collapses ".." segments out of path and, when a workspace is
// set, clamps the resolved path inside it.
func SanitizePath(path, workspace string) string {
	resolved := filepath.Clean(path)

	parts := strings.Split(resolved, string(filepath.Separator))
	kept := parts[:0]
	for _, p := range parts {
		if p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	resolved = strings.Join(kept, string(filepath.Separator))
	if resolved == "" {
		resolved = "."
	}

	if workspace == "" {
		return resolved
	}
	workspace = filepath.Clean(workspace)

	// Mirrors os.path.join semantics: an already-absolute resolved path
	// (e.g. one SanitizePath already clamped into the workspace) is used
	// as-is rather than re-joined, so sanitizing twice is idempotent.
	abs := resolved
	if !filepath.IsAbs(resolved) {
		abs = filepath.Join(workspace, resolved)
	}
	abs = filepath.Clean(abs)
	if !strings.HasPrefix(abs, workspace) {
		return workspace
	}
	return abs
}

// SanitizeInput recursively sanitises every string value in a tool's input
// map: injection markers are stripped everywhere, and path-like keys are
// additionally clamped by SanitizePath. Sanitising an already-sanitised
// input is idempotent.
func SanitizeInput(params map[string]any, workspace string) map[string]any {
	out := make(map[string]any, len(params))
	for key, value := range params {
		out[key] = sanitizeValue(key, value, workspace)
	}
	return out
}

func sanitizeValue(key string, value any, workspace string) any {
	switch v := value.(type) {
	case string:
		cleaned := StripInjectionPatterns(v)
		if pathLikeKeys[key] {
			cleaned = SanitizePath(cleaned, workspace)
		}
		return cleaned
	case map[string]any:
		return SanitizeInput(v, workspace)
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			switch it := item.(type) {
			case map[string]any:
				result[i] = SanitizeInput(it, workspace)
			case string:
				result[i] = StripInjectionPatterns(it)
			default:
				result[i] = it
			}
		}
		return result
	default:
		return value
	}
}
