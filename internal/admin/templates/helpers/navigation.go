package helpers

import "strings"

// JoinPath appends suffix to base, collapsing duplicate slashes.
func JoinPath(base, suffix string) string {
	return normalizeRoute(normalizeRoute(base) + "/" + strings.TrimLeft(suffix, "/"))
}

func normalizeRoute(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
