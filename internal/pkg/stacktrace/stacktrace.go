// Package stacktrace extracts the service's own frames from a goroutine dump.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" locations found in stack,
// which is the output of runtime/debug.Stack.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/") && !strings.Contains(line, ":\\") {
			continue
		}

		loc, _, _ := strings.Cut(line, " ")
		if _, rel, ok := strings.Cut(loc, "/internal/"); ok && strings.Contains(rel, ".go:") {
			paths = append(paths, "internal/"+rel)
		}
	}
	return paths
}
