// Package diff extracts the set of touched file paths from unified diff text.
package diff

import (
	"sort"
	"strings"
)

const devNull = "/dev/null"

// ExtractChangedFiles returns the new-side paths touched by a unified diff, deduplicated
// and sorted. Deleted files are excluded. Malformed input yields an empty or partial
// result, never an error.
func ExtractChangedFiles(diffText string) []string {
	if diffText == "" {
		return []string{}
	}

	seen := make(map[string]struct{})
	deleted := make(map[string]struct{})

	var current, prev string
	for _, raw := range strings.Split(diffText, "\n") {
		line := strings.TrimRight(raw, "\r")

		switch {
		case strings.HasPrefix(line, "diff --git "):
			current = headerPath(line)
			if current != "" {
				seen[current] = struct{}{}
			}

		// A "+++" line is only a file marker right after "---"; inside a hunk it is an
		// added line whose content starts with "++".
		case strings.HasPrefix(line, "+++ ") && strings.HasPrefix(prev, "--- "):
			target := markerPath(line[len("+++ "):])
			if target == devNull {
				if current != "" {
					deleted[current] = struct{}{}
				}
				break
			}
			if p := strings.TrimPrefix(target, "b/"); p != "" {
				seen[p] = struct{}{}
			}
		}

		prev = line
	}

	files := make([]string, 0, len(seen))
	for p := range seen {
		if _, gone := deleted[p]; gone {
			continue
		}
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}

// headerPath returns the b/ side of "diff --git a/<old> b/<new>".
func headerPath(line string) string {
	rest := strings.TrimPrefix(line, "diff --git ")
	idx := strings.LastIndex(rest, " b/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(rest[idx+len(" b/"):])
}

// markerPath drops the optional tab-separated timestamp some tools append to ---/+++ lines.
func markerPath(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
