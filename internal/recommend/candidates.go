package recommend

import (
	"path"
	"strings"
)

// TestFileCandidates derives up to four conventional test-file names for a changed source
// file. A file that already is a test nominates itself; a file without an extension
// nominates nothing.
func TestFileCandidates(file string) []string {
	file = strings.TrimPrefix(path.Clean(strings.ReplaceAll(file, "\\", "/")), "./")
	if file == "" || file == "." {
		return nil
	}
	if IsTestFile(file) {
		return []string{file}
	}

	ext := path.Ext(file)
	if ext == "" {
		return nil
	}
	dir := path.Dir(file)
	base := strings.TrimSuffix(path.Base(file), ext)

	switch ext {
	case ".go":
		return []string{path.Join(dir, base+"_test.go")}
	case ".py":
		return []string{
			path.Join(dir, "test_"+base+".py"),
			path.Join(dir, base+"_test.py"),
			path.Join("tests", dir, "test_"+base+".py"),
		}
	default:
		return []string{
			path.Join(dir, base+".test"+ext),
			path.Join(dir, base+".spec"+ext),
			path.Join(dir, "__tests__", base+".test"+ext),
			path.Join("tests", dir, base+".test"+ext),
		}
	}
}

// IsTestFile reports whether file follows a common test naming convention.
func IsTestFile(file string) bool {
	base := path.Base(file)
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.Contains(base, ".test."), strings.Contains(base, ".spec."):
		return true
	case strings.HasSuffix(base, ".py") && (strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py")):
		return true
	case strings.Contains("/"+file, "/__tests__/"):
		return true
	}
	return false
}
