package ingestion

import (
	"path"
	"strings"
)

// Extensions tried, in order, when a module specifier names a file
// without its extension.
var resolveExtensions = []string{".py", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// resolver maps module specifiers to discovered file paths.
type resolver struct {
	files map[string]struct{}
}

func newResolver(paths []string) *resolver {
	r := &resolver{files: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		r.files[p] = struct{}{}
	}
	return r
}

func (r *resolver) has(p string) bool {
	_, ok := r.files[p]
	return ok
}

// resolve returns the discovered file an import in fromFile refers to.
//
// Relative specifiers ("./x", "../x" and Python's ".x", "..x") resolve
// against the importing file's directory; anything else is treated as a
// dotted module path from the root. Unresolvable specifiers, including
// relative ones that climb above the root, return false.
func (r *resolver) resolve(module, fromFile string) (string, bool) {
	if module == "" {
		return "", false
	}
	if strings.HasPrefix(module, ".") {
		base, ok := relativeBase(module, path.Dir(fromFile))
		if !ok {
			return "", false
		}
		if r.has(base) {
			return base, true
		}
		return r.firstMatch(base, "", "index", "__init__")
	}
	return r.firstMatch(strings.ReplaceAll(module, ".", "/"), "", "__init__")
}

// firstMatch tries base with each extension, then base/<name> for each
// index name in order.
func (r *resolver) firstMatch(base string, names ...string) (string, bool) {
	for _, name := range names {
		stem := base
		if name != "" {
			stem = path.Join(base, name)
		}
		for _, ext := range resolveExtensions {
			if r.has(stem + ext) {
				return stem + ext, true
			}
		}
	}
	return "", false
}

// relativeBase computes the path a relative specifier points to.
func relativeBase(module, dir string) (string, bool) {
	var base string
	if module == "." || module == ".." || strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") {
		base = path.Join(dir, module)
	} else {
		// Python: n leading dots climb n-1 packages.
		dots := len(module) - len(strings.TrimLeft(module, "."))
		parts := []string{dir}
		for range dots - 1 {
			parts = append(parts, "..")
		}
		parts = append(parts, strings.ReplaceAll(module[dots:], ".", "/"))
		base = path.Join(parts...)
	}
	if base == ".." || strings.HasPrefix(base, "../") {
		return "", false
	}
	return base, true
}
