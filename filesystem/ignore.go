package filesystem

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// DefaultVendorDirs are the dependency directories nothing is watched inside.
var DefaultVendorDirs = []string{"node_modules", "vendor"}

// Ignorer decides which paths are skipped while expanding sources and which
// paths lie across the vendored boundary.
type Ignorer struct {
	root     string
	vendor   []string
	patterns []string
}

// NewIgnorer creates a new Ignorer rooted at root and loads patterns from
// .gitignore if present. An empty vendor list selects DefaultVendorDirs.
func NewIgnorer(root string, vendor []string) *Ignorer {
	if len(vendor) == 0 {
		vendor = DefaultVendorDirs
	}
	ign := &Ignorer{
		root:   root,
		vendor: vendor,
		patterns: []string{
			".git",
			"dist",
			"build",
			"coverage",
			".DS_Store",
			"*.log",
		},
	}
	ign.patterns = append(ign.patterns, vendor...)

	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ign.patterns = append(ign.patterns, line)
		}
	}
	return ign
}

// IsVendored reports whether any element of path is a vendored directory.
func (i *Ignorer) IsVendored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, v := range i.vendor {
			if part == v {
				return true
			}
		}
	}
	return false
}

// ShouldIgnore checks if the given path should be skipped during expansion.
// It checks against the file name (basename) and the path relative to the root.
func (i *Ignorer) ShouldIgnore(path string) bool {
	name := filepath.Base(path)
	relPath, err := filepath.Rel(i.root, path)
	if err != nil {
		relPath = name
	}

	for _, p := range i.patterns {
		cleanP := strings.TrimSuffix(p, "/")

		isAnchored := strings.HasPrefix(cleanP, "/")
		cleanP = strings.TrimPrefix(cleanP, "/")

		if isAnchored {
			if relPath == cleanP || strings.HasPrefix(relPath, cleanP+string(os.PathSeparator)) {
				return true
			}
			continue
		}

		// Basename match covers "node_modules", "*.log", "ignored_dir/"
		if matched, _ := filepath.Match(cleanP, name); matched {
			return true
		}

		// Relative match covers patterns like "src/foo"
		if relPath == cleanP || strings.HasPrefix(relPath, cleanP+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}
