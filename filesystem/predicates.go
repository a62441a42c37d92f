package filesystem

import (
	"path/filepath"
	"strings"
)

var sourceExts = []string{".ts", ".js", ".tsx", ".jsx", ".mjs", ".cjs"}

// IsTestFile checks if a file is a test file based on its name.
func IsTestFile(name string) bool {
	base := filepath.Base(name)
	for _, ext := range sourceExts {
		if strings.HasSuffix(base, ".test"+ext) || strings.HasSuffix(base, ".spec"+ext) {
			return true
		}
	}
	return false
}

// IsSourceFile checks if a file is a compilable source file.
func IsSourceFile(name string) bool {
	for _, ext := range sourceExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
