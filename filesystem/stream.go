package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boyter/gocodewalker"
)

// StreamFiles starts a file walker and returns a channel of files.
// It abstracts the boilerplate of creating the channel and starting the goroutine.
func StreamFiles(root string) <-chan *gocodewalker.File {
	fileListQueue := make(chan *gocodewalker.File, 100)
	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)

	go func() {
		_ = fileWalker.Start()
	}()

	return fileListQueue
}

// ExpandSources turns the configured source list into absolute test file paths.
// Files are taken as given, directories are walked for test files and
// patterns are globbed.
func ExpandSources(sources []string, ign *Ignorer) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, src := range sources {
		if strings.ContainsAny(src, "*?[") {
			matches, err := filepath.Glob(src)
			if err != nil {
				return nil, fmt.Errorf("bad source pattern %q: %w", src, err)
			}
			for _, m := range matches {
				if abs, err := filepath.Abs(m); err == nil && IsSourceFile(abs) && !ign.IsVendored(abs) {
					add(abs)
				}
			}
			continue
		}

		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src, err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		for f := range StreamFiles(abs) {
			if !IsTestFile(f.Filename) || ign.ShouldIgnore(f.Location) || ign.IsVendored(f.Location) {
				continue
			}
			add(f.Location)
		}
	}

	sort.Strings(out)
	return out, nil
}
