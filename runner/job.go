package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jesspatton/livetest/engine"
)

// TestJob represents one command execution for a run.
type TestJob struct {
	Command string
	Args    []string
	Root    string
	Env     []string
}

// PrepareJob builds the command executing test on browser. The command runs
// from the nearest package.json above the test file, falling back to the
// configuration directory.
func PrepareJob(cfg Config, test engine.Test, browser string) (*TestJob, error) {
	return prepare(cfg, test, browser, commandFor(cfg, test.File))
}

// PrepareRoleJob builds the role command for test on browser. It returns nil
// when no role is configured.
func PrepareRoleJob(cfg Config, test engine.Test, browser string) (*TestJob, error) {
	if cfg.Role == "" {
		return nil, nil
	}
	return prepare(cfg, test, browser, cfg.Role)
}

func prepare(cfg Config, test engine.Test, browser, template string) (*TestJob, error) {
	execRoot, err := GetExecutionRoot(test.File)
	if err != nil {
		execRoot = cfg.Dir
	}
	if execRoot == "" {
		execRoot = filepath.Dir(test.File)
	}

	relToRoot, err := filepath.Rel(execRoot, test.File)
	if err != nil {
		relToRoot = test.File
	}

	cmd, args := BuildCommandString(template, map[string]string{
		"path":    relToRoot,
		"name":    test.Name,
		"browser": browser,
	})
	if cmd == "" {
		return nil, fmt.Errorf("empty command for %s", test.File)
	}

	return &TestJob{
		Command: cmd,
		Args:    args,
		Root:    execRoot,
		Env: []string{
			"LIVETEST_BROWSER=" + browser,
			"LIVETEST_TEST=" + test.Name,
		},
	}, nil
}

// commandFor returns the command template for file, honoring the first
// matching override. Patterns match the path relative to the config directory.
func commandFor(cfg Config, file string) string {
	rel := file
	if cfg.Dir != "" {
		if r, err := filepath.Rel(cfg.Dir, file); err == nil {
			rel = r
		}
	}
	// Normalize path separators for matching
	matchPath := filepath.ToSlash(rel)

	for _, override := range cfg.Overrides {
		if matchPattern(override.Pattern, matchPath) {
			return override.Command
		}
	}
	if cfg.Command == "" {
		return DefaultCommand
	}
	return cfg.Command
}

func matchPattern(pattern, path string) bool {
	// Simple support for recursive directory matching
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "**")
		return strings.HasPrefix(path, prefix)
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	return matched
}
