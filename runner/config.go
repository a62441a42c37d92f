package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jesspatton/livetest/engine"
)

// ConfigFiles are the project file names looked up, in order.
var ConfigFiles = []string{".livetest.yaml", ".livetest.yml", ".livetest.json"}

const (
	DefaultCommand     = "npx playwright test <path> --project=<browser>"
	DefaultHostname    = "localhost"
	DefaultConcurrency = 1
	DefaultLockWindow  = 200 * time.Millisecond
)

// Override replaces the command for test files matching Pattern.
type Override struct {
	Pattern string `yaml:"pattern"`
	Command string `yaml:"command"`
}

// FilterConfig selects tests by name or file.
type FilterConfig struct {
	Test     string `yaml:"test"`
	TestGrep string `yaml:"test_grep"`
	File     string `yaml:"file"`
}

// Config is the project configuration.
type Config struct {
	// Command runs one test on one browser. <path>, <name> and <browser> are
	// substituted per argument, so values with spaces stay one argument.
	Command     string        `yaml:"command"`
	Role        string        `yaml:"role"`
	Overrides   []Override    `yaml:"overrides"`
	Src         []string      `yaml:"src"`
	Browsers    []string      `yaml:"browsers"`
	Concurrency int           `yaml:"concurrency"`
	Filter      FilterConfig  `yaml:"filter"`
	Hostname    string        `yaml:"hostname"`
	Ports       []int         `yaml:"ports"`
	Reporters   []string      `yaml:"reporters"`
	LockWindow  time.Duration `yaml:"lock_window"`
	Vendor      []string      `yaml:"vendor"`

	// Dir is the directory the configuration was loaded from.
	Dir string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no project file exists.
func DefaultConfig(dir string) Config {
	return Config{
		Command:     DefaultCommand,
		Hostname:    DefaultHostname,
		Concurrency: DefaultConcurrency,
		LockWindow:  DefaultLockWindow,
		Reporters:   []string{"spec"},
		Dir:         dir,
	}
}

// GetExecutionRoot finds the nearest package.json starting from the test file path and walking up.
func GetExecutionRoot(testFilePath string) (string, error) {
	dir := filepath.Dir(testFilePath)
	for {
		if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// FindConfig walks up from dir and returns the first project file found.
func FindConfig(dir string) (string, bool) {
	for {
		for _, name := range ConfigFiles {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadConfig looks for a project file in dir or its parents and merges it
// over the defaults. Without a project file the defaults rooted at dir are
// returned. JSON files are read by the YAML decoder.
func LoadConfig(dir string) (Config, error) {
	path, ok := FindConfig(dir)
	if !ok {
		return DefaultConfig(dir), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	config := DefaultConfig(filepath.Dir(path))
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	config.Dir = filepath.Dir(path)
	config.applyDefaults()

	return config, config.Validate()
}

func (c *Config) applyDefaults() {
	if c.Command == "" {
		c.Command = DefaultCommand
	}
	if c.Hostname == "" {
		c.Hostname = DefaultHostname
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LockWindow <= 0 {
		c.LockWindow = DefaultLockWindow
	}
	if len(c.Reporters) == 0 {
		c.Reporters = []string{"spec"}
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if len(c.Ports) != 0 && len(c.Ports) != 2 {
		return fmt.Errorf("ports: expected two ports, got %d", len(c.Ports))
	}
	if c.Filter.TestGrep != "" {
		if _, err := regexp.Compile(c.Filter.TestGrep); err != nil {
			return fmt.Errorf("filter.test_grep: %w", err)
		}
	}
	for _, r := range c.Reporters {
		name, _ := ParseReporterSpec(r)
		if _, ok := reporterFactories[name]; !ok {
			return fmt.Errorf("unknown reporter %q", name)
		}
	}
	return nil
}

// ResolveSources returns Src made absolute against the config directory.
func (c Config) ResolveSources() []string {
	out := make([]string, 0, len(c.Src))
	for _, s := range c.Src {
		if !filepath.IsAbs(s) {
			s = filepath.Join(c.Dir, s)
		}
		out = append(out, s)
	}
	return out
}

// EngineOptions derives engine creation options.
func (c Config) EngineOptions() engine.Options {
	opts := engine.Options{Hostname: c.Hostname}
	if len(c.Ports) == 2 {
		opts.Port1, opts.Port2 = c.Ports[0], c.Ports[1]
	}
	return opts
}

// BuildFilter converts the filter section into an engine filter. It returns
// nil when nothing is filtered.
func (c Config) BuildFilter() engine.Filter {
	f := c.Filter
	if f.Test == "" && f.TestGrep == "" && f.File == "" {
		return nil
	}
	var grep *regexp.Regexp
	if f.TestGrep != "" {
		grep = regexp.MustCompile(f.TestGrep)
	}
	return func(t engine.Test) bool {
		if f.Test != "" && t.Name != f.Test {
			return false
		}
		if grep != nil && !grep.MatchString(t.Name) {
			return false
		}
		if f.File != "" && !matchPattern(f.File, filepath.ToSlash(t.File)) && !strings.HasSuffix(filepath.ToSlash(t.File), f.File) {
			return false
		}
		return true
	}
}

// BuildCommandString constructs the final command to execute.
func BuildCommandString(template string, vars map[string]string) (string, []string) {
	parts := strings.Fields(template)
	if len(parts) == 0 {
		return "", nil
	}
	for i, p := range parts {
		for k, v := range vars {
			p = strings.ReplaceAll(p, "<"+k+">", v)
		}
		parts[i] = p
	}
	return parts[0], parts[1:]
}
