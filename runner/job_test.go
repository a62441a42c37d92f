package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jesspatton/livetest/engine"
)

func writeTestFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPrepareJob(t *testing.T) {
	t.Run("Default Config", func(t *testing.T) {
		tmpDir := t.TempDir()
		if err := os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
		testFile := filepath.Join(tmpDir, "src", "foo.test.js")
		writeTestFile(t, testFile)

		job, err := PrepareJob(DefaultConfig(tmpDir), engine.Test{Name: "foo", File: testFile}, "chrome")
		if err != nil {
			t.Fatalf("PrepareJob failed: %v", err)
		}

		if job.Root != tmpDir {
			t.Errorf("Expected root %s, got %s", tmpDir, job.Root)
		}
		if job.Command != "npx" {
			t.Errorf("Expected command npx, got %s", job.Command)
		}
		// playwright, test, src/foo.test.js, --project=chrome
		want := []string{"playwright", "test", filepath.Join("src", "foo.test.js"), "--project=chrome"}
		if len(job.Args) != len(want) {
			t.Fatalf("Expected args %v, got %v", want, job.Args)
		}
		for i := range want {
			if job.Args[i] != want[i] {
				t.Errorf("arg %d: expected %q, got %q", i, want[i], job.Args[i])
			}
		}
	})

	t.Run("Override", func(t *testing.T) {
		tmpDir := t.TempDir()
		testFile := filepath.Join(tmpDir, "e2e", "checkout", "pay.test.js")
		writeTestFile(t, testFile)

		cfg := DefaultConfig(tmpDir)
		cfg.Overrides = []Override{{Pattern: "e2e/**", Command: "npx testcafe <browser> <path>"}}

		job, err := PrepareJob(cfg, engine.Test{Name: "pays", File: testFile}, "firefox")
		if err != nil {
			t.Fatalf("PrepareJob failed: %v", err)
		}
		if job.Command != "npx" || len(job.Args) != 3 || job.Args[0] != "testcafe" || job.Args[1] != "firefox" {
			t.Errorf("override not applied: %s %v", job.Command, job.Args)
		}
		// No package.json: the config directory is the root
		if job.Root != tmpDir {
			t.Errorf("Expected root %s, got %s", tmpDir, job.Root)
		}
	})

	t.Run("Environment", func(t *testing.T) {
		tmpDir := t.TempDir()
		testFile := filepath.Join(tmpDir, "a.test.js")
		writeTestFile(t, testFile)

		job, err := PrepareJob(DefaultConfig(tmpDir), engine.Test{Name: "works", File: testFile}, "safari")
		if err != nil {
			t.Fatalf("PrepareJob failed: %v", err)
		}
		env := map[string]bool{}
		for _, e := range job.Env {
			env[e] = true
		}
		if !env["LIVETEST_BROWSER=safari"] || !env["LIVETEST_TEST=works"] {
			t.Errorf("unexpected env %v", job.Env)
		}
	})

	t.Run("Empty Command", func(t *testing.T) {
		tmpDir := t.TempDir()
		testFile := filepath.Join(tmpDir, "a.test.js")
		writeTestFile(t, testFile)

		cfg := DefaultConfig(tmpDir)
		cfg.Overrides = []Override{{Pattern: "*.test.js", Command: " "}}
		if _, err := PrepareJob(cfg, engine.Test{File: testFile}, "chrome"); err == nil {
			t.Error("expected an error for an empty command")
		}
	})
}

func TestPrepareRoleJob(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "a.test.js")
	writeTestFile(t, testFile)
	test := engine.Test{Name: "a", File: testFile}

	cfg := DefaultConfig(tmpDir)
	job, err := PrepareRoleJob(cfg, test, "chrome")
	if err != nil || job != nil {
		t.Fatalf("expected no role job, got %v, %v", job, err)
	}

	cfg.Role = "node login.js <browser>"
	job, err = PrepareRoleJob(cfg, test, "chrome")
	if err != nil {
		t.Fatalf("PrepareRoleJob failed: %v", err)
	}
	if job.Command != "node" || len(job.Args) != 2 || job.Args[1] != "chrome" {
		t.Errorf("unexpected role job %s %v", job.Command, job.Args)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"e2e/**", "e2e/a/b.test.js", true},
		{"e2e/**", "unit/a.test.js", false},
		{"*.test.js", "a.test.js", true},
		{"*.test.js", "dir/a.test.js", false},
		{"[", "a", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
