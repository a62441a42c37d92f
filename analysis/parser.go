package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Parser handles parsing of source files to extract dependencies and tests.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Import regex patterns
var (
	// import ... from '...'
	// Use [\s\S]*? to match across newlines non-greedily
	importFromRegex = regexp.MustCompile(`import[\s\S]*?from\s+['"]([^'"]+)['"]`)
	// import '...'
	importSideEffectRegex = regexp.MustCompile(`import\s+['"]([^'"]+)['"]`)
	// require('...')
	requireRegex = regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	// test('name', ...) and test.only / test.skip variants
	testNameRegex = regexp.MustCompile(`(?m)^\s*(?:test|it)(?:\.only|\.skip)?\s*\(\s*(?:'([^']+)'|"([^"]+)"|\x60([^\x60]+)\x60)`)
)

// Module is the parsed form of one source file.
type Module struct {
	Path       string
	Imports    []string
	Unresolved []UnresolvedImport
	Tests      []string
}

// UnresolvedImport is a relative import that matched no file on disk.
type UnresolvedImport struct {
	Path       string // Absolute path prefix without extension
	SourcePath string // The file doing the import
}

// SyntaxError reports a source file whose brackets do not balance.
type SyntaxError struct {
	Path string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Parse reads filePath, validates its bracket structure and extracts imports
// and test names.
func (p *Parser) Parse(filePath string) (*Module, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	text := string(content)

	if err := checkBalanced(filePath, text); err != nil {
		return nil, err
	}

	var rawImports []string
	for _, re := range []*regexp.Regexp{importFromRegex, importSideEffectRegex, requireRegex} {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if len(match) > 1 {
				rawImports = append(rawImports, match[1])
			}
		}
	}

	mod := p.resolvePaths(filePath, rawImports)
	for _, match := range testNameRegex.FindAllStringSubmatch(text, -1) {
		for _, name := range match[1:] {
			if name != "" {
				mod.Tests = append(mod.Tests, name)
				break
			}
		}
	}
	return mod, nil
}

// resolvePaths converts relative imports to absolute paths.
func (p *Parser) resolvePaths(sourcePath string, imports []string) *Module {
	mod := &Module{
		Path:       sourcePath,
		Imports:    []string{},
		Unresolved: []UnresolvedImport{},
	}
	dir := filepath.Dir(sourcePath)
	seen := make(map[string]struct{})

	for _, imp := range imports {
		// Package imports live across the vendored boundary
		if !strings.HasPrefix(imp, ".") {
			continue
		}

		absPath := filepath.Join(dir, imp)

		if foundPath, ok := p.findFile(absPath); ok {
			if _, dup := seen[foundPath]; dup {
				continue
			}
			seen[foundPath] = struct{}{}
			mod.Imports = append(mod.Imports, foundPath)
		} else {
			mod.Unresolved = append(mod.Unresolved, UnresolvedImport{
				Path:       absPath,
				SourcePath: sourcePath,
			})
		}
	}

	return mod
}

// findFile attempts to find a file by adding common extensions.
func (p *Parser) findFile(pathWithoutExt string) (string, bool) {
	extensions := []string{"", ".ts", ".js", ".tsx", ".jsx", ".mjs", ".cjs", "/index.ts", "/index.js", "/index.tsx", "/index.jsx"}

	for _, ext := range extensions {
		fullPath := pathWithoutExt + ext
		if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
			// Found a match, now get the actual on-disk name to handle case sensitivity
			dir := filepath.Dir(fullPath)
			base := filepath.Base(fullPath)

			entries, err := os.ReadDir(dir)
			if err != nil {
				return fullPath, true
			}

			for _, entry := range entries {
				if strings.EqualFold(entry.Name(), base) {
					return filepath.Join(dir, entry.Name()), true
				}
			}

			return fullPath, true
		}
	}

	return "", false
}

// checkBalanced verifies (), [] and {} nesting outside string literals and
// comments. Template literal interpolation is treated as plain text.
func checkBalanced(path, text string) error {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	type open struct {
		ch   rune
		line int
	}
	var stack []open
	line := 1
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\n':
			line++
		case c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			line++
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				if runes[i] == '\n' {
					line++
				}
				i++
			}
			i++
		case c == '\'' || c == '"' || c == '`':
			quote := c
			i++
			for i < len(runes) && runes[i] != quote {
				if runes[i] == '\\' {
					i++
				} else if runes[i] == '\n' {
					if quote != '`' {
						return &SyntaxError{Path: path, Line: line, Msg: "unterminated string literal"}
					}
					line++
				}
				i++
			}
			if i >= len(runes) {
				return &SyntaxError{Path: path, Line: line, Msg: "unterminated string literal"}
			}
		case c == '(' || c == '[' || c == '{':
			stack = append(stack, open{ch: c, line: line})
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 || stack[len(stack)-1].ch != pairs[c] {
				return &SyntaxError{Path: path, Line: line, Msg: fmt.Sprintf("unexpected %q", c)}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		last := stack[len(stack)-1]
		return &SyntaxError{Path: path, Line: last.line, Msg: fmt.Sprintf("unclosed %q", last.ch)}
	}
	return nil
}
