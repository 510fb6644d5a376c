// Package sandbox confines file operations to a single project root. Every
// path argument is resolved relative to the root; a resolved path that
// escapes it fails before any I/O is attempted.
package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// PathEscapeError reports a path argument that resolved outside the project
// root.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %q escapes the project root", e.Path)
}

func (e *PathEscapeError) ErrorCode() string { return "path_escape" }

// Sandbox performs path-confined file operations under a project root.
type Sandbox struct {
	root string
}

// New creates a sandbox rooted at the given absolute directory.
func New(root string) *Sandbox {
	return &Sandbox{root: filepath.Clean(root)}
}

// Root returns the confinement root.
func (s *Sandbox) Root() string { return s.root }

// resolve maps a caller-supplied relative path onto the root, rejecting any
// result outside it.
func (s *Sandbox) resolve(rel string) (string, error) {
	trimmed := strings.TrimSpace(rel)
	trimmed = strings.TrimPrefix(trimmed, "./")
	if trimmed == "" {
		return "", &PathEscapeError{Path: rel}
	}
	full := filepath.Clean(filepath.Join(s.root, trimmed))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", &PathEscapeError{Path: rel}
	}
	return full, nil
}

// ListFiles walks the project tree and returns relative file paths in
// deterministic sorted order.
func (s *Sandbox) ListFiles() ([]string, error) {
	out := make([]string, 0)
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile returns the content of a file inside the root.
func (s *Sandbox) ReadFile(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// WriteFile writes content to a file inside the root, creating parent
// directories as needed. Writes are not atomic; callers serialize through
// the workflow orchestrator when that matters.
func (s *Sandbox) WriteFile(path, content string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Match is a single search hit.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Search scans every UTF-8-decodable file for the substring. Files that do
// not decode as UTF-8 are skipped silently.
func (s *Sandbox) Search(query string) ([]Match, error) {
	files, err := s.ListFiles()
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0)
	for _, rel := range files {
		full, err := s.resolve(rel)
		if err != nil {
			continue
		}
		b, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		if !utf8.Valid(b) {
			continue
		}
		for i, line := range strings.Split(string(b), "\n") {
			if strings.Contains(line, query) {
				out = append(out, Match{Path: rel, Line: i + 1, Text: strings.TrimRight(line, "\r")})
			}
		}
	}
	return out, nil
}
