package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	if err := s.WriteFile("app.py", "print('hi')\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.ReadFile("app.py")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "print('hi')\n" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestWriteCreatesParentDirectories(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	if err := s.WriteFile("pkg/sub/mod.py", "x = 1\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "pkg", "sub", "mod.py")); err != nil {
		t.Fatalf("expected nested file: %v", err)
	}
}

func TestPathEscapeFailsBeforeIO(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	tests := []string{"../escape.txt", "a/../../escape.txt", "..", ""}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			err := s.WriteFile(path, "x")
			var esc *PathEscapeError
			if !errors.As(err, &esc) {
				t.Fatalf("expected PathEscapeError for %q, got %v", path, err)
			}
		})
	}

	// Nothing may be written outside the root.
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("escape file must not exist")
	}
}

func TestListFilesSortedRecursive(t *testing.T) {
	s := New(t.TempDir())
	s.WriteFile("b.txt", "b")
	s.WriteFile("a/one.txt", "1")
	s.WriteFile("a/two.txt", "2")

	files, err := s.ListFiles()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a/one.txt", "a/two.txt", "b.txt"}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, files)
		}
	}
}

func TestSearchSkipsNonUTF8(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	s.WriteFile("code.py", "import os\nprint('needle')\n")
	os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0xff, 0xfe, 0x6e, 0x65, 0x65, 0x64, 0x6c, 0x65}, 0o644)

	matches, err := s.Search("needle")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Path != "code.py" || matches[0].Line != 2 {
		t.Fatalf("unexpected match: %+v", matches[0])
	}
}

func TestDiffLabelsAndMarkers(t *testing.T) {
	d := Diff("a/app.py", "b/app.py", "print('old')\n", "print('new')\n")
	if !strings.Contains(d, "--- a/app.py") || !strings.Contains(d, "+++ b/app.py") {
		t.Fatalf("missing labels: %q", d)
	}
	if !strings.Contains(d, "-print('old')") || !strings.Contains(d, "+print('new')") {
		t.Fatalf("missing change lines: %q", d)
	}
}

func TestDiffIdenticalContentIsEmpty(t *testing.T) {
	if d := Diff("a/x", "b/x", "same\n", "same\n"); d != "" {
		t.Fatalf("expected empty diff, got %q", d)
	}
}

func TestDiffOneLineChangeKeepsContext(t *testing.T) {
	left := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10\n"
	right := "l1\nl2\nl3\nl4\nchanged\nl6\nl7\nl8\nl9\nl10\n"

	d := Diff("a/f", "b/f", left, right)
	if !strings.Contains(d, "@@ -2,7 +2,7 @@\n") {
		t.Fatalf("unexpected hunk header: %q", d)
	}
	if !strings.Contains(d, " l2\n") || !strings.Contains(d, "-l5\n") || !strings.Contains(d, "+changed\n") {
		t.Fatalf("missing hunk lines: %q", d)
	}
	// Lines outside the context window stay out of the diff.
	if strings.Contains(d, "l1\n") || strings.Contains(d, "l9\n") {
		t.Fatalf("unrelated lines leaked into hunk: %q", d)
	}
}

func TestDiffDistantChangesSplitHunks(t *testing.T) {
	lines := strings.Split("l1 l2 l3 l4 l5 l6 l7 l8 l9 l10 l11 l12 l13 l14 l15 l16 l17 l18 l19 l20", " ")
	left := strings.Join(lines, "\n") + "\n"
	lines[1] = "x2"
	lines[17] = "x18"
	right := strings.Join(lines, "\n") + "\n"

	d := Diff("a/f", "b/f", left, right)
	if got := strings.Count(d, "@@ -"); got != 2 {
		t.Fatalf("expected 2 hunks, got %d:\n%s", got, d)
	}
	if strings.Contains(d, "l9\n") {
		t.Fatalf("mid-gap line leaked into a hunk: %q", d)
	}
	if !strings.Contains(d, "-l2\n") || !strings.Contains(d, "+x18\n") {
		t.Fatalf("missing change lines: %q", d)
	}
}

func TestDiffInsertionIntoEmptyFile(t *testing.T) {
	d := Diff("a/x", "b/x", "", "a\nb\n")
	if !strings.Contains(d, "@@ -0,0 +1,2 @@\n") {
		t.Fatalf("unexpected hunk header: %q", d)
	}
	if !strings.Contains(d, "+a\n") || !strings.Contains(d, "+b\n") {
		t.Fatalf("missing inserted lines: %q", d)
	}
}
