package deploy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atthub/atthub/internal/runtime"
)

func TestBuildDetectsManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"go module", "go.mod"},
		{"node package", "package.json"},
		{"python project", "pyproject.toml"},
		{"makefile", "Makefile"},
		{"dockerfile", "Dockerfile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.WriteFile(filepath.Join(root, tt.manifest), []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
			f := New(runtime.NewSupervisor(10, nil), nil)
			st := f.Build(root)
			if !st.Built || st.Running {
				t.Fatalf("unexpected status: %+v", st)
			}
			if !strings.Contains(st.Message, tt.manifest) {
				t.Fatalf("expected message to name %s, got %q", tt.manifest, st.Message)
			}
		})
	}
}

func TestBuildMissingManifest(t *testing.T) {
	f := New(runtime.NewSupervisor(10, nil), nil)
	st := f.Build(t.TempDir())
	if st.Built {
		t.Fatalf("expected built=false, got %+v", st)
	}
}

func TestRunDelegatesToSupervisor(t *testing.T) {
	sup := runtime.NewSupervisor(10, nil)
	f := New(sup, nil)

	st, err := f.Run(t.TempDir(), runtime.RunConfig{Command: "sleep 5"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer sup.Stop()
	if !st.Running {
		t.Fatalf("expected running, got %+v", st)
	}
	if cur := f.Current(); !cur.Running {
		t.Fatalf("expected current running, got %+v", cur)
	}
}

func TestCurrentMirrorsStoppedSupervisor(t *testing.T) {
	sup := runtime.NewSupervisor(10, nil)
	f := New(sup, nil)

	if _, err := f.Run(t.TempDir(), runtime.RunConfig{Command: "true"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && f.Current().Running {
		time.Sleep(10 * time.Millisecond)
	}
	if cur := f.Current(); cur.Running {
		t.Fatalf("expected stopped, got %+v", cur)
	}
}
