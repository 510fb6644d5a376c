package registry

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Download packages the project's filesystem subtree into a ZIP archive.
// basePath, when empty, derives from the project name under the system
// temp directory; the returned path always ends in .zip.
func (r *Registry) Download(ctx context.Context, projectID, basePath string) (string, error) {
	p, err := r.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), p.Name+"-"+shortID(p.ID))
	}
	dest := basePath
	if !strings.HasSuffix(dest, ".zip") {
		dest += ".zip"
	}

	if err := zipTree(p.Path, dest); err != nil {
		return "", fmt.Errorf("archive project %s: %w", p.ID, err)
	}
	r.logger.Info("project archived", "project_id", p.ID, "archive", dest)
	return dest, nil
}

func zipTree(root, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
