// Package publish builds distributable artifacts and manages their lifecycle
// on a remote artifact registry.
package publish

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/projops/projops/internal/config"
)

// Artifact is a built, ready-to-publish package.
type Artifact struct {
	Path    string // path to the tar.gz on disk
	Name    string // file name, <package>-<version>.tar.gz
	Version string
	SHA256  string // hex digest of the archive bytes
}

// BuildArchive produces dist/<package>-<version>.tar.gz from the current
// source tree. The build is deterministic: identical tree, version and
// revision yield byte-identical archives. Entries are sorted, timestamps
// zeroed and ownership cleared so nothing environmental leaks in.
func BuildArchive(cfg *config.Config, revision string) (*Artifact, error) {
	pkg := cfg.Project.PackageName
	version := cfg.Project.Version
	if version == "" {
		return nil, fmt.Errorf("project.version is required to build a package")
	}

	files, err := collectSources(cfg)
	if err != nil {
		return nil, err
	}

	distDir := filepath.Join(cfg.Root, "dist")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dist dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.tar.gz", pkg, version)
	outPath := filepath.Join(distDir, name)

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	digest := sha256.New()
	zw, err := gzip.NewWriterLevel(io.MultiWriter(f, digest), gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(zw)

	arcRoot := fmt.Sprintf("%s-%s", pkg, version)
	meta := metadata(pkg, version, revision)
	if err := writeEntry(tw, arcRoot+"/METADATA", 0o644, meta); err != nil {
		return nil, err
	}
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(cfg.Root, rel))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		mode := int64(0o644)
		if info, err := os.Stat(filepath.Join(cfg.Root, rel)); err == nil && info.Mode()&0o100 != 0 {
			mode = 0o755
		}
		if err := writeEntry(tw, arcRoot+"/"+filepath.ToSlash(rel), mode, data); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	art := &Artifact{
		Path:    outPath,
		Name:    name,
		Version: version,
		SHA256:  hex.EncodeToString(digest.Sum(nil)),
	}
	slog.Info("package built", "artifact", art.Name, "sha256", art.SHA256[:12], "files", len(files))
	return art, nil
}

// collectSources gathers the files that belong in the distribution: the
// project manifest, the lock file and README when present, and the module
// tree named after the package. Returned paths are root-relative and sorted.
func collectSources(cfg *config.Config) ([]string, error) {
	root := cfg.Root
	if _, err := os.Stat(filepath.Join(root, "pyproject.toml")); err != nil {
		return nil, fmt.Errorf("no pyproject.toml under %s: %w", root, err)
	}

	files := []string{"pyproject.toml"}
	for _, opt := range []string{"poetry.lock", "README.md", "README.rst", "LICENSE"} {
		if _, err := os.Stat(filepath.Join(root, opt)); err == nil {
			files = append(files, opt)
		}
	}

	moduleDir := strings.ReplaceAll(cfg.Project.PackageName, "-", "_")
	src := filepath.Join(root, moduleDir)
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "__pycache__") || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".pyc") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking module %s: %w", moduleDir, err)
	}

	sort.Strings(files)
	return files, nil
}

func writeEntry(tw *tar.Writer, name string, mode int64, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    mode,
		Size:    int64(len(data)),
		ModTime: time.Unix(0, 0),
		Format:  tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func metadata(pkg, version, revision string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", pkg)
	fmt.Fprintf(&b, "Version: %s\n", version)
	if revision != "" {
		fmt.Fprintf(&b, "Revision: %s\n", revision)
	}
	return []byte(b.String())
}
