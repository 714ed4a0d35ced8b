package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projops/projops/internal/config"
)

func docsConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	cfg.Project.PackageName = "demo"
	cfg.Docs.Title = "Demo Docs"
	return cfg
}

func writeDoc(t *testing.T, cfg *config.Config, rel, content string) {
	t.Helper()
	path := filepath.Join(cfg.DocsSourcePath(), rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuild_RendersTree(t *testing.T) {
	cfg := docsConfig(t)
	writeDoc(t, cfg, "README.md", "# Demo\n\nWelcome to **demo**.\n")
	writeDoc(t, cfg, "guide/install.md", "# Installing\n\n```sh\npip install demo\n```\n")
	writeDoc(t, cfg, "guide/diagram.png", "not-really-a-png")

	site, err := NewBuilder(cfg).Build()
	require.NoError(t, err)
	require.Equal(t, 2, site.Pages)

	index, err := os.ReadFile(filepath.Join(site.Dir, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "<strong>demo</strong>")
	require.Contains(t, string(index), "<title>Demo - Demo Docs</title>")

	install, err := os.ReadFile(filepath.Join(site.Dir, "guide", "install.html"))
	require.NoError(t, err)
	require.Contains(t, string(install), "pip install demo")
	require.Contains(t, string(install), `href="../style.css"`)

	asset, err := os.ReadFile(filepath.Join(site.Dir, "guide", "diagram.png"))
	require.NoError(t, err)
	require.Equal(t, "not-really-a-png", string(asset))

	_, err = os.Stat(filepath.Join(site.Dir, "style.css"))
	require.NoError(t, err)
}

func TestBuild_RemovesStaleOutput(t *testing.T) {
	cfg := docsConfig(t)
	writeDoc(t, cfg, "index.md", "# Home\n")
	stale := filepath.Join(cfg.DocsOutputPath(), "old.html")
	require.NoError(t, os.MkdirAll(cfg.DocsOutputPath(), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := NewBuilder(cfg).Build()
	require.NoError(t, err)
	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err), "stale page must be removed")
}

func TestBuild_MissingSource(t *testing.T) {
	cfg := docsConfig(t)
	_, err := NewBuilder(cfg).Build()
	require.ErrorIs(t, err, ErrBuild)
}

func TestHTMLName(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"index.md", "index.html"},
		{"README.md", "index.html"},
		{filepath.Join("guide", "intro.md"), filepath.Join("guide", "intro.html")},
		{filepath.Join("guide", "README.md"), filepath.Join("guide", "index.html")},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, htmlName(tt.rel), tt.rel)
	}
}

func TestPageTitle(t *testing.T) {
	require.Equal(t, "Hello World", pageTitle([]byte("intro\n\n## Hello World\n"), "x.md"))
	require.Equal(t, "notes", pageTitle([]byte("no heading here"), "/docs/notes.md"))
}
