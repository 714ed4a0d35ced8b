package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestDiscover_WalksUp verifies projops.json is found from a nested directory.
func TestDiscover_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFileName), `{"project":{"package_name":"demo"}}`)
	nested := filepath.Join(root, "src", "demo", "sub")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	path, err := Discover(nested)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if path != filepath.Join(root, ProjectFileName) {
		t.Errorf("Discover = %s, want %s", path, filepath.Join(root, ProjectFileName))
	}
}

// TestDiscover_NotFound verifies the sentinel error when nothing is found.
func TestDiscover_NotFound(t *testing.T) {
	_, err := Discover(t.TempDir())
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Expected ErrProjectNotFound, got: %v", err)
	}
}

// TestLoad_Precedence verifies project file overrides global overrides defaults.
func TestLoad_Precedence(t *testing.T) {
	root := t.TempDir()
	globalPath := filepath.Join(root, "global", "config.json")
	writeFile(t, globalPath, `{"project":{"package_manager":"uv","python_version":"3.10"},"docs":{"title":"Global Docs"}}`)
	writeFile(t, filepath.Join(root, ProjectFileName),
		`{"project":{"package_name":"demo","python_version":"3.12"},"tests":{"min_coverage":85}}`)

	cfg, err := Load(root, globalPath)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Project.PackageName != "demo" {
		t.Errorf("PackageName = %q, want demo", cfg.Project.PackageName)
	}
	if cfg.Project.PythonVersion != "3.12" {
		t.Errorf("PythonVersion = %q, want 3.12 (project overrides global)", cfg.Project.PythonVersion)
	}
	if cfg.Project.PackageManager != "uv" {
		t.Errorf("PackageManager = %q, want uv (global overrides default)", cfg.Project.PackageManager)
	}
	if cfg.Project.VenvDir != ".venv" {
		t.Errorf("VenvDir = %q, want default .venv", cfg.Project.VenvDir)
	}
	if cfg.Docs.Title != "Global Docs" {
		t.Errorf("Docs.Title = %q, want Global Docs", cfg.Docs.Title)
	}
	if cfg.Tests.MinCoverage != 85 {
		t.Errorf("MinCoverage = %v, want 85", cfg.Tests.MinCoverage)
	}
	if cfg.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Root, root)
	}
	if cfg.VenvPath() != filepath.Join(root, ".venv") {
		t.Errorf("VenvPath = %q", cfg.VenvPath())
	}
}

// TestLoad_MissingGlobalIsFine verifies a nonexistent global file is skipped.
func TestLoad_MissingGlobalIsFine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFileName), `{"project":{"package_name":"demo"}}`)

	cfg, err := Load(root, filepath.Join(root, "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Project.PackageName != "demo" {
		t.Errorf("PackageName = %q, want demo", cfg.Project.PackageName)
	}
}

// TestLoad_RequiresPackageName verifies validation of the project file.
func TestLoad_RequiresPackageName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFileName), `{"project":{}}`)

	if _, err := Load(root, ""); err == nil {
		t.Error("Expected error for missing package_name")
	}
}

// TestLoad_MalformedJSON verifies malformed project files are errors.
func TestLoad_MalformedJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFileName), `{not json`)

	if _, err := Load(root, ""); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

// TestLoad_DotEnv verifies .env next to the project file is loaded.
func TestLoad_DotEnv(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFileName), `{"project":{"package_name":"demo"}}`)
	writeFile(t, filepath.Join(root, ".env"), "PROJOPS_TEST_SENTINEL=loaded\n")
	t.Setenv("PROJOPS_TEST_SENTINEL", "")
	os.Unsetenv("PROJOPS_TEST_SENTINEL")

	if _, err := Load(root, ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := os.Getenv("PROJOPS_TEST_SENTINEL"); got != "loaded" {
		t.Errorf("PROJOPS_TEST_SENTINEL = %q, want loaded", got)
	}
}
