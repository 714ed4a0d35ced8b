package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ErrProjectNotFound is returned when no projops.json exists in the working
// directory or any of its parents.
var ErrProjectNotFound = errors.New("no projops.json found")

// Load reads configuration for the project containing startDir.
// Precedence (highest to lowest): project file, global file, defaults.
// Registry credentials come from the environment; a .env file next to the
// project file is loaded first if present.
func Load(startDir, globalPath string) (*Config, error) {
	projectPath, err := Discover(startDir)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(projectPath)

	// Credentials for deploy/publish live outside the config file.
	_ = godotenv.Load(filepath.Join(root, ".env"))

	cfg := DefaultConfig()
	if globalPath != "" {
		if err := mergeFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	cfg.Root = root

	if cfg.Project.PackageName == "" {
		return nil, fmt.Errorf("%s: project.package_name is required", projectPath)
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths:
// project projops.json discovered upward from cwd, global ~/.projops/config.json.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	globalPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalPath = filepath.Join(home, ".projops", "config.json")
	}
	return Load(cwd, globalPath)
}

// Discover walks up from dir looking for ProjectFileName and returns its path.
func Discover(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrProjectNotFound, dir)
		}
		dir = parent
	}
}

// mergeFile overlays the file's fields onto base. Missing files are not
// errors; malformed JSON is.
func mergeFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	// Decoding into the existing struct overlays only the fields present
	// in the file, which gives field-level precedence for free.
	if err := json.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
