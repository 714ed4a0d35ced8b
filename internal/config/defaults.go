package config

// DefaultConfig returns the built-in defaults. Project and global files
// override these field by field.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			PythonVersion:  "3.11",
			VenvDir:        ".venv",
			PackageManager: "poetry",
		},
		Tests: TestsConfig{
			UnitDir:    "tests",
			IntDir:     "tests_int",
			LoadDir:    "tests_load",
			CovHTMLDir: "htmlcov",
		},
		Docs: DocsConfig{
			SourceDir: "docs",
			OutputDir: "docs_build",
			Title:     "Documentation",
			Port:      1718,
			S3Prefix:  "projects/",
		},
	}
}
