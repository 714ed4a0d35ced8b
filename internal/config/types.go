package config

import "path/filepath"

// ProjectFileName is the per-project configuration file, discovered by
// walking up from the working directory.
const ProjectFileName = "projops.json"

// ProjectConfig identifies the package being automated.
type ProjectConfig struct {
	PackageName    string `json:"package_name"`              // importable package name; a directory of the same name must exist
	Version        string `json:"version,omitempty"`         // package version used for doc/artifact paths
	PythonVersion  string `json:"python_version,omitempty"`  // e.g. "3.11"
	VenvDir        string `json:"venv_dir,omitempty"`        // relative to project root
	PackageManager string `json:"package_manager,omitempty"` // binary resolving and installing dependencies
}

// TestsConfig locates the test suites and the coverage gate.
type TestsConfig struct {
	UnitDir     string  `json:"unit_dir,omitempty"`
	IntDir      string  `json:"int_dir,omitempty"`
	LoadDir     string  `json:"load_dir,omitempty"`
	CovHTMLDir  string  `json:"cov_html_dir,omitempty"`
	MinCoverage float64 `json:"min_coverage,omitempty"` // 0 disables the gate
}

// DocsConfig configures the documentation pipeline.
type DocsConfig struct {
	SourceDir string `json:"source_dir,omitempty"` // markdown tree
	OutputDir string `json:"output_dir,omitempty"` // rendered site
	Title     string `json:"title,omitempty"`
	Port      int    `json:"port,omitempty"`      // local preview port
	S3Bucket  string `json:"s3_bucket,omitempty"` // doc host; empty disables deploys
	S3Prefix  string `json:"s3_prefix,omitempty"`
	AWSRegion string `json:"aws_region,omitempty"`
}

// RegistryConfig configures the artifact registry used by publish/remove.
type RegistryConfig struct {
	Domain     string `json:"domain,omitempty"`
	Repository string `json:"repository,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
	AWSRegion  string `json:"aws_region,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Project  ProjectConfig  `json:"project"`
	Tests    TestsConfig    `json:"tests"`
	Docs     DocsConfig     `json:"docs"`
	Registry RegistryConfig `json:"registry"`

	// HistoryPath overrides the run-history database location.
	HistoryPath string `json:"history_path,omitempty"`

	// Root is the discovered project root (directory holding projops.json).
	// Not serialized; set by the loader.
	Root string `json:"-"`
}

// VenvPath returns the absolute path of the managed environment.
func (c *Config) VenvPath() string {
	return filepath.Join(c.Root, c.Project.VenvDir)
}

// DocsSourcePath returns the absolute documentation source directory.
func (c *Config) DocsSourcePath() string {
	return filepath.Join(c.Root, c.Docs.SourceDir)
}

// DocsOutputPath returns the absolute rendered-site directory.
func (c *Config) DocsOutputPath() string {
	return filepath.Join(c.Root, c.Docs.OutputDir)
}
