package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/projops/projops/internal/config"
	"github.com/projops/projops/internal/vcs"
)

// Publisher builds the project artifact and pushes it to the registry.
type Publisher struct {
	cfg    *config.Config
	reg    Registry
	DryRun bool
}

// NewPublisher creates a Publisher over the given registry.
func NewPublisher(cfg *config.Config, reg Registry) *Publisher {
	return &Publisher{cfg: cfg, reg: reg}
}

// BuildPackage builds the distributable archive, stamped with the current
// VCS revision when the project lives in a git repository.
func (p *Publisher) BuildPackage() (*Artifact, error) {
	if p.DryRun {
		version := p.cfg.Project.Version
		if version == "" {
			return nil, fmt.Errorf("project.version is required to build a package")
		}
		name := fmt.Sprintf("%s-%s.tar.gz", p.cfg.Project.PackageName, version)
		slog.Info("dry-run: would build package archive", "artifact", name)
		return &Artifact{Name: name, Version: version}, nil
	}
	return BuildArchive(p.cfg, vcs.Revision(p.cfg.Root))
}

// Publish uploads the artifact as a new package version. An already
// published version is ErrConflict; publishing is never an overwrite.
func (p *Publisher) Publish(ctx context.Context, art *Artifact) error {
	if p.DryRun {
		slog.Info("dry-run: would publish", "artifact", art.Name, "version", art.Version)
		return nil
	}
	exists, err := p.reg.Exists(ctx, art.Version)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %s", ErrConflict, p.cfg.Project.PackageName, art.Version)
	}

	f, err := os.Open(art.Path)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()
	if err := p.reg.Publish(ctx, art.Version, art.Name, art.SHA256, f); err != nil {
		return err
	}
	slog.Info("package published", "package", p.cfg.Project.PackageName, "version", art.Version)
	return nil
}

// RemoveVersion deletes one published version from the registry.
func (p *Publisher) RemoveVersion(ctx context.Context, version string) error {
	if version == "" {
		return fmt.Errorf("version is required")
	}
	if p.DryRun {
		slog.Info("dry-run: would remove version", "package", p.cfg.Project.PackageName, "version", version)
		return nil
	}
	if err := p.reg.Remove(ctx, version); err != nil {
		return err
	}
	slog.Info("package version removed", "package", p.cfg.Project.PackageName, "version", version)
	return nil
}
