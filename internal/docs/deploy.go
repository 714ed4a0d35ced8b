package docs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/projops/projops/internal/config"
)

// ObjectStore is the subset of the doc host needed for site sync.
// Keys are bucket-relative.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys []string) error
}

// uploadConcurrency bounds parallel uploads within a single deploy step.
const uploadConcurrency = 8

// Deployer publishes a built site to a version-scoped or latest path on the
// doc host. A deploy is a full sync: the remote prefix ends up byte-for-byte
// identical to the local site, including deletion of stale remote objects.
type Deployer struct {
	cfg   *config.Config
	store ObjectStore
}

// NewDeployer creates a Deployer over the given object store.
func NewDeployer(cfg *config.Config, store ObjectStore) *Deployer {
	return &Deployer{cfg: cfg, store: store}
}

// DeployVersioned publishes the site under the version-scoped prefix.
func (d *Deployer) DeployVersioned(ctx context.Context, siteDir, version string) error {
	if version == "" {
		return fmt.Errorf("%w: version is required", ErrDeploy)
	}
	return d.sync(ctx, siteDir, d.remotePrefix(version))
}

// DeployLatest publishes/aliases the site as the current default. The
// served content is the same bytes DeployVersioned uploads for the version
// currently built.
func (d *Deployer) DeployLatest(ctx context.Context, siteDir string) error {
	return d.sync(ctx, siteDir, d.remotePrefix("latest"))
}

func (d *Deployer) remotePrefix(leaf string) string {
	return path.Join(d.cfg.Docs.S3Prefix, d.cfg.Project.PackageName, leaf) + "/"
}

// sync uploads every local file under prefix and removes remote keys with
// no local counterpart. Uploads run with bounded concurrency; the first
// failure cancels the rest.
func (d *Deployer) sync(ctx context.Context, siteDir, prefix string) error {
	local := map[string]string{} // remote key -> local path
	err := filepath.WalkDir(siteDir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		rel, err := filepath.Rel(siteDir, p)
		if err != nil {
			return err
		}
		local[prefix+filepath.ToSlash(rel)] = p
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: walking site: %v", ErrDeploy, err)
	}
	if len(local) == 0 {
		return fmt.Errorf("%w: site %s is empty, build first", ErrDeploy, siteDir)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for key, p := range local {
		key, p := key, p
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			if err := d.store.Put(gctx, key, contentType(p), data); err != nil {
				return fmt.Errorf("uploading %s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeploy, err)
	}

	remote, err := d.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("%w: listing %s: %v", ErrDeploy, prefix, err)
	}
	var stale []string
	for _, key := range remote {
		if _, ok := local[key]; !ok {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	if len(stale) > 0 {
		if err := d.store.Delete(ctx, stale); err != nil {
			return fmt.Errorf("%w: deleting stale objects: %v", ErrDeploy, err)
		}
	}
	slog.Info("site deployed", "prefix", prefix, "uploaded", len(local), "deleted", len(stale))
	return nil
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
