package docs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStore) Put(_ context.Context, key, ct string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), body...)
	s.types[key] = ct
	return nil
}

func (s *fakeStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *fakeStore) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
		delete(s.types, k)
	}
	return nil
}

func builtSite(t *testing.T) (*fakeStore, *Deployer, string) {
	t.Helper()
	cfg := docsConfig(t)
	writeDoc(t, cfg, "README.md", "# Demo\n")
	writeDoc(t, cfg, "guide/intro.md", "# Intro\n")
	site, err := NewBuilder(cfg).Build()
	require.NoError(t, err)
	store := newFakeStore()
	return store, NewDeployer(cfg, store), site.Dir
}

func TestDeployVersioned(t *testing.T) {
	store, dep, siteDir := builtSite(t)
	require.NoError(t, dep.DeployVersioned(context.Background(), siteDir, "1.2.3"))

	require.Contains(t, store.objects, "projects/demo/1.2.3/index.html")
	require.Contains(t, store.objects, "projects/demo/1.2.3/guide/intro.html")
	require.Contains(t, store.objects, "projects/demo/1.2.3/style.css")
	require.Equal(t, "text/css; charset=utf-8", store.types["projects/demo/1.2.3/style.css"])

	local, err := os.ReadFile(filepath.Join(siteDir, "index.html"))
	require.NoError(t, err)
	require.Equal(t, local, store.objects["projects/demo/1.2.3/index.html"])
}

func TestDeployVersioned_RequiresVersion(t *testing.T) {
	_, dep, siteDir := builtSite(t)
	err := dep.DeployVersioned(context.Background(), siteDir, "")
	require.ErrorIs(t, err, ErrDeploy)
}

func TestDeployLatest_DeletesStale(t *testing.T) {
	store, dep, siteDir := builtSite(t)
	store.objects["projects/demo/latest/gone.html"] = []byte("old")
	store.objects["projects/other/latest/keep.html"] = []byte("other project")

	require.NoError(t, dep.DeployLatest(context.Background(), siteDir))

	require.NotContains(t, store.objects, "projects/demo/latest/gone.html")
	require.Contains(t, store.objects, "projects/other/latest/keep.html")
	require.Contains(t, store.objects, "projects/demo/latest/index.html")
}

func TestDeploy_EmptySite(t *testing.T) {
	_, dep, _ := builtSite(t)
	err := dep.DeployLatest(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrDeploy)
}

func TestDeploy_UploadFailure(t *testing.T) {
	store, dep, siteDir := builtSite(t)
	store.putErr = errors.New("throttled")
	err := dep.DeployLatest(context.Background(), siteDir)
	require.ErrorIs(t, err, ErrDeploy)
	require.Contains(t, err.Error(), "throttled")
}
