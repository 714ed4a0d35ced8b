package deps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// lockHashFileName caches the lock file hash of the last export so the
// expensive export command can be skipped when nothing changed.
const lockHashFileName = ".poetry-lock-hash.json"

type lockHashCache struct {
	Hash        string `json:"hash"`
	Description string `json:"description"`
}

const lockHashDescription = "DON'T edit this file manually! Cache of the lock file hash, used to skip redundant exports."

// exportTargets maps dependency groups to their requirements files.
// Main dependencies export without a group filter.
var exportTargets = []struct {
	group Category
	file  string
}{
	{CategoryDev, "requirements-dev.txt"},
	{CategoryTest, "requirements-test.txt"},
	{CategoryDoc, "requirements-doc.txt"},
	{CategoryAuto, "requirements-automation.txt"},
}

// Export renders the pinned manifest into requirements files, one for the
// main dependencies and one per group. Returns true if an export ran, false
// when the cached lock hash shows the manifest has not changed.
func (i *Installer) Export(ctx context.Context) (bool, error) {
	current, err := i.lockFileHash()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	if !i.needExport(current) {
		slog.Info("requirements files up to date, nothing to do")
		return false, nil
	}

	if err := i.run(ctx, "export", "--format", "requirements.txt", "--output", "requirements.txt", "--without-hashes"); err != nil {
		return false, classify(err)
	}
	for _, target := range exportTargets {
		if err := i.run(ctx, "export", "--format", "requirements.txt",
			"--output", target.file, "--without-hashes", "--only", string(target.group)); err != nil {
			return false, classify(err)
		}
	}

	if !i.runner.DryRun {
		if err := i.writeLockHash(current); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (i *Installer) lockHashPath() string {
	return filepath.Join(i.cfg.Root, lockHashFileName)
}

func (i *Installer) lockFileHash() (string, error) {
	data, err := os.ReadFile(i.LockFilePath())
	if err != nil {
		return "", fmt.Errorf("reading lock file: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// needExport compares the current lock hash against the cached one.
// A missing or unreadable cache file forces an export.
func (i *Installer) needExport(current string) bool {
	data, err := os.ReadFile(i.lockHashPath())
	if err != nil {
		return true
	}
	var cached lockHashCache
	if err := json.Unmarshal(data, &cached); err != nil {
		return true
	}
	return cached.Hash != current
}

func (i *Installer) writeLockHash(hash string) error {
	data, err := json.MarshalIndent(lockHashCache{Hash: hash, Description: lockHashDescription}, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(i.lockHashPath(), data, 0o644)
}
