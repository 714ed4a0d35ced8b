// Package vcs reads repository metadata used to stamp built artifacts.
package vcs

import (
	"github.com/go-git/go-git/v5"
)

// Revision returns the HEAD commit hash of the repository containing dir.
// It returns an empty string when dir is not inside a git repository or the
// repository has no commits yet; artifact builds proceed without a stamp.
func Revision(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
