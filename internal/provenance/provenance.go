// Package provenance records which commit of the package source a build
// came from.
package provenance

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotAGitRepo is returned when the source path is not inside a git work tree.
var ErrNotAGitRepo = errors.New("not a git repository")

// HeadCommit returns the HEAD commit hash of the repository containing path.
// Parent directories are searched for the .git directory. A repository
// without commits yields an empty hash and no error.
func HeadCommit(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return "", ErrNotAGitRepo
	}
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}

	return ref.Hash().String(), nil
}

// Lookup is HeadCommit for callers that treat provenance as optional:
// any failure yields an empty hash.
func Lookup(ctx context.Context, path string) string {
	if path == "" {
		return ""
	}
	hash, err := HeadCommit(ctx, path)
	if err != nil {
		return ""
	}
	return hash
}
