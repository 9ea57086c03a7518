// Package git reads repository state through the git CLI. Every helper takes
// the directory to run in so callers never change the process working
// directory.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output)), nil
}

// DetectGitRepo checks if dir is inside a git working tree
func DetectGitRepo(ctx context.Context, dir string) error {
	if _, err := run(ctx, dir, "rev-parse", "--is-inside-work-tree"); err != nil {
		return fmt.Errorf("not a git repository: %w", err)
	}
	return nil
}

// RepoRoot returns the top-level directory of the repository containing dir
func RepoRoot(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "rev-parse", "--show-toplevel")
}

// GetCurrentCommitSHA returns the SHA of HEAD
func GetCurrentCommitSHA(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "rev-parse", "HEAD")
}

// GetCurrentBranch returns the name of the current git branch
func GetCurrentBranch(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// ChangedSince lists files (relative to the repo root) that differ between
// sha and the working tree, including uncommitted edits.
func ChangedSince(ctx context.Context, dir, sha string) ([]string, error) {
	output, err := run(ctx, dir, "diff", "--name-only", sha)
	if err != nil {
		return nil, fmt.Errorf("failed to get changed files: %w", err)
	}

	var result []string
	for _, f := range strings.Split(output, "\n") {
		if f != "" {
			result = append(result, f)
		}
	}
	return result, nil
}

// HeadOrEmpty returns HEAD's SHA, or "" when dir is not a repository or has
// no commits yet.
func HeadOrEmpty(ctx context.Context, dir string) string {
	sha, err := GetCurrentCommitSHA(ctx, dir)
	if err != nil {
		return ""
	}
	return sha
}
