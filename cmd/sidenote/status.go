package main

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/sidenote/internal/config"
	"github.com/rohankatakam/sidenote/internal/git"
	"github.com/rohankatakam/sidenote/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, store and drift status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "sidenote status\n")
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", 40))

	// Configuration info
	fmt.Fprintf(out, "\nConfiguration:\n")
	fmt.Fprintf(out, "  Root: %s\n", cfg.Source.Root)
	fmt.Fprintf(out, "  Storage: %s\n", cfg.Storage.Type)
	if cfg.Storage.Type == "postgres" {
		fmt.Fprintf(out, "  DSN: %s (from %s)\n", maskDSN(cfg.Storage.PostgresDSN), cfg.DSNSource())
	} else {
		fmt.Fprintf(out, "  Database: %s\n", cfg.Storage.LocalPath)
	}

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	// Repository
	fmt.Fprintf(out, "\nRepository:\n")
	if err := git.DetectGitRepo(ctx, s.provider.Root()); err != nil {
		fmt.Fprintf(out, "  Not a git repository\n")
	} else {
		branch, err := git.GetCurrentBranch(ctx, s.provider.Root())
		if err != nil {
			branch = "(no commits yet)"
		}
		fmt.Fprintf(out, "  Branch: %s\n", branch)
		if head := git.HeadOrEmpty(ctx, s.provider.Root()); head != "" {
			fmt.Fprintf(out, "  HEAD: %s\n", head[:min(8, len(head))])
		}
	}

	// Last save
	fmt.Fprintf(out, "\nLast save:\n")
	meta, err := s.store.Metadata(ctx)
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		fmt.Fprintf(out, "  Never saved (run 'sidenote add')\n")
	case err != nil:
		fmt.Fprintf(out, "  Unavailable: %v\n", err)
	default:
		fmt.Fprintf(out, "  At: %s (%s ago)\n", meta.SavedAt.Local().Format("2006-01-02 15:04:05"), formatDuration(time.Since(meta.SavedAt)))
		fmt.Fprintf(out, "  Comments: %d\n", meta.Comments)
		if meta.GitHead != "" {
			fmt.Fprintf(out, "  Commit: %s\n", meta.GitHead[:min(8, len(meta.GitHead))])
		}
	}

	conflicts, err := s.load(ctx)
	if err != nil {
		return err
	}

	// Drift summary
	fmt.Fprintf(out, "\nComments:\n")
	fmt.Fprintf(out, "  Files: %d\n", len(s.tracker.Files()))
	fmt.Fprintf(out, "  Tracked: %d\n", s.commentCount())
	fmt.Fprintf(out, "  Drifted: %d\n", conflicts.Len())
	if n := s.dropped(); n > 0 {
		fmt.Fprintf(out, "  Unresolvable: %d\n", n)
	}

	// Files git reports as changed since the last save
	if meta != nil && meta.GitHead != "" {
		changed, err := changedTrackedFiles(cmd, s, meta.GitHead)
		if err != nil {
			logger.WithError(err).Debug("Git comparison unavailable")
		} else if len(changed) > 0 {
			fmt.Fprintf(out, "\nAnnotated files changed since last save:\n")
			for _, f := range changed {
				fmt.Fprintf(out, "  %s\n", f)
			}
		}
	}

	return nil
}

func changedTrackedFiles(cmd *cobra.Command, s *session, sha string) ([]string, error) {
	ctx := cmd.Context()
	root, err := git.RepoRoot(ctx, s.provider.Root())
	if err != nil {
		return nil, err
	}
	changed, err := git.ChangedSince(ctx, root, sha)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]bool)
	for _, file := range s.tracker.Files() {
		if resolved, err := filepath.EvalSymlinks(file); err == nil {
			file = resolved
		}
		tracked[file] = true
	}

	var result []string
	for _, rel := range changed {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		if tracked[abs] {
			result = append(result, rel)
		}
	}
	return result, nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// maskDSN hides the password of a postgres:// DSN.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":****" + dsn[at:]
	}
	return dsn
}
