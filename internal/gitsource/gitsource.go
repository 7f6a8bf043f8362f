// Package gitsource keeps local checkouts of git-hosted decks up to date.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones remote into localPath if nothing is there yet, or pulls the
// latest changes if a checkout already exists. Progress output from the
// remote is written to progress, which may be nil.
func Sync(ctx context.Context, logger *slog.Logger, remote, localPath string, progress io.Writer) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("Cloning repository", "url", remote, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      remote,
			Depth:    1,
			Progress: progress,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", remote, err)
		}
		logger.Info("Clone successful", "path", localPath)
	case err == nil:
		logger.Info("Pulling latest changes", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		logger.Info("Pull successful", "path", localPath, "up_to_date", err != nil)
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// IsRemote reports whether source names a git remote rather than a local
// directory.
func IsRemote(source string) bool {
	if u, err := url.Parse(source); err == nil {
		switch u.Scheme {
		case "http", "https", "ssh", "git":
			return true
		}
	}
	return isSCPLike(source)
}

func isSCPLike(source string) bool {
	at := strings.Index(source, "@")
	colon := strings.Index(source, ":")
	return at > 0 && colon > at && !strings.Contains(source[:colon], "/")
}

// LocalPath maps a remote URL onto a checkout directory below baseDir, using
// the host and repository path: https://github.com/a/b.git and
// git@github.com:a/b.git both map to baseDir/github.com/a/b.
func LocalPath(baseDir, repoURL string) (string, error) {
	if isSCPLike(repoURL) {
		hostPart, repoPath, _ := strings.Cut(repoURL, ":")
		_, host, _ := strings.Cut(hostPart, "@")
		repoPath = strings.Trim(strings.TrimSuffix(repoPath, ".git"), "/")
		if host == "" || repoPath == "" {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		return filepath.Join(baseDir, host, repoPath), nil
	}

	u, err := url.Parse(repoURL)
	if err != nil || u.Host == "" || !IsRemote(repoURL) {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	repoPath := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	if repoPath == "" || strings.Contains(repoPath, "..") {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	return filepath.Join(baseDir, u.Hostname(), repoPath), nil
}
