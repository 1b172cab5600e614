package apps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

var ErrGitNotAvailable = errors.New("git is not available on this system")

// installFromGit clones a repo into appDir using the system git binary.
// Branch and tag both translate to --branch; a pinned commit forces a full
// clone followed by a checkout.
func installFromGit(ctx context.Context, repo, appDir, branch, tag, commit string) error {
	if !systemGitAvailable() {
		return ErrGitNotAvailable
	}

	args := []string{"clone", repo, appDir}
	if branch != "" {
		args = append(args, "--branch", branch)
	} else if tag != "" {
		args = append(args, "--branch", tag)
	}
	if commit == "" {
		// shallow clones can't check out arbitrary commits
		args = append(args, "--depth=1")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone failed: %q: %w", stderr.String(), err)
	}

	if commit != "" {
		cmd = exec.CommandContext(ctx, "git", "-C", appDir, "checkout", commit)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if err := os.RemoveAll(appDir); err != nil {
				slog.Warn("failed to remove app", "error", err)
			}
			return fmt.Errorf("git checkout failed: %q: %w", stderr.String(), err)
		}
	}

	return nil
}

func systemGitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}
