package apps

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/syftbox-client/internal/syftsdk"
	"github.com/openmined/syftbox-client/internal/utils"
)

const defaultBranch = "main"

// AppInstallOpts controls how an app gets installed. URI is either a git
// repository URL or a local directory path.
type AppInstallOpts struct {
	URI    string
	Branch string
	Tag    string
	Commit string
	UseGit bool
	Force  bool
}

// installFromArchive downloads the repo as a zip archive and extracts it
// into appDir. Used when git is unavailable or not requested.
func installFromArchive(ctx context.Context, repoURL *url.URL, opts *AppInstallOpts, appDir string) error {
	archiveURL := repoArchiveURL(repoURL, opts)

	resp, err := syftsdk.HTTPClient.R().
		SetContext(ctx).
		Get(archiveURL)
	if err != nil {
		return fmt.Errorf("download archive %q: %w", archiveURL, err)
	}
	if resp.IsErrorState() {
		return fmt.Errorf("download archive %q: status %d", archiveURL, resp.GetStatusCode())
	}

	return extractAppZip(resp.Bytes(), appDir)
}

// repoArchiveURL builds the codeload-style archive URL for a ref. Branch
// wins over tag, tag over commit; defaults to the main branch.
func repoArchiveURL(repoURL *url.URL, opts *AppInstallOpts) string {
	base := strings.TrimSuffix(repoURL.String(), "/")
	base = strings.TrimSuffix(base, ".git")

	switch {
	case opts.Branch != "":
		return fmt.Sprintf("%s/archive/refs/heads/%s.zip", base, opts.Branch)
	case opts.Tag != "":
		return fmt.Sprintf("%s/archive/refs/tags/%s.zip", base, opts.Tag)
	case opts.Commit != "":
		return fmt.Sprintf("%s/archive/%s.zip", base, opts.Commit)
	default:
		return fmt.Sprintf("%s/archive/refs/heads/%s.zip", base, defaultBranch)
	}
}

// extractAppZip unpacks a repo archive into destDir, stripping the
// top-level "<repo>-<ref>" directory the forges prepend.
func extractAppZip(data []byte, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	if err := utils.EnsureDir(destDir); err != nil {
		return err
	}

	for _, f := range zr.File {
		rel := stripArchiveRoot(f.Name)
		if rel == "" {
			continue
		}

		target := filepath.Join(destDir, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %q: %w", f.Name, err)
		}

		mode := f.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}

		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			src.Close()
			return err
		}

		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return fmt.Errorf("extract %q: %w", f.Name, err)
		}
	}

	return nil
}

// stripArchiveRoot drops the first path component of an archive entry.
func stripArchiveRoot(name string) string {
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return strings.TrimSuffix(name[i+1:], "/")
	}
	return ""
}
