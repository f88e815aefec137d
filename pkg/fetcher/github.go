// Package fetcher installs pinned tool release binaries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/opnlabs/tick/pkg/models"
	"github.com/opnlabs/tick/pkg/store"
	"github.com/opnlabs/tick/pkg/utils"
)

var (
	ErrReleaseNotFound = errors.New("fetcher: release tag not found")
	ErrAssetNotFound   = errors.New("fetcher: release asset not found")
	ErrNoExecutable    = errors.New("fetcher: no executable found in asset")
)

// ToolFetcher installs the executable pinned by a ToolSpec and returns its
// path. Installing the same spec twice within a run must yield the same path.
type ToolFetcher interface {
	Install(ctx context.Context, spec models.ToolSpec) (string, error)
}

// GitHubFetcher downloads release assets through the GitHub releases API.
// Installs are cached per fetcher, so every job gets its own instance.
type GitHubFetcher struct {
	client   *github.Client
	toolDir  string
	installs store.Store
}

func NewGitHubFetcher(client *github.Client, toolDir string) *GitHubFetcher {
	// Tool dirs end up on PATH and as bind mount sources, both of which need
	// absolute paths. Commands run with the job workspace as their working
	// directory, so a cwd-relative tool dir would never resolve there.
	absDir, err := filepath.Abs(toolDir)
	if err != nil {
		log.Fatal(err)
	}

	return &GitHubFetcher{
		client:   client,
		toolDir:  absDir,
		installs: store.NewMemStore(),
	}
}

// Install resolves the exact (repo, tag, asset) triple of spec, downloads the
// asset and places its executable under the fetcher's tool directory. The
// returned path points at the installed executable.
func (g *GitHubFetcher) Install(ctx context.Context, spec models.ToolSpec) (string, error) {
	if path, err := g.installs.Get(spec.Key()); err == nil {
		return path, nil
	}

	owner, repo, err := splitRepo(spec.Repo)
	if err != nil {
		return "", err
	}

	release, resp, err := g.client.Repositories.GetReleaseByTag(ctx, owner, repo, spec.Tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s@%s", ErrReleaseNotFound, spec.Repo, spec.Tag)
		}
		return "", fmt.Errorf("fetcher: could not look up release %s@%s: %w", spec.Repo, spec.Tag, err)
	}

	var asset *github.ReleaseAsset
	for _, a := range release.Assets {
		if a.GetName() == spec.Asset {
			asset = a
			break
		}
	}
	if asset == nil {
		return "", fmt.Errorf("%w: %s in %s@%s", ErrAssetNotFound, spec.Asset, spec.Repo, spec.Tag)
	}

	rc, _, err := g.client.Repositories.DownloadReleaseAsset(ctx, owner, repo, asset.GetID(), http.DefaultClient)
	if err != nil {
		return "", fmt.Errorf("fetcher: could not download asset %s from %s@%s: %w", spec.Asset, spec.Repo, spec.Tag, err)
	}
	defer rc.Close()

	installDir := filepath.Join(g.toolDir, fmt.Sprintf("%s-%s-%s", owner, repo, spec.Tag))
	if err := os.MkdirAll(installDir, 0755); err != nil {
		return "", fmt.Errorf("fetcher: could not create install dir %s: %w", installDir, err)
	}

	if err := place(rc, spec, repo, installDir); err != nil {
		return "", err
	}

	executable, err := findExecutable(installDir, repo)
	if err != nil {
		return "", err
	}

	if err := g.installs.Set(spec.Key(), executable); err != nil {
		return "", fmt.Errorf("fetcher: could not record install of %s: %w", spec.Key(), err)
	}
	return executable, nil
}

// place writes the downloaded asset into installDir, extracting archives and
// treating anything else as a raw binary named after the repository.
func place(r io.Reader, spec models.ToolSpec, repo, installDir string) error {
	if strings.HasSuffix(spec.Asset, ".tar.gz") || strings.HasSuffix(spec.Asset, ".tgz") {
		if err := utils.Extract(r, installDir); err != nil {
			return fmt.Errorf("fetcher: could not extract asset %s: %w", spec.Asset, err)
		}
		return nil
	}

	target := filepath.Join(installDir, repo)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("fetcher: could not create %s: %w", target, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("fetcher: could not write %s: %w", target, err)
	}
	return nil
}

// findExecutable picks the installed executable: the only one present, or the
// one named after the repository when an archive ships several.
func findExecutable(installDir, repo string) (string, error) {
	executables, err := utils.ExecutableFiles(installDir)
	if err != nil {
		return "", fmt.Errorf("fetcher: could not scan %s: %w", installDir, err)
	}

	if len(executables) == 1 {
		return executables[0], nil
	}
	for _, e := range executables {
		if filepath.Base(e) == repo {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoExecutable, installDir)
}

func splitRepo(repo string) (string, string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("fetcher: repository should be owner/name: %s", repo)
	}
	return parts[0], parts[1], nil
}
