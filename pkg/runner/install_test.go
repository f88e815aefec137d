package runner

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-github/v68/github"
	"github.com/opnlabs/tick/pkg/fetcher"
	"github.com/opnlabs/tick/pkg/models"
)

// releaseServer fakes just enough of the GitHub releases API to install one
// tool whose binary prints machete-ok.
func releaseServer(t *testing.T) *github.Client {
	t.Helper()

	script := "#!/bin/sh\necho machete-ok\n"
	var archive bytes.Buffer
	gzw := gzip.NewWriter(&archive)
	tw := tar.NewWriter(gzw)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "cargo-machete/cargo-machete",
		Typeflag: tar.TypeReg,
		Mode:     0755,
		Size:     int64(len(script)),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(script)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/bnjbvr/cargo-machete/releases/tags/v0.7.0", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 7, "tag_name": "v0.7.0", "assets": [{"id": 99, "name": "cargo-machete-v0.7.0-x86_64-unknown-linux-musl.tar.gz"}]}`)
	})
	mux.HandleFunc("/repos/bnjbvr/cargo-machete/releases/assets/99", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(archive.Bytes())
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base
	return client
}

// The default tool dir is cwd-relative while commands run in the job
// workspace, so an installed tool must still resolve through PATH.
func TestInstalledToolRunsFromRelativeToolDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	toolFetcher := fetcher.NewGitHubFetcher(releaseServer(t), filepath.Join(".tick", "tools", "check-unused-dependencies"))

	var b bytes.Buffer
	err = NewJobRunner("check_unused_dependencies", toolFetcher, LocalExecutor{}, LogOptions{Stdout: &b, Stderr: &b}).
		WithSteps([]models.Step{
			{Tool: &models.ToolSpec{
				Repo:  "bnjbvr/cargo-machete",
				Tag:   "v0.7.0",
				Asset: "cargo-machete-v0.7.0-x86_64-unknown-linux-musl.tar.gz",
			}},
			{Run: "cargo-machete"},
		}).Run(context.Background())
	if err != nil {
		t.Fatalf("installed tool did not resolve from the run step: %v", err)
	}
	if !strings.Contains(b.String(), "machete-ok") {
		t.Errorf("expected tool output, got %q", b.String())
	}
}
