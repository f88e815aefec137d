package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/opnlabs/tick/pkg/fetcher"
	"github.com/opnlabs/tick/pkg/models"
)

const BUILD_DIR = ".tick"

var ErrSourceUnavailable = errors.New("runner: source checkout failed")

// ToolExitError is an installed tool's own verdict: it ran and exited nonzero.
type ToolExitError struct {
	Command string
	Code    int
}

func (e *ToolExitError) Error() string {
	return fmt.Sprintf("runner: %s exited with code %d", e.Command, e.Code)
}

type LogOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

// JobRunner executes one job's steps strictly in declared order. The first
// failing step aborts the rest of the job. Each runner gets its own workspace
// under BUILD_DIR, nothing is shared between jobs.
type JobRunner struct {
	name       string
	steps      []models.Step
	repoURL    string
	revision   string
	env        []string
	workspace  string
	fetcher    fetcher.ToolFetcher
	executor   Executor
	logOptions LogOptions
}

func NewJobRunner(name string, toolFetcher fetcher.ToolFetcher, executor Executor, logOptions LogOptions) *JobRunner {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	jobID := slug.Make(name + uuid.NewString())

	if logOptions.Stdout == nil {
		logOptions.Stdout = os.Stdout
	}
	if logOptions.Stderr == nil {
		logOptions.Stderr = os.Stderr
	}

	return &JobRunner{
		name:       name,
		workspace:  filepath.Join(wd, BUILD_DIR, fmt.Sprintf("src-%s", jobID)),
		fetcher:    toolFetcher,
		executor:   executor,
		logOptions: logOptions,
	}
}

func (j *JobRunner) WithSteps(steps []models.Step) *JobRunner {
	j.steps = steps
	return j
}

// WithRepo sets the repository URL and revision used by checkout steps.
func (j *JobRunner) WithRepo(url, revision string) *JobRunner {
	j.repoURL = url
	j.revision = revision
	return j
}

func (j *JobRunner) WithEnv(env []models.Variable) *JobRunner {
	variables := make([]string, 0)
	for _, v := range env {
		for k, value := range v {
			variables = append(variables, fmt.Sprintf("%s=%s", k, value))
		}
	}
	j.env = variables
	return j
}

func (j *JobRunner) Run(ctx context.Context) error {
	if err := os.MkdirAll(j.workspace, 0755); err != nil {
		return fmt.Errorf("unable to create workspace for %s: %v", j.name, err)
	}

	toolDirs := make([]string, 0)
	for _, step := range j.steps {
		switch step.Kind() {
		case models.StepCheckout:
			if err := j.checkout(ctx); err != nil {
				return err
			}
		case models.StepInstallTool:
			path, err := j.fetcher.Install(ctx, *step.Tool)
			if err != nil {
				return fmt.Errorf("unable to install tool for %s: %w", j.name, err)
			}
			toolDirs = append(toolDirs, filepath.Dir(path))
		case models.StepRunCommand:
			err := j.executor.Exec(ctx, ExecOptions{
				Command:  step.Run,
				Dir:      j.workspace,
				Env:      j.env,
				ToolDirs: toolDirs,
				Stdout:   j.logOptions.Stdout,
				Stderr:   j.logOptions.Stderr,
			})
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid step in job %s: exactly one of checkout, tool or run must be set", j.name)
		}
	}
	return nil
}

// checkout clones the triggering repository into the job workspace and, when a
// revision is set, checks out exactly that revision.
func (j *JobRunner) checkout(ctx context.Context) error {
	repo, err := git.PlainCloneContext(ctx, j.workspace, false, &git.CloneOptions{
		URL: j.repoURL,
	})
	if err != nil {
		return fmt.Errorf("%w: clone %s: %v", ErrSourceUnavailable, j.repoURL, err)
	}

	if j.revision == "" {
		return nil
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(j.revision))
	if err != nil {
		return fmt.Errorf("%w: revision %s: %v", ErrSourceUnavailable, j.revision, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: worktree: %v", ErrSourceUnavailable, err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		return fmt.Errorf("%w: checkout %s: %v", ErrSourceUnavailable, j.revision, err)
	}
	return nil
}
