// Package workflow owns a run: it gates on the trigger, launches every job
// independently and aggregates their statuses into one overall result.
package workflow

import (
	"context"
	"time"

	"github.com/opnlabs/tick/pkg/models"
	"github.com/opnlabs/tick/pkg/trigger"
	"golang.org/x/sync/errgroup"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusInactive
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusInactive:
		return "inactive"
	}
	return "unknown"
}

type JobResult struct {
	Status Status
	Err    error
}

// Result maps every job name to its outcome. Overall is StatusFailure iff any
// job failed and StatusInactive when the trigger did not match, in which case
// Jobs is nil.
type Result struct {
	Overall Status
	Jobs    map[string]JobResult
}

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFactory builds a fresh Runner per job so every job gets an isolated
// workspace and tool installation.
type RunnerFactory func(job models.Job) Runner

type Orchestrator struct {
	trigger    models.Trigger
	jobs       []models.Job
	newRunner  RunnerFactory
	jobTimeout time.Duration
}

func NewOrchestrator(workflowFile models.WorkflowFile, newRunner RunnerFactory) *Orchestrator {
	return &Orchestrator{
		trigger:    workflowFile.Trigger,
		jobs:       workflowFile.Jobs,
		newRunner:  newRunner,
		jobTimeout: time.Hour,
	}
}

func (o *Orchestrator) WithJobTimeout(timeout time.Duration) *Orchestrator {
	o.jobTimeout = timeout
	return o
}

// Run evaluates the trigger and, if it matches, runs every job. Jobs are
// independent: they run concurrently, one failing never stops another, and
// there are no retries.
func (o *Orchestrator) Run(ctx context.Context, event trigger.Event) (Result, error) {
	if event.Kind == trigger.Manual && !o.trigger.Manual {
		return Result{Overall: StatusInactive}, nil
	}

	run, err := trigger.ShouldRun(event, o.trigger.Paths)
	if err != nil {
		return Result{}, err
	}
	if !run {
		return Result{Overall: StatusInactive}, nil
	}

	errs := make([]error, len(o.jobs))
	var eg errgroup.Group
	for i, job := range o.jobs {
		i, job := i, job
		eg.Go(func() error {
			jobCtx, cancel := context.WithTimeout(ctx, o.jobTimeout)
			defer cancel()

			errs[i] = o.newRunner(job).Run(jobCtx)
			return errs[i]
		})
	}

	// A plain errgroup does not cancel the siblings of a failing job; Wait
	// blocks until every job finished and reports whether any of them failed.
	overall := StatusSuccess
	if err := eg.Wait(); err != nil {
		overall = StatusFailure
	}

	result := Result{
		Overall: overall,
		Jobs:    make(map[string]JobResult, len(o.jobs)),
	}
	for i, job := range o.jobs {
		jobResult := JobResult{Status: StatusSuccess}
		if errs[i] != nil {
			jobResult = JobResult{Status: StatusFailure, Err: errs[i]}
		}
		result.Jobs[job.Name] = jobResult
	}
	return result, nil
}
