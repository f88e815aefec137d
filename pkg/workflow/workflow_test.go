package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/opnlabs/tick/pkg/models"
	"github.com/opnlabs/tick/pkg/trigger"
)

type fakeRunner struct {
	err error
	ran *bool
	mu  *sync.Mutex
}

func (f fakeRunner) Run(ctx context.Context) error {
	f.mu.Lock()
	*f.ran = true
	f.mu.Unlock()
	return f.err
}

func testWorkflow() models.WorkflowFile {
	return models.WorkflowFile{
		Trigger: models.Trigger{
			Manual: true,
			Paths:  []string{"Cargo.toml", "Cargo.lock", "crates/**/Cargo.toml", "crates/**/Cargo.lock"},
		},
		Jobs: []models.Job{
			{Name: "check_unused_dependencies", Steps: []models.Step{{Run: "cargo-machete"}}},
			{Name: "check_licenses", Steps: []models.Step{{Run: "cargo-deny check licenses"}}},
		},
	}
}

func TestRunManualAllSucceed(t *testing.T) {
	var mu sync.Mutex
	ran := make(map[string]*bool)
	factory := func(job models.Job) Runner {
		ran[job.Name] = new(bool)
		return fakeRunner{ran: ran[job.Name], mu: &mu}
	}

	result, err := NewOrchestrator(testWorkflow(), factory).Run(context.Background(), trigger.Event{Kind: trigger.Manual})
	if err != nil {
		t.Fatal(err)
	}
	if result.Overall != StatusSuccess {
		t.Errorf("expected overall success, got %s", result.Overall)
	}
	for name, r := range ran {
		if !*r {
			t.Errorf("job %s did not run", name)
		}
	}
	if len(result.Jobs) != 2 {
		t.Errorf("expected 2 job results, got %d", len(result.Jobs))
	}
}

func TestRunJobFailureIsIndependent(t *testing.T) {
	var mu sync.Mutex
	ran := make(map[string]*bool)
	factory := func(job models.Job) Runner {
		ran[job.Name] = new(bool)
		r := fakeRunner{ran: ran[job.Name], mu: &mu}
		if job.Name == "check_unused_dependencies" {
			r.err = errors.New("unused dependency found")
		}
		return r
	}

	result, err := NewOrchestrator(testWorkflow(), factory).Run(context.Background(), trigger.Event{Kind: trigger.Manual})
	if err != nil {
		t.Fatal(err)
	}

	if !*ran["check_licenses"] {
		t.Error("one job failing should not prevent the other from running")
	}
	if result.Overall != StatusFailure {
		t.Errorf("expected overall failure, got %s", result.Overall)
	}
	if result.Jobs["check_unused_dependencies"].Status != StatusFailure {
		t.Error("failed job not reported as failure")
	}
	if result.Jobs["check_unused_dependencies"].Err == nil {
		t.Error("failed job should carry its error")
	}
	if result.Jobs["check_licenses"].Status != StatusSuccess {
		t.Error("succeeding job not reported as success")
	}
}

func TestRunPushWithoutMatchIsInactive(t *testing.T) {
	factory := func(job models.Job) Runner {
		t.Errorf("no runner should be built for an inactive run, got job %s", job.Name)
		return nil
	}

	result, err := NewOrchestrator(testWorkflow(), factory).Run(context.Background(), trigger.Event{
		Kind:         trigger.Push,
		ChangedFiles: []string{"src/main.rs"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Overall != StatusInactive {
		t.Errorf("expected inactive, got %s", result.Overall)
	}
	if result.Jobs != nil {
		t.Error("inactive result should not carry job results")
	}
}

func TestRunPushWithMatch(t *testing.T) {
	var mu sync.Mutex
	ran := make(map[string]*bool)
	factory := func(job models.Job) Runner {
		ran[job.Name] = new(bool)
		return fakeRunner{ran: ran[job.Name], mu: &mu}
	}

	result, err := NewOrchestrator(testWorkflow(), factory).Run(context.Background(), trigger.Event{
		Kind:         trigger.Push,
		ChangedFiles: []string{"crates/foo/Cargo.toml"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Overall != StatusSuccess {
		t.Errorf("expected success, got %s", result.Overall)
	}
	if len(ran) != 2 {
		t.Errorf("expected both jobs to run, got %d", len(ran))
	}
}

func TestRunManualNotAllowed(t *testing.T) {
	workflowFile := testWorkflow()
	workflowFile.Trigger.Manual = false
	factory := func(job models.Job) Runner {
		t.Errorf("no runner should be built when manual dispatch is not declared, got job %s", job.Name)
		return nil
	}

	result, err := NewOrchestrator(workflowFile, factory).Run(context.Background(), trigger.Event{Kind: trigger.Manual})
	if err != nil {
		t.Fatal(err)
	}
	if result.Overall != StatusInactive {
		t.Errorf("expected inactive, got %s", result.Overall)
	}
}

func TestRunBadPattern(t *testing.T) {
	workflowFile := testWorkflow()
	workflowFile.Trigger.Paths = []string{"[invalid"}

	_, err := NewOrchestrator(workflowFile, func(job models.Job) Runner { return nil }).
		Run(context.Background(), trigger.Event{Kind: trigger.Push, ChangedFiles: []string{"Cargo.toml"}})
	if err == nil {
		t.Error("expected an error for a malformed pattern")
	}
}
