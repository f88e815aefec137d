package tick

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-github/v68/github"
	"github.com/gosimple/slug"
	"github.com/opnlabs/tick/pkg/fetcher"
	"github.com/opnlabs/tick/pkg/models"
	"github.com/opnlabs/tick/pkg/runner"
	"github.com/opnlabs/tick/pkg/trigger"
	"github.com/opnlabs/tick/pkg/utils"
	"github.com/opnlabs/tick/pkg/workflow"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	workflowFilePath     string
	eventName            string
	changedFiles         []string
	repoURL              string
	revision             string
	executorName         string
	image                string
	showImagePull        bool
	envVars              []string
	environmentVariables []models.Variable = make([]models.Variable, 0)
	validate             *validator.Validate = validator.New(validator.WithRequiredStructEnabled())
)

type config struct {
	ToolDir     string        `env:"TICK_TOOL_DIR, default=.tick/tools"`
	JobTimeout  time.Duration `env:"TICK_JOB_TIMEOUT, default=1h"`
	GitHubToken string        `env:"GITHUB_TOKEN"`
}

var rootCmd = &cobra.Command{
	Use:   "tick",
	Short: "Tick is a minimal workflow runner",
	Long: `Tick is a minimal workflow runner that reproduces a CI workflow locally.
It evaluates a trigger against the changed files of a push (or a manual dispatch),
checks out the source, installs pinned tool releases and runs them as independent
jobs, then aggregates per-job exit statuses into one overall result.`,

	Run: func(cmd *cobra.Command, args []string) {

		if len(envVars) > 0 {
			for _, v := range envVars {
				variables := strings.Split(v, "=")
				if len(variables) != 2 {
					log.Fatalf("variables should be defined as KEY=VALUE: %s", v)
				}

				m := make(map[string]string)
				m[variables[0]] = variables[1]
				environmentVariables = append(environmentVariables, m)
			}
		}

		run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&workflowFilePath, "workflow-file-path", "f", "tick.yml", "Path to the workflow file.")
	rootCmd.Flags().StringVar(&eventName, "event", "manual", "Triggering event. One of manual, push.")
	rootCmd.Flags().StringArrayVar(&changedFiles, "changed-file", make([]string, 0), "File changed by the triggering push. Can be repeated.")
	rootCmd.Flags().StringVar(&repoURL, "repo", ".", "Repository URL or path used by checkout steps.")
	rootCmd.Flags().StringVar(&revision, "revision", "", "Revision checked out by checkout steps. Defaults to the remote HEAD.")
	rootCmd.Flags().StringVar(&executorName, "executor", "local", "Step executor. One of local, docker.")
	rootCmd.Flags().StringVar(&image, "image", "docker.io/library/alpine", "Image used by the docker executor.")
	rootCmd.Flags().BoolVar(&showImagePull, "show-image-pull", false, "Show image pull logs of the docker executor.")

	rootCmd.Flags().StringArrayVarP(&envVars, "environment-variable", "e", make([]string, 0), "Environment variables. KEY=VALUE")

	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run() {
	ctx := context.Background()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatal(err)
	}

	contents, err := os.ReadFile(filepath.Clean(workflowFilePath))
	if err != nil {
		log.Fatal(err)
	}

	var workflowFile models.WorkflowFile
	err = yaml.Unmarshal(contents, &workflowFile)
	if err != nil {
		log.Fatal(err)
	}

	err = validate.Struct(workflowFile)
	if err != nil {
		log.Fatalf("Err(s):\n%+v\n", err)
	}

	for _, job := range workflowFile.Jobs {
		for _, step := range job.Steps {
			if step.Kind() == models.StepInvalid {
				log.Fatalf("job %s: every step needs exactly one of checkout, tool or run", job.Name)
			}
		}
	}

	var event trigger.Event
	switch trigger.Kind(eventName) {
	case trigger.Manual:
		event = trigger.Event{Kind: trigger.Manual}
	case trigger.Push:
		event = trigger.Event{Kind: trigger.Push, ChangedFiles: changedFiles}
	default:
		log.Fatalf("unknown event: %s", eventName)
	}

	githubClient := github.NewClient(nil)
	if cfg.GitHubToken != "" {
		githubClient = githubClient.WithAuthToken(cfg.GitHubToken)
	}

	newRunner := func(job models.Job) workflow.Runner {
		var executor runner.Executor = runner.LocalExecutor{}
		if executorName == "docker" {
			executor = runner.NewDockerExecutor(image).ShowImagePull(showImagePull)
		}

		toolFetcher := fetcher.NewGitHubFetcher(githubClient, filepath.Join(cfg.ToolDir, slug.Make(job.Name)))

		return runner.NewJobRunner(job.Name, toolFetcher, executor,
			runner.LogOptions{
				Stdout: utils.NewColorLogger(job.Name, os.Stdout, true),
				Stderr: utils.NewColorLogger(job.Name, os.Stderr, false),
			}).
			WithSteps(job.Steps).
			WithRepo(repoURL, revision).
			WithEnv(append(job.Variables, environmentVariables...))
	}

	result, err := workflow.NewOrchestrator(workflowFile, newRunner).
		WithJobTimeout(cfg.JobTimeout).
		Run(ctx, event)
	if err != nil {
		log.Fatal(err)
	}

	switch result.Overall {
	case workflow.StatusInactive:
		log.Println("trigger did not match, nothing to run")
	case workflow.StatusSuccess:
		log.Println("all jobs succeeded")
	case workflow.StatusFailure:
		for name, jobResult := range result.Jobs {
			if jobResult.Status == workflow.StatusFailure {
				log.Printf("job %s failed: %v", name, jobResult.Err)
			}
		}
		os.Exit(1)
	}
}
