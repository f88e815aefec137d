package models

type Variable map[string]string

type WorkflowFile struct {
	Trigger Trigger `yaml:"trigger"`
	Jobs    []Job   `yaml:"jobs" validate:"required,dive"`
}

// Trigger declares when a workflow run should start. Manual allows runs to be
// started by hand. Paths holds glob patterns (`**` allowed) matched against
// the changed files of a push.
type Trigger struct {
	Manual bool     `yaml:"manual"`
	Paths  []string `yaml:"paths"`
}

type Job struct {
	Name      string     `yaml:"name" validate:"required"`
	Variables []Variable `yaml:"variables"`
	Steps     []Step     `yaml:"steps" validate:"required,dive"`
}

// Step is one of checkout, tool install or run command. Exactly one field
// must be set, see Kind.
type Step struct {
	Checkout bool      `yaml:"checkout,omitempty"`
	Tool     *ToolSpec `yaml:"tool,omitempty"`
	Run      string    `yaml:"run,omitempty"`
}

// ToolSpec pins exactly one downloadable release asset. There is no version
// resolution: the (repo, tag, asset) triple must exist as declared.
type ToolSpec struct {
	Repo  string `yaml:"repo" validate:"required"`
	Tag   string `yaml:"tag" validate:"required"`
	Asset string `yaml:"asset" validate:"required"`
}

// Key identifies the spec for install caching.
func (t ToolSpec) Key() string {
	return t.Repo + "@" + t.Tag + "/" + t.Asset
}

type StepKind int

const (
	StepInvalid StepKind = iota
	StepCheckout
	StepInstallTool
	StepRunCommand
)

// Kind reports which step variant is set. A step with zero or more than one
// variants set is StepInvalid.
func (s Step) Kind() StepKind {
	kind := StepInvalid
	n := 0
	if s.Checkout {
		kind = StepCheckout
		n++
	}
	if s.Tool != nil {
		kind = StepInstallTool
		n++
	}
	if s.Run != "" {
		kind = StepRunCommand
		n++
	}
	if n != 1 {
		return StepInvalid
	}
	return kind
}
