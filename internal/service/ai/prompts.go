package ai

import (
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"gopkg.in/yaml.v3"
)

// Phase names one language model step of the interview.
type Phase string

const (
	PhasePlan          Phase = "plan"
	PhaseWelcome       Phase = "welcome"
	PhaseTask          Phase = "task"
	PhaseReply         Phase = "reply"
	PhaseSolutionCheck Phase = "solution_check"
	PhaseTestSuite     Phase = "test_suite"
	PhaseAssessment    Phase = "metrics_b2"
	PhaseVerdict       Phase = "metrics_b3"
)

// Phases lists every phase in the order an interview reaches them.
var Phases = []Phase{
	PhasePlan,
	PhaseWelcome,
	PhaseTask,
	PhaseReply,
	PhaseSolutionCheck,
	PhaseTestSuite,
	PhaseAssessment,
	PhaseVerdict,
}

//go:embed prompts.yaml
var defaultManifest []byte

// PromptTemplate is the system/user pair for one phase.
type PromptTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Manifest maps phases to their templates.
type Manifest struct {
	Version int                      `yaml:"version"`
	Phases  map[Phase]PromptTemplate `yaml:"phases"`
}

// DefaultManifest parses the embedded prompt manifest.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(defaultManifest)
}

// ParseManifest decodes a YAML manifest and checks that every phase is present.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse prompt manifest: %w", err)
	}
	for _, phase := range Phases {
		tpl, ok := m.Phases[phase]
		if !ok {
			return nil, fmt.Errorf("prompt manifest: phase %q missing", phase)
		}
		if tpl.System == "" || tpl.User == "" {
			return nil, fmt.Errorf("prompt manifest: phase %q needs both system and user templates", phase)
		}
	}
	return &m, nil
}

// chatTemplate builds the eino template for one phase.
func (m *Manifest) chatTemplate(phase Phase) prompt.ChatTemplate {
	tpl := m.Phases[phase]
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(tpl.System),
		schema.UserMessage(tpl.User),
	)
}
