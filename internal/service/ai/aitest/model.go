// Package aitest provides a scripted chat model and a compact prompt manifest
// for tests that drive the gateway without a real provider.
package aitest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/interview-room/backend/internal/service/ai"
)

const phasePrefix = "phase="

var userTemplates = map[ai.Phase]string{
	ai.PhasePlan:          "{position}|{duration_minutes}",
	ai.PhaseWelcome:       "{chat_history}",
	ai.PhaseTask:          "{supported_languages}\n{chat_history}",
	ai.PhaseReply:         "{task_type}|{task_description}\n{chat_history}",
	ai.PhaseSolutionCheck: "{test_results}\n{code_stats}\n{chat_history}",
	ai.PhaseTestSuite:     "{task_language}|{task_description}",
	ai.PhaseAssessment:    "{metrics_block1}",
	ai.PhaseVerdict:       "{metrics_block2}",
}

// Manifest returns prompts whose system message names the phase, so
// ScriptedModel can route each call.
func Manifest() *ai.Manifest {
	m := &ai.Manifest{Version: 1, Phases: make(map[ai.Phase]ai.PromptTemplate, len(ai.Phases))}
	for _, phase := range ai.Phases {
		m.Phases[phase] = ai.PromptTemplate{System: phasePrefix + string(phase), User: userTemplates[phase]}
	}
	return m
}

// ScriptedModel replays queued outputs per phase. The last queued output of a
// phase is reused once the queue drains.
type ScriptedModel struct {
	mu      sync.Mutex
	scripts map[ai.Phase][][]string
	delays  map[ai.Phase]time.Duration
	calls   []ai.Phase
	prompts map[ai.Phase][]string
	fail    map[ai.Phase]error
}

// NewScriptedModel returns an empty model. Calls to unscripted phases fail.
func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{
		scripts: make(map[ai.Phase][][]string),
		delays:  make(map[ai.Phase]time.Duration),
		prompts: make(map[ai.Phase][]string),
		fail:    make(map[ai.Phase]error),
	}
}

// On queues one output for phase, delivered as the given fragments when streamed.
func (m *ScriptedModel) On(phase ai.Phase, fragments ...string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[phase] = append(m.scripts[phase], fragments)
	return m
}

// Reset drops every output queued for phase.
func (m *ScriptedModel) Reset(phase ai.Phase) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scripts, phase)
	return m
}

// Delay sleeps before every streamed fragment of phase.
func (m *ScriptedModel) Delay(phase ai.Phase, d time.Duration) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[phase] = d
	return m
}

// Fail makes every call to phase return err mid-stream, after its fragments.
func (m *ScriptedModel) Fail(phase ai.Phase, err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[phase] = err
	return m
}

// Calls returns the phases invoked so far, in order.
func (m *ScriptedModel) Calls() []ai.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Phase(nil), m.calls...)
}

// Prompts returns the rendered user prompts sent for phase.
func (m *ScriptedModel) Prompts(phase ai.Phase) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts[phase]...)
}

func (m *ScriptedModel) next(input []*schema.Message) (ai.Phase, []string, time.Duration, error) {
	var phase ai.Phase
	var user strings.Builder
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			phase = ai.Phase(strings.TrimPrefix(msg.Content, phasePrefix))
		case schema.User:
			user.WriteString(msg.Content)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, phase)
	m.prompts[phase] = append(m.prompts[phase], user.String())

	queue := m.scripts[phase]
	if len(queue) == 0 {
		return phase, nil, 0, fmt.Errorf("no script for phase %q", phase)
	}
	out := queue[0]
	if len(queue) > 1 {
		m.scripts[phase] = queue[1:]
	}
	return phase, out, m.delays[phase], nil
}

// Generate returns the next scripted output joined into one message.
func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	phase, fragments, delay, err := m.next(input)
	if err != nil {
		return nil, err
	}
	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}
	m.mu.Lock()
	failure := m.fail[phase]
	m.mu.Unlock()
	if failure != nil {
		return nil, failure
	}
	return schema.AssistantMessage(strings.Join(fragments, ""), nil), nil
}

// Stream emits the next scripted output fragment by fragment.
func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	phase, fragments, delay, err := m.next(input)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	failure := m.fail[phase]
	m.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](len(fragments) + 1)
	go func() {
		defer sw.Close()
		for _, fragment := range fragments {
			if err := sleep(ctx, delay); err != nil {
				sw.Send(nil, err)
				return
			}
			if closed := sw.Send(schema.AssistantMessage(fragment, nil), nil); closed {
				return
			}
		}
		if failure != nil {
			sw.Send(nil, failure)
		}
	}()
	return sr, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
