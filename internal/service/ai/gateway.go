package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/internal/observability"
	"github.com/zhouzirui/interview-room/backend/internal/service/ai/control"
	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
)

// Gateway runs the language model phases of an interview. Each phase renders
// its prompt, calls the chat model and routes the raw output through the tag
// stream parser so hidden reasoning never reaches a caller.
type Gateway struct {
	chains       map[Phase]compose.Runnable[map[string]any, *schema.Message]
	tracer       trace.Tracer
	historyLimit int
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithHistoryLimit caps how many recent messages conversational phases see.
// Metrics phases always receive the full transcript. Zero means unlimited.
func WithHistoryLimit(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.historyLimit = n
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// NewGateway compiles one chain per phase. A nil manifest selects the embedded prompts.
func NewGateway(ctx context.Context, chatModel model.BaseChatModel, manifest *Manifest, opts ...Option) (*Gateway, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if manifest == nil {
		m, err := DefaultManifest()
		if err != nil {
			return nil, err
		}
		manifest = m
	}

	g := &Gateway{
		chains: make(map[Phase]compose.Runnable[map[string]any, *schema.Message], len(Phases)),
		tracer: otel.Tracer("interview.ai"),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, phase := range Phases {
		chain := compose.NewChain[map[string]any, *schema.Message]()
		chain.AppendChatTemplate(manifest.chatTemplate(phase))
		chain.AppendChatModel(chatModel)

		runnable, err := chain.Compile(ctx, compose.WithGraphName("interview."+string(phase)))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s chain: %w", phase, err)
		}
		g.chains[phase] = runnable
	}
	return g, nil
}

// Plan generates the interview plan. The plan is collected in full before returning.
func (g *Gateway) Plan(ctx context.Context, v interview.Vacancy) (string, error) {
	ctx, call := g.begin(ctx, PhasePlan)
	raw, err := g.stream(ctx, PhasePlan, planVars(v))
	if err != nil {
		call.end(err)
		return "", err
	}
	plan, err := tagstream.Collect(tagstream.FilterHidden(raw))
	call.end(err)
	if err != nil {
		return "", fmt.Errorf("collect plan: %w", err)
	}
	log.Printf("[ai] generated plan for vacancy=%s, length=%d", v.ID, len(plan))
	return strings.TrimSpace(plan), nil
}

// Welcome streams the greeting with hidden reasoning removed.
func (g *Gateway) Welcome(ctx context.Context, v interview.Vacancy, history []interview.Message) (tagstream.Reader, error) {
	ctx, call := g.begin(ctx, PhaseWelcome)
	raw, err := g.stream(ctx, PhaseWelcome, welcomeVars(v, g.recent(history)))
	if err != nil {
		call.end(err)
		return nil, err
	}
	return call.track(tagstream.FilterHidden(raw)), nil
}

// Task streams the next task description. The task kind and language come
// from the control block and are known before the first body fragment.
func (g *Gateway) Task(ctx context.Context, v interview.Vacancy, history []interview.Message) (interview.Task, tagstream.Reader, error) {
	ctx, call := g.begin(ctx, PhaseTask)
	m, body, err := g.extract(ctx, call, taskVars(v, g.recent(history)))
	if err != nil {
		return interview.Task{}, nil, err
	}
	task := control.ClassifyTask(m)
	call.span.SetAttributes(
		attribute.String("interview.task_type", string(task.Type)),
		attribute.String("interview.task_language", string(task.Language)),
	)
	return task, call.track(body), nil
}

// Reply streams the interviewer's answer to the latest candidate message.
func (g *Gateway) Reply(ctx context.Context, v interview.Vacancy, history []interview.Message, task interview.Task) (control.Reply, tagstream.Reader, error) {
	ctx, call := g.begin(ctx, PhaseReply)
	m, body, err := g.extract(ctx, call, replyVars(v, g.recent(history), task))
	if err != nil {
		return control.Reply{}, nil, err
	}
	return classified(call, m, body)
}

// SolutionCheck streams feedback on a solution that was run against suite.
func (g *Gateway) SolutionCheck(ctx context.Context, v interview.Vacancy, history []interview.Message, task interview.Task, suite *interview.CodeTestSuite, stats interview.CodeTestMetrics) (control.Reply, tagstream.Reader, error) {
	ctx, call := g.begin(ctx, PhaseSolutionCheck)
	vars := replyVars(v, g.recent(history), task)
	vars["test_results"] = suite.PromptText()
	vars["code_stats"] = strings.Join(stats.Lines(), "\n")
	m, body, err := g.extract(ctx, call, vars)
	if err != nil {
		return control.Reply{}, nil, err
	}
	return classified(call, m, body)
}

// TestSuite asks the model for a test suite covering task.
func (g *Gateway) TestSuite(ctx context.Context, v interview.Vacancy, task interview.Task, taskIndex int) (*interview.CodeTestSuite, error) {
	ctx, call := g.begin(ctx, PhaseTestSuite)
	raw, err := g.complete(ctx, PhaseTestSuite, testSuiteVars(v, task))
	if err != nil {
		call.end(err)
		return nil, err
	}
	suite, err := control.ParseTestSuite(raw, taskIndex)
	if err != nil {
		observability.ProtocolError(string(PhaseTestSuite), "decode")
	}
	call.end(err)
	return suite, err
}

// Assessment runs the second metrics block.
func (g *Gateway) Assessment(ctx context.Context, v interview.Vacancy, history []interview.Message, raw interview.RawMetrics) (interview.Assessment, error) {
	ctx, call := g.begin(ctx, PhaseAssessment)
	out, err := g.complete(ctx, PhaseAssessment, assessmentVars(v, history, raw))
	if err != nil {
		call.end(err)
		return interview.Assessment{}, err
	}
	a, err := control.ParseAssessment(out)
	if err != nil {
		observability.ProtocolError(string(PhaseAssessment), "decode")
	}
	call.end(err)
	return a, err
}

// Verdict runs the third metrics block, which builds on the assessment.
func (g *Gateway) Verdict(ctx context.Context, v interview.Vacancy, history []interview.Message, raw interview.RawMetrics, a interview.Assessment) (interview.Verdict, error) {
	ctx, call := g.begin(ctx, PhaseVerdict)
	vars := assessmentVars(v, history, raw)
	vars["metrics_block2"] = a.PromptText()
	out, err := g.complete(ctx, PhaseVerdict, vars)
	if err != nil {
		call.end(err)
		return interview.Verdict{}, err
	}
	verdict, err := control.ParseVerdict(out)
	if err != nil {
		observability.ProtocolError(string(PhaseVerdict), "decode")
	}
	call.end(err)
	return verdict, err
}

func classified(call *phaseCall, m control.Mapping, body tagstream.Reader) (control.Reply, tagstream.Reader, error) {
	reply := control.ClassifyReply(m)
	call.span.SetAttributes(
		attribute.String("interview.user_type", string(reply.UserType)),
		attribute.String("interview.assistant_type", string(reply.AssistantType)),
	)
	return reply, call.track(body), nil
}

// stream starts a phase and exposes its output as text fragments.
func (g *Gateway) stream(ctx context.Context, phase Phase, vars map[string]any) (tagstream.Reader, error) {
	msgs, err := g.chains[phase].Stream(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to stream %s phase: %w", phase, err)
	}
	return textStream(msgs), nil
}

// extract starts a phase whose output opens with a control block.
func (g *Gateway) extract(ctx context.Context, call *phaseCall, vars map[string]any) (control.Mapping, tagstream.Reader, error) {
	raw, err := g.stream(ctx, call.phase, vars)
	if err != nil {
		call.end(err)
		return nil, nil, err
	}
	m, body, err := tagstream.ExtractControl(raw)
	if err != nil {
		switch {
		case errors.Is(err, tagstream.ErrMissingControl):
			observability.ProtocolError(string(call.phase), "missing_ctrl")
		case errors.Is(err, tagstream.ErrUnterminatedControl):
			observability.ProtocolError(string(call.phase), "unterminated_ctrl")
		}
		call.end(err)
		return nil, nil, fmt.Errorf("%s phase: %w", call.phase, err)
	}
	return m, body, nil
}

// complete runs a phase without streaming and strips hidden reasoning.
func (g *Gateway) complete(ctx context.Context, phase Phase, vars map[string]any) (string, error) {
	msg, err := g.chains[phase].Invoke(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("failed to run %s phase: %w", phase, err)
	}
	return strings.TrimSpace(tagstream.StripHidden(msg.Content)), nil
}

// recent applies the history limit for conversational phases.
func (g *Gateway) recent(history []interview.Message) []interview.Message {
	if g.historyLimit <= 0 || len(history) <= g.historyLimit {
		return history
	}
	return history[len(history)-g.historyLimit:]
}

// textStream turns model chunks into their text content, skipping empty chunks.
func textStream(msgs *schema.StreamReader[*schema.Message]) tagstream.Reader {
	return schema.StreamReaderWithConvert(msgs, func(m *schema.Message) (string, error) {
		if m == nil || m.Content == "" {
			return "", schema.ErrNoValue
		}
		return m.Content, nil
	})
}

// phaseCall tracks the span and timing of one phase invocation.
type phaseCall struct {
	phase   Phase
	span    trace.Span
	started time.Time
	done    bool
}

func (g *Gateway) begin(ctx context.Context, phase Phase) (context.Context, *phaseCall) {
	ctx, span := g.tracer.Start(ctx, "ai."+string(phase),
		trace.WithAttributes(attribute.String("interview.phase", string(phase))))
	return ctx, &phaseCall{phase: phase, span: span, started: time.Now()}
}

func (c *phaseCall) end(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.finish(status, err)
}

func (c *phaseCall) finish(status string, err error) {
	if c.done {
		return
	}
	c.done = true
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	observability.ObservePhase(string(c.phase), status, c.started)
	c.span.End()
}

// track ends the phase when the body stream finishes or is abandoned.
func (c *phaseCall) track(r tagstream.Reader) tagstream.Reader {
	return &trackedReader{Reader: r, call: c}
}

type trackedReader struct {
	tagstream.Reader
	call *phaseCall
}

func (r *trackedReader) Recv() (string, error) {
	chunk, err := r.Reader.Recv()
	switch {
	case errors.Is(err, io.EOF):
		r.call.end(nil)
	case err != nil:
		r.call.end(err)
	}
	return chunk, err
}

func (r *trackedReader) Close() {
	r.Reader.Close()
	r.call.finish("aborted", nil)
}
