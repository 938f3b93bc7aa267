package interview_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/internal/service/ai"
	"github.com/zhouzirui/interview-room/backend/internal/service/ai/aitest"
	"github.com/zhouzirui/interview-room/backend/internal/service/interview"
	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
	"github.com/zhouzirui/interview-room/backend/internal/service/vacancy"
)

const (
	assessmentJSON = `{"summary":"solid","clarity_score":4,"completeness_score":3,"feedback_response":"accepts hints","tech_fit_level":"high","tech_fit_comment":"knows the stack"}`
	verdictJSON    = `{"strengths":"clear code","weaknesses":"few tests","cheating_summary":"none","seniority_guess":"middle","recommendation":"hire"}`
	taskCtrl       = `<ctrl>{"task_type":"code","task_language":"python"}</ctrl>`
	solutionCtrl   = `<ctrl>{"user_type":"solution","assistant_type":"check_solution"}</ctrl>`
)

type harness struct {
	t     *testing.T
	svc   *interview.Service
	model *aitest.ScriptedModel
	store *vacancy.MemoryStore
}

func newHarness(t *testing.T, opts ...interview.Option) *harness {
	t.Helper()
	m := aitest.NewScriptedModel()
	m.On(ai.PhasePlan, "<think>draft the plan</think>", "1. warm-up\n", "2. coding")
	m.On(ai.PhaseWelcome, "Hello, ", "Ann!")
	m.On(ai.PhaseTask, taskCtrl, "Reverse ", "a string.")
	m.On(ai.PhaseAssessment, assessmentJSON)
	m.On(ai.PhaseVerdict, verdictJSON)

	gw, err := ai.NewGateway(context.Background(), m, aitest.Manifest())
	require.NoError(t, err)

	store := vacancy.NewMemoryStore(vacancy.Seed())
	return &harness{t: t, svc: interview.NewService(gw, store, opts...), model: m, store: store}
}

func (h *harness) createRoom(t *testing.T) domain.Room {
	t.Helper()
	room, err := h.svc.CreateRoom(context.Background(), interview.CreateRoomRequest{
		VacancyID:   "go-backend",
		Interviewee: domain.Interviewee{Name: "Ann", Surname: "Lee", ResumeLink: "https://example.com/cv"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.svc.StopRoom(context.Background(), room.ID) })
	return room
}

func (h *harness) drain(r tagstream.Reader, err error) string {
	h.t.Helper()
	require.NoError(h.t, err)
	text, err := tagstream.Collect(r)
	require.NoError(h.t, err)
	return text
}

func TestEndToEndHistoryIsChronological(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.model.On(ai.PhaseReply, solutionCtrl, "Looks ", "good.")

	room := h.createRoom(t)
	assert.Equal(t, "1. warm-up\n2. coding", room.Vacancy.InterviewPlan)
	assert.Equal(t, domain.StateReady, room.State)
	assert.Equal(t, 60*time.Minute, room.Vacancy.Duration)

	assert.Equal(t, "Hello, Ann!", h.drain(h.svc.GenerateWelcomeMessage(ctx, room.ID)))

	meta, body, err := h.svc.NewTask(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskMetadata{Type: domain.TaskCode, Language: domain.LanguagePython}, meta)
	assert.Equal(t, "Reverse a string.", h.drain(body, nil))

	current, err := h.svc.CurrentTask(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, meta, current)

	require.NoError(t, h.svc.SendSolution(ctx, room.ID, domain.Solution{
		Content:          "print(input()[::-1])",
		Type:             domain.SolutionCode,
		SuspiciousPastes: 2,
	}))
	assert.Equal(t, "Looks good.", h.drain(h.svc.GetSolutionResponse(ctx, room.ID)))

	snap, err := h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	want := []domain.Message{
		{Role: domain.RoleInterviewer, Type: domain.TypeResponse, Content: "Hello, Ann!"},
		{Role: domain.RoleInterviewer, Type: domain.TypeTask, Content: "Reverse a string."},
		{Role: domain.RoleCandidate, Type: domain.TypeSolution, Content: "print(input()[::-1])"},
		{Role: domain.RoleInterviewer, Type: domain.TypeCheckSolution, Content: "Looks good."},
	}
	assert.Equal(t, want, snap.History)
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, []string{"Reverse a string."}, snap.Vacancy.Tasks)
	require.Len(t, snap.Solutions, 1)
	assert.Equal(t, domain.LanguagePython, snap.Solutions[0].Language)

	require.NoError(t, h.svc.StopRoom(ctx, room.ID))
	require.NoError(t, h.svc.StopRoom(ctx, room.ID))

	_, err = h.svc.Room(ctx, room.ID)
	assert.ErrorIs(t, err, interview.ErrRoomNotFound)
	assert.Equal(t, 0, h.svc.Registry().Len())

	results := h.store.Results("go-backend")
	require.Len(t, results, 1)
	assert.Equal(t, "Ann", results[0].Name)
	assert.Contains(t, results[0].Metrics, "Answers count: 1")
	assert.Contains(t, results[0].Metrics, "Copy-paste suspicion: 2")
	assert.Contains(t, results[0].Metrics, "Tech fit level: high")
	assert.Contains(t, results[0].Metrics, "Recommendation: hire")
	assert.Len(t, results[0].History, 4)

	assert.Equal(t, []ai.Phase{
		ai.PhasePlan, ai.PhaseWelcome, ai.PhaseTask, ai.PhaseReply, ai.PhaseAssessment, ai.PhaseVerdict,
	}, h.model.Calls())
}

func TestGetResponseReclassifiesCandidateMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.model.On(ai.PhaseReply, `<ctrl>{"user_type":"answer","assistant_type":"hint"}</ctrl>`, "Think about ", "slices.")
	room := h.createRoom(t)

	require.NoError(t, h.svc.SendQuestion(ctx, room.ID, "I would use a loop"))
	assert.Equal(t, "Think about slices.", h.drain(h.svc.GetResponse(ctx, room.ID)))

	snap, err := h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, snap.History, 2)
	assert.Equal(t, domain.Message{Role: domain.RoleCandidate, Type: domain.TypeAnswer, Content: "I would use a loop"}, snap.History[0])
	assert.Equal(t, domain.TypeHint, snap.History[1].Type)

	prompts := h.model.Prompts(ai.PhaseReply)
	require.NotEmpty(t, prompts)
	assert.True(t, strings.HasPrefix(prompts[len(prompts)-1], "theory|"))
}

func TestConcurrentPhasesDoNotInterleave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.model.On(ai.PhaseReply, solutionCtrl, "Looks ", "good.").Delay(ai.PhaseReply, 20*time.Millisecond)
	room := h.createRoom(t)

	require.NoError(t, h.svc.SendQuestion(ctx, room.ID, "What is a goroutine?"))
	reply, err := h.svc.GetResponse(ctx, room.ID)
	require.NoError(t, err)

	var taskReturned atomic.Bool
	taskDone := make(chan string, 1)
	go func() {
		_, body, err := h.svc.NewTask(ctx, room.ID)
		taskReturned.Store(true)
		if err != nil {
			taskDone <- "error: " + err.Error()
			return
		}
		text, err := tagstream.Collect(body)
		if err != nil {
			taskDone <- "error: " + err.Error()
			return
		}
		taskDone <- text
	}()

	time.Sleep(10 * time.Millisecond)
	assert.False(t, taskReturned.Load(), "task must wait for the reply stream")

	assert.Equal(t, "Looks good.", h.drain(reply, nil))
	select {
	case text := <-taskDone:
		assert.Equal(t, "Reverse a string.", text)
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	snap, err := h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	types := make([]domain.MessageType, 0, len(snap.History))
	for _, msg := range snap.History {
		types = append(types, msg.Type)
	}
	assert.Equal(t, []domain.MessageType{domain.TypeSolution, domain.TypeCheckSolution, domain.TypeTask}, types)
	assert.Equal(t, []ai.Phase{ai.PhasePlan, ai.PhaseReply, ai.PhaseTask}, h.model.Calls())
}

func TestClosedStreamCommitsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t)

	body, err := h.svc.GenerateWelcomeMessage(ctx, room.ID)
	require.NoError(t, err)
	first, err := body.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hello, ", first)
	body.Close()

	snap, err := h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.History)

	// The room lock was released by Close.
	lockCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.svc.SendQuestion(lockCtx, room.ID, "still there?"))
}

func TestMidStreamFailureLeavesHistoryUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	upstream := errors.New("connection reset")
	h.model.Fail(ai.PhaseWelcome, upstream)
	room := h.createRoom(t)

	body, err := h.svc.GenerateWelcomeMessage(ctx, room.ID)
	require.NoError(t, err)
	_, err = tagstream.Collect(body)
	assert.ErrorIs(t, err, upstream)

	_, err = body.Recv()
	assert.ErrorIs(t, err, upstream, "a retried Recv must not look like a clean end")

	snap, err := h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.History)
}

func TestRecvAfterCloseReportsClosedStream(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.createRoom(t)

	body, err := h.svc.GenerateWelcomeMessage(ctx, room.ID)
	require.NoError(t, err)
	body.Close()
	_, err = body.Recv()
	assert.ErrorIs(t, err, interview.ErrStreamClosed)
}

func TestStopFinalizesPastAbandonedStream(t *testing.T) {
	h := newHarness(t, interview.WithDrainTimeout(50*time.Millisecond))
	ctx := context.Background()
	room := h.createRoom(t)

	body, err := h.svc.GenerateWelcomeMessage(ctx, room.ID)
	require.NoError(t, err)
	_, err = body.Recv()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- h.svc.StopRoom(ctx, room.ID) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop blocked on an undrained stream")
	}
	assert.Len(t, h.store.Results("go-backend"), 1)
	assert.Equal(t, 0, h.svc.Registry().Len())

	_, err = tagstream.Collect(body)
	require.NoError(t, err)
	results := h.store.Results("go-backend")
	assert.Empty(t, results[0].History)
}

func TestMissingControlBlockAbortsTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.model.On(ai.PhaseTask, "Just a task without metadata")
	room := h.createRoom(t)

	// First queued task output still carries a control block.
	_, body, err := h.svc.NewTask(ctx, room.ID)
	h.drain(body, err)

	_, _, err = h.svc.NewTask(ctx, room.ID)
	assert.ErrorIs(t, err, tagstream.ErrMissingControl)

	snap, err := h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 1)
	assert.Len(t, snap.History, 1)
}

func TestOperationErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateRoom(ctx, interview.CreateRoomRequest{})
	assert.ErrorIs(t, err, interview.ErrInvalidInput)

	_, err = h.svc.CreateRoom(ctx, interview.CreateRoomRequest{VacancyID: "unknown"})
	assert.ErrorIs(t, err, vacancy.ErrNotFound)

	_, err = h.svc.GenerateWelcomeMessage(ctx, "missing")
	assert.ErrorIs(t, err, interview.ErrRoomNotFound)
	assert.NoError(t, h.svc.StopRoom(ctx, "missing"))

	room := h.createRoom(t)
	_, err = h.svc.CurrentTask(ctx, room.ID)
	assert.ErrorIs(t, err, interview.ErrNoTask)

	err = h.svc.SendSolution(ctx, room.ID, domain.Solution{Content: "x", Type: domain.SolutionCode})
	assert.ErrorIs(t, err, interview.ErrNoTask)

	err = h.svc.SendSolution(ctx, room.ID, domain.Solution{Content: "x", Type: "binary"})
	assert.ErrorIs(t, err, interview.ErrInvalidInput)

	assert.ErrorIs(t, h.svc.SendQuestion(ctx, room.ID, "  "), interview.ErrInvalidInput)

	_, body, err := h.svc.NewTask(ctx, room.ID)
	h.drain(body, err)
	_, err = h.svc.GetSolutionResponse(ctx, room.ID)
	assert.ErrorIs(t, err, interview.ErrNoSolution)
}

func TestRoomExpires(t *testing.T) {
	m := aitest.NewScriptedModel()
	m.On(ai.PhasePlan, "plan")
	m.On(ai.PhaseAssessment, assessmentJSON)
	m.On(ai.PhaseVerdict, verdictJSON)
	gw, err := ai.NewGateway(context.Background(), m, aitest.Manifest())
	require.NoError(t, err)

	store := vacancy.NewMemoryStore([]domain.Vacancy{{ID: "short", Position: "Intern", Duration: 30 * time.Millisecond}})
	svc := interview.NewService(gw, store)

	room, err := svc.CreateRoom(context.Background(), interview.CreateRoomRequest{VacancyID: "short"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return svc.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	_, err = svc.Room(context.Background(), room.ID)
	assert.ErrorIs(t, err, interview.ErrRoomNotFound)
	assert.NoError(t, svc.StopRoom(context.Background(), room.ID))
	assert.Len(t, store.Results("short"), 1)
}

func TestConcurrentStopsFinalizeOnce(t *testing.T) {
	m := aitest.NewScriptedModel()
	m.On(ai.PhasePlan, "plan")
	m.On(ai.PhaseAssessment, assessmentJSON)
	m.On(ai.PhaseVerdict, verdictJSON)
	gw, err := ai.NewGateway(context.Background(), m, aitest.Manifest())
	require.NoError(t, err)

	store := vacancy.NewMemoryStore([]domain.Vacancy{{ID: "short", Position: "Intern", Duration: 20 * time.Millisecond}})
	svc := interview.NewService(gw, store)
	room, err := svc.CreateRoom(context.Background(), interview.CreateRoomRequest{VacancyID: "short"})
	require.NoError(t, err)

	const callers = 20
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- svc.StopRoom(context.Background(), room.ID)
		}()
	}
	time.Sleep(15 * time.Millisecond)
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	// The expiry timer may have won the race; eviction follows the hand-off.
	require.Eventually(t, func() bool { return svc.Registry().Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, store.Results("short"), 1)

	calls := 0
	for _, phase := range m.Calls() {
		if phase == ai.PhaseAssessment {
			calls++
		}
	}
	assert.Equal(t, 1, calls)
}

func TestStopReportsPartialMetricsOnAssessmentFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.model.Reset(ai.PhaseAssessment).On(ai.PhaseAssessment, `{"summary":"x"}`)
	room := h.createRoom(t)

	err := h.svc.StopRoom(ctx, room.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assessment")
	assert.NotContains(t, h.model.Calls(), ai.PhaseVerdict)

	results := h.store.Results("go-backend")
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Metrics, "Answers count: 0")
	for _, line := range results[0].Metrics {
		assert.False(t, strings.HasPrefix(line, "Recommendation"), line)
	}
	assert.Equal(t, 0, h.svc.Registry().Len())
}

type reverseRunner struct {
	runs atomic.Int32
}

func (r *reverseRunner) Run(_ context.Context, language domain.Language, stdin, _ string) (domain.RunResult, error) {
	r.runs.Add(1)
	if language != domain.LanguagePython {
		return domain.RunResult{Status: domain.RunStatusCompileError, Exception: "wrong language"}, nil
	}
	out := []rune(stdin)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return domain.RunResult{Status: domain.RunStatusSuccess, Stdout: string(out) + "\n"}, nil
}

func TestSolutionResponseRunsTestSuite(t *testing.T) {
	runner := &reverseRunner{}
	h := newHarness(t, interview.WithRunner(runner, 2))
	ctx := context.Background()
	h.model.On(ai.PhaseTestSuite, `{"tests":[{"input_data":"abc","expected_output":"cba"},{"input_data":"xy","expected_output":"yx","is_hidden":"yes"}]}`)
	h.model.On(ai.PhaseSolutionCheck, solutionCtrl, "All tests ", "pass.")
	room := h.createRoom(t)

	_, body, err := h.svc.NewTask(ctx, room.ID)
	h.drain(body, err)
	require.NoError(t, h.svc.SendSolution(ctx, room.ID, domain.Solution{Content: "print(input()[::-1])", Type: domain.SolutionCode}))
	assert.Equal(t, "All tests pass.", h.drain(h.svc.GetSolutionResponse(ctx, room.ID)))

	snap, err := h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.TestSuite)
	assert.Equal(t, 0, snap.TestSuite.TaskIndex)
	require.Len(t, snap.TestSuite.Tests, 2)
	assert.Equal(t, "t1", snap.TestSuite.Tests[0].ID)
	assert.True(t, snap.TestSuite.Tests[1].Hidden)
	assert.True(t, snap.TestSuite.Tests[0].Passed)
	assert.Equal(t, domain.CodeTestMetrics{PassedTests: 2, Attempts: 1}, snap.CodeStats)
	assert.Equal(t, int32(2), runner.runs.Load())

	prompts := h.model.Prompts(ai.PhaseSolutionCheck)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "t1: passed")
	assert.Contains(t, prompts[0], "t2 (hidden): passed")

	// A second attempt reuses the suite and accumulates counters.
	require.NoError(t, h.svc.SendSolution(ctx, room.ID, domain.Solution{Content: "print(input())", Type: domain.SolutionCode}))
	h.drain(h.svc.GetSolutionResponse(ctx, room.ID))

	snap, err = h.svc.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CodeStats.Attempts)
	assert.Equal(t, 4, snap.CodeStats.PassedTests)
	assert.Equal(t, []ai.Phase{
		ai.PhasePlan, ai.PhaseTask, ai.PhaseTestSuite, ai.PhaseSolutionCheck, ai.PhaseSolutionCheck,
	}, h.model.Calls())
}
