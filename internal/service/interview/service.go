// Package interview runs interview rooms: it owns the room registry, drives
// each room through its phases and is the only code that mutates room state.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	domain "github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/internal/observability"
	"github.com/zhouzirui/interview-room/backend/internal/service/ai/control"
	"github.com/zhouzirui/interview-room/backend/internal/service/coderun"
	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
	"github.com/zhouzirui/interview-room/backend/internal/service/vacancy"
)

var (
	// ErrRoomNotFound reports an id that was never registered or has been evicted.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomStopped reports a room that is being finalized. It matches ErrRoomNotFound.
	ErrRoomStopped = fmt.Errorf("%w: room stopped", ErrRoomNotFound)
	// ErrNoTask reports an operation that needs a current task before one was issued.
	ErrNoTask = errors.New("no task has been issued")
	// ErrNoSolution reports a solution check before any solution was sent.
	ErrNoSolution = errors.New("no solution has been submitted")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStreamClosed is returned by Recv on a phase stream closed before EOF.
	ErrStreamClosed = errors.New("stream closed before completion")
)

// Phases is the language model surface a room needs. *ai.Gateway implements it.
type Phases interface {
	Plan(ctx context.Context, v domain.Vacancy) (string, error)
	Welcome(ctx context.Context, v domain.Vacancy, history []domain.Message) (tagstream.Reader, error)
	Task(ctx context.Context, v domain.Vacancy, history []domain.Message) (domain.Task, tagstream.Reader, error)
	Reply(ctx context.Context, v domain.Vacancy, history []domain.Message, task domain.Task) (control.Reply, tagstream.Reader, error)
	SolutionCheck(ctx context.Context, v domain.Vacancy, history []domain.Message, task domain.Task, suite *domain.CodeTestSuite, stats domain.CodeTestMetrics) (control.Reply, tagstream.Reader, error)
	TestSuite(ctx context.Context, v domain.Vacancy, task domain.Task, taskIndex int) (*domain.CodeTestSuite, error)
	Assessment(ctx context.Context, v domain.Vacancy, history []domain.Message, raw domain.RawMetrics) (domain.Assessment, error)
	Verdict(ctx context.Context, v domain.Vacancy, history []domain.Message, raw domain.RawMetrics, a domain.Assessment) (domain.Verdict, error)
}

// Service is the room orchestrator. One long-lived instance serves every room.
type Service struct {
	registry        *Registry
	phases          Phases
	vacancies       vacancy.Service
	runner          coderun.Runner
	parallelism     int
	defaultDuration time.Duration
	drainTimeout    time.Duration
	validate        *validator.Validate
	now             func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRunner enables test-suite execution for code tasks.
func WithRunner(runner coderun.Runner, parallelism int) Option {
	return func(s *Service) {
		s.runner = runner
		if parallelism > 0 {
			s.parallelism = parallelism
		}
	}
}

// WithDefaultDuration sets the lifetime of rooms whose vacancy has none.
func WithDefaultDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

// WithDrainTimeout bounds how long a stop waits for an open phase stream.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires the orchestrator.
func NewService(phases Phases, vacancies vacancy.Service, opts ...Option) *Service {
	s := &Service{
		registry:        NewRegistry(),
		phases:          phases,
		vacancies:       vacancies,
		parallelism:     4,
		defaultDuration: 90 * time.Minute,
		drainTimeout:    30 * time.Second,
		validate:        validator.New(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the room registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// CreateRoomRequest identifies the vacancy and the candidate.
type CreateRoomRequest struct {
	VacancyID   string             `json:"vacancyId" validate:"required"`
	Interviewee domain.Interviewee `json:"interviewee"`
}

// CreateRoom fetches the vacancy, generates the interview plan and registers
// the room. The room stops by itself once the vacancy duration elapses.
func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) (domain.Room, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	log.Printf("[room] creating room for vacancy=%s", req.VacancyID)
	v, err := s.vacancies.Get(ctx, req.VacancyID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("fetch vacancy %s: %w", req.VacancyID, err)
	}
	if v.Duration <= 0 {
		v.Duration = s.defaultDuration
	}

	plan, err := s.phases.Plan(ctx, v)
	if err != nil {
		return domain.Room{}, fmt.Errorf("generate interview plan: %w", err)
	}
	v.InterviewPlan = plan

	now := s.now()
	room := domain.Room{
		ID:          uuid.NewString(),
		VacancyID:   req.VacancyID,
		Vacancy:     v,
		Interviewee: req.Interviewee,
		State:       domain.StateReady,
		History:     make([]domain.Message, 0, 32),
		CreatedAt:   now,
		LastTaskAt:  now,
	}

	e := newEntry(room)
	id := room.ID
	s.registry.add(e)
	observability.RoomOpened()
	e.arm(v.Duration, func() {
		if err := s.stop(context.Background(), id, "expired"); err != nil {
			log.Printf("[room] expiry stop for room=%s failed: %v", id, err)
		}
	})

	log.Printf("[room] created room=%s vacancy=%s duration=%s", id, req.VacancyID, v.Duration)
	return e.snapshot(), nil
}

// Room returns a snapshot of the room.
func (s *Service) Room(_ context.Context, id string) (domain.Room, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return domain.Room{}, err
	}
	if e.stopped.Load() {
		return domain.Room{}, ErrRoomStopped
	}
	return e.snapshot(), nil
}

// CurrentTask returns the type and language of the most recent task.
func (s *Service) CurrentTask(_ context.Context, id string) (domain.TaskMetadata, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return domain.TaskMetadata{}, err
	}
	if e.stopped.Load() {
		return domain.TaskMetadata{}, ErrRoomStopped
	}
	e.mu.RLock()
	task, ok := e.room.CurrentTask()
	e.mu.RUnlock()
	if !ok {
		return domain.TaskMetadata{}, ErrNoTask
	}
	return task.Metadata(), nil
}

// lock resolves a live room and takes its phase lock.
func (s *Service) lock(ctx context.Context, id string) (*entry, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	if e.stopped.Load() {
		e.release()
		return nil, ErrRoomStopped
	}
	return e, nil
}

// GenerateWelcomeMessage streams the greeting. The message is committed to
// the history when the stream reaches EOF.
func (s *Service) GenerateWelcomeMessage(ctx context.Context, id string) (tagstream.Reader, error) {
	e, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}

	body, err := s.phases.Welcome(ctx, e.room.Vacancy, e.room.History)
	if err != nil {
		e.release()
		log.Printf("[room] welcome for room=%s failed: %v", id, err)
		return nil, fmt.Errorf("welcome: %w", err)
	}

	return newCommitReader(e, "welcome", body, func(content string) {
		e.update(func(room *domain.Room) {
			room.History = append(room.History, domain.Message{
				Role:    domain.RoleInterviewer,
				Type:    domain.TypeResponse,
				Content: content,
			})
			room.State = domain.StateWelcomed
		})
	}), nil
}

// SendQuestion appends a candidate question.
func (s *Service) SendQuestion(ctx context.Context, id, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: question text is required", ErrInvalidInput)
	}
	e, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer e.release()

	e.update(func(room *domain.Room) {
		room.History = append(room.History, domain.Message{
			Role:    domain.RoleCandidate,
			Type:    domain.TypeQuestion,
			Content: text,
		})
		room.State = domain.StateAwaitingReply
	})
	return nil
}

// SendSolution records a submission for the current task. Code submitted
// without a language inherits the task language.
func (s *Service) SendSolution(ctx context.Context, id string, solution domain.Solution) error {
	if err := s.validate.StructCtx(ctx, solution); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	e, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer e.release()

	task, ok := e.room.CurrentTask()
	if !ok {
		return ErrNoTask
	}
	if solution.Type == domain.SolutionCode && solution.Language == domain.LanguageNone {
		solution.Language = task.Language
	}

	e.update(func(room *domain.Room) {
		room.Solutions = append(room.Solutions, solution)
		room.Raw.CopyPasteSuspicion += solution.SuspiciousPastes
		room.History = append(room.History, domain.Message{
			Role:    domain.RoleCandidate,
			Type:    domain.TypeSolution,
			Content: solution.Content,
		})
		room.State = domain.StateAwaitingReply
	})
	log.Printf("[room] solution for room=%s type=%s language=%s", id, solution.Type, solution.Language)
	return nil
}

// GetResponse streams the interviewer's reply to the latest candidate
// message. Before any task is issued the reply is framed as a theory
// discussion.
func (s *Service) GetResponse(ctx context.Context, id string) (tagstream.Reader, error) {
	e, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}

	task, ok := e.room.CurrentTask()
	if !ok {
		task = domain.NewTask(domain.TaskTheory, domain.LanguageNone, "")
	}

	reply, body, err := s.phases.Reply(ctx, e.room.Vacancy, e.room.History, task)
	if err != nil {
		e.release()
		log.Printf("[room] reply for room=%s failed: %v", id, err)
		return nil, fmt.Errorf("reply: %w", err)
	}
	return newCommitReader(e, "reply", body, s.commitReply(e, reply, nil)), nil
}

// GetSolutionResponse streams the interviewer's review of the latest
// solution. For code tasks with a runner configured the solution is first
// executed against the task's test suite and the results drive the review.
func (s *Service) GetSolutionResponse(ctx context.Context, id string) (tagstream.Reader, error) {
	e, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}

	task, ok := e.room.CurrentTask()
	if !ok {
		e.release()
		return nil, ErrNoTask
	}
	solution, ok := e.room.LastSolution()
	if !ok {
		e.release()
		return nil, ErrNoSolution
	}

	if s.runner == nil || task.Type != domain.TaskCode || solution.Type != domain.SolutionCode {
		reply, body, err := s.phases.Reply(ctx, e.room.Vacancy, e.room.History, task)
		if err != nil {
			e.release()
			log.Printf("[room] solution reply for room=%s failed: %v", id, err)
			return nil, fmt.Errorf("solution reply: %w", err)
		}
		return newCommitReader(e, "solution_reply", body, s.commitReply(e, reply, nil)), nil
	}

	checked, err := s.runSolution(ctx, e, task, solution)
	if err != nil {
		e.release()
		log.Printf("[room] code run for room=%s failed: %v", id, err)
		return nil, err
	}

	reply, body, err := s.phases.SolutionCheck(ctx, e.room.Vacancy, e.room.History, task, checked.suite, checked.stats)
	if err != nil {
		e.release()
		log.Printf("[room] solution check for room=%s failed: %v", id, err)
		return nil, fmt.Errorf("solution check: %w", err)
	}
	return newCommitReader(e, "solution_check", body, s.commitReply(e, reply, &checked)), nil
}

type solutionRun struct {
	suite *domain.CodeTestSuite
	stats domain.CodeTestMetrics
}

// runSolution executes the latest solution against a copy of the active
// suite, generating the suite first when the current task has none.
func (s *Service) runSolution(ctx context.Context, e *entry, task domain.Task, solution domain.Solution) (solutionRun, error) {
	taskIndex := len(e.room.Tasks) - 1
	var suite *domain.CodeTestSuite
	if e.room.TestSuite != nil && e.room.TestSuite.TaskIndex == taskIndex {
		suite = e.room.TestSuite.Clone()
	} else {
		generated, err := s.phases.TestSuite(ctx, e.room.Vacancy, task, taskIndex)
		if err != nil {
			return solutionRun{}, fmt.Errorf("generate test suite: %w", err)
		}
		suite = generated
	}

	language := solution.Language
	if language == domain.LanguageNone {
		language = task.Language
	}
	attempt, err := coderun.RunSuite(ctx, s.runner, suite, language, solution.Content, s.parallelism)
	if err != nil {
		return solutionRun{}, fmt.Errorf("run test suite: %w", err)
	}
	return solutionRun{suite: suite, stats: coderun.Add(e.room.CodeStats, attempt)}, nil
}

// commitReply reclassifies the latest candidate message from the control
// block, then appends the interviewer message.
func (s *Service) commitReply(e *entry, reply control.Reply, run *solutionRun) func(string) {
	return func(content string) {
		e.update(func(room *domain.Room) {
			for i := len(room.History) - 1; i >= 0; i-- {
				if room.History[i].Role == domain.RoleCandidate {
					room.History[i].Type = reply.UserType
					break
				}
			}
			room.History = append(room.History, domain.Message{
				Role:    domain.RoleInterviewer,
				Type:    reply.AssistantType,
				Content: content,
			})
			if run != nil {
				room.TestSuite = run.suite
				room.CodeStats = run.stats
			}
			room.State = domain.StateTaskPending
		})
	}
}

// NewTask streams the next task. The task type and language are decided
// before the first fragment; the description is committed at EOF.
func (s *Service) NewTask(ctx context.Context, id string) (domain.TaskMetadata, tagstream.Reader, error) {
	e, err := s.lock(ctx, id)
	if err != nil {
		return domain.TaskMetadata{}, nil, err
	}

	task, body, err := s.phases.Task(ctx, e.room.Vacancy, e.room.History)
	if err != nil {
		e.release()
		log.Printf("[room] task for room=%s failed: %v", id, err)
		return domain.TaskMetadata{}, nil, fmt.Errorf("task: %w", err)
	}

	return task.Metadata(), newCommitReader(e, "task", body, func(content string) {
		issued := domain.NewTask(task.Type, task.Language, content)
		var count int
		e.update(func(room *domain.Room) {
			room.History = append(room.History, domain.Message{
				Role:    domain.RoleInterviewer,
				Type:    domain.TypeTask,
				Content: content,
			})
			room.Tasks = append(room.Tasks, issued)
			room.Vacancy.Tasks = append(room.Vacancy.Tasks, content)
			room.LastTaskAt = s.now()
			room.TestSuite = nil
			room.State = domain.StateTaskPending
			count = len(room.Tasks)
		})
		log.Printf("[room] issued task #%d for room=%s type=%s language=%s", count, id, issued.Type, issued.Language)
	}), nil
}
