package interview

import (
	"fmt"
	"time"
)

// RoomState is the coarse lifecycle position of a room.
type RoomState string

const (
	StateCreating      RoomState = "creating"
	StateReady         RoomState = "ready"
	StateWelcomed      RoomState = "welcomed"
	StateTaskPending   RoomState = "task_pending"
	StateAwaitingReply RoomState = "awaiting_reply"
	StateStopped       RoomState = "stopped"
)

// SolutionType distinguishes submitted code from free-text answers.
type SolutionType string

const (
	SolutionCode SolutionType = "code"
	SolutionText SolutionType = "text"
)

// Solution is a candidate submission for the current task.
type Solution struct {
	Content          string       `json:"content" validate:"required"`
	Type             SolutionType `json:"type" validate:"required,oneof=code text"`
	Language         Language     `json:"language,omitempty"`
	SuspiciousPastes int          `json:"suspiciousPastes" validate:"gte=0"`
}

// String renders the solution for reports.
func (s Solution) String() string {
	return fmt.Sprintf("%s [%s]: %s", s.Type, s.Language, s.Content)
}

// Room captures one interviewee's end-to-end interview session.
type Room struct {
	ID          string          `json:"id"`
	VacancyID   string          `json:"vacancyId"`
	Vacancy     Vacancy         `json:"vacancy"`
	Interviewee Interviewee     `json:"interviewee"`
	State       RoomState       `json:"state"`
	History     []Message       `json:"history"`
	Tasks       []Task          `json:"tasks"`
	Solutions   []Solution      `json:"solutions"`
	Raw         RawMetrics      `json:"rawMetrics"`
	CodeStats   CodeTestMetrics `json:"codeStats"`
	TestSuite   *CodeTestSuite  `json:"testSuite,omitempty"`
	Report      []string        `json:"report,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	LastTaskAt  time.Time       `json:"lastTaskAt"`
}

// CurrentTask returns the most recently committed task.
func (r *Room) CurrentTask() (Task, bool) {
	if len(r.Tasks) == 0 {
		return Task{}, false
	}
	return r.Tasks[len(r.Tasks)-1], true
}

// LastSolution returns the most recent submission.
func (r *Room) LastSolution() (Solution, bool) {
	if len(r.Solutions) == 0 {
		return Solution{}, false
	}
	return r.Solutions[len(r.Solutions)-1], true
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (r *Room) Snapshot() Room {
	out := *r
	out.Vacancy = r.Vacancy.Clone()
	out.History = append([]Message(nil), r.History...)
	out.Tasks = append([]Task(nil), r.Tasks...)
	out.Solutions = append([]Solution(nil), r.Solutions...)
	out.Report = append([]string(nil), r.Report...)
	out.TestSuite = r.TestSuite.Clone()
	return out
}

// Transcript formats history as plain text for prompts.
func Transcript(history []Message) string {
	if len(history) == 0 {
		return "(empty)"
	}
	out := make([]byte, 0, 64*len(history))
	for i, msg := range history {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, msg.String()...)
	}
	return string(out)
}
