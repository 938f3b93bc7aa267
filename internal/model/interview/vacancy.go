package interview

import (
	"fmt"
	"strings"
	"time"
)

// Vacancy is the snapshot of the position a room interviews for.
type Vacancy struct {
	ID            string        `json:"id"`
	Profession    string        `json:"profession"`
	Position      string        `json:"position"`
	Requirements  string        `json:"requirements"`
	Questions     string        `json:"questions,omitempty"`
	Tasks         []string      `json:"tasks"`
	TaskIdeas     []string      `json:"taskIdeas"`
	InterviewPlan string        `json:"interviewPlan,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// DurationMinutes returns the allotted duration in whole minutes, at least one.
// Unset durations fall back to 90 minutes.
func (v Vacancy) DurationMinutes() int {
	if v.Duration <= 0 {
		return 90
	}
	minutes := int(v.Duration / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// PromptText renders the vacancy for inclusion in prompts.
func (v Vacancy) PromptText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profession: %s\nPosition: %s\nRequirements: %s", v.Profession, v.Position, v.Requirements)
	if v.Questions != "" {
		fmt.Fprintf(&b, "\nQuestions: %s", v.Questions)
	}
	if len(v.Tasks) > 0 {
		fmt.Fprintf(&b, "\nTasks already issued:\n%s", BulletList(v.Tasks))
	}
	return b.String()
}

// Clone returns a deep copy so rooms never share slices with the vacancy source.
func (v Vacancy) Clone() Vacancy {
	v.Tasks = append([]string(nil), v.Tasks...)
	v.TaskIdeas = append([]string(nil), v.TaskIdeas...)
	return v
}

// Interviewee identifies the candidate.
type Interviewee struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	ResumeLink string `json:"resumeLink"`
}

// BulletList formats items as "- item" lines, or "(none)" when empty.
func BulletList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
