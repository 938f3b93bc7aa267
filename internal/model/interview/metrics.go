package interview

import (
	"fmt"
	"time"
)

// RawMetrics are the counters computed locally when a room stops.
type RawMetrics struct {
	TimeSpent          time.Duration `json:"timeSpent"`
	TimePerTask        time.Duration `json:"timePerTask"`
	AnswersCount       int           `json:"answersCount"`
	CopyPasteSuspicion int           `json:"copyPasteSuspicion"`
}

// PromptText renders the block for inclusion in metrics prompts.
func (m RawMetrics) PromptText() string {
	return fmt.Sprintf(
		"time_spent_seconds: %d\ntime_per_task_seconds: %d\nanswers_count: %d\ncopy_paste_suspicion: %d",
		int(m.TimeSpent.Seconds()),
		int(m.TimePerTask.Seconds()),
		m.AnswersCount,
		m.CopyPasteSuspicion,
	)
}

// Lines renders the block as report lines.
func (m RawMetrics) Lines() []string {
	return []string{
		fmt.Sprintf("Time spent: %s", m.TimeSpent.Round(time.Second)),
		fmt.Sprintf("Time per task: %s", m.TimePerTask.Round(time.Second)),
		fmt.Sprintf("Answers count: %d", m.AnswersCount),
		fmt.Sprintf("Copy-paste suspicion: %d", m.CopyPasteSuspicion),
	}
}

// TechFitLevel grades how well the candidate matches the stack.
type TechFitLevel string

const (
	TechFitLow    TechFitLevel = "low"
	TechFitMedium TechFitLevel = "medium"
	TechFitHigh   TechFitLevel = "high"
)

// SeniorityGuess is the model's estimate of the candidate's level.
type SeniorityGuess string

const (
	SeniorityJunior SeniorityGuess = "junior"
	SeniorityMiddle SeniorityGuess = "middle"
	SenioritySenior SeniorityGuess = "senior"
)

// Recommendation is the final hiring verdict.
type Recommendation string

const (
	RecommendReject     Recommendation = "reject"
	RecommendDoubt      Recommendation = "doubt"
	RecommendHire       Recommendation = "hire"
	RecommendStrongHire Recommendation = "strong_hire"
)

// Assessment is the second metrics block: communication and technical fit.
type Assessment struct {
	Summary           string       `json:"summary"`
	ClarityScore      int          `json:"clarity_score"`
	CompletenessScore int          `json:"completeness_score"`
	FeedbackResponse  string       `json:"feedback_response"`
	TechFitLevel      TechFitLevel `json:"tech_fit_level"`
	TechFitComment    string       `json:"tech_fit_comment"`
}

// PromptText renders the block for the verdict prompt.
func (a Assessment) PromptText() string {
	return fmt.Sprintf(
		"summary: %s\nclarity_score: %d\ncompleteness_score: %d\nfeedback_response: %s\ntech_fit_level: %s\ntech_fit_comment: %s",
		a.Summary, a.ClarityScore, a.CompletenessScore, a.FeedbackResponse, a.TechFitLevel, a.TechFitComment,
	)
}

// Lines renders the block as report lines.
func (a Assessment) Lines() []string {
	return []string{
		"Summary: " + a.Summary,
		fmt.Sprintf("Clarity score: %d/5", a.ClarityScore),
		fmt.Sprintf("Completeness score: %d/5", a.CompletenessScore),
		"Feedback response: " + a.FeedbackResponse,
		"Tech fit level: " + string(a.TechFitLevel),
		"Tech fit comment: " + a.TechFitComment,
	}
}

// Verdict is the third metrics block: strengths, risks and the recommendation.
type Verdict struct {
	Strengths       string         `json:"strengths"`
	Weaknesses      string         `json:"weaknesses"`
	CheatingSummary string         `json:"cheating_summary"`
	SeniorityGuess  SeniorityGuess `json:"seniority_guess"`
	Recommendation  Recommendation `json:"recommendation"`
}

// Lines renders the block as report lines.
func (v Verdict) Lines() []string {
	return []string{
		"Strengths: " + v.Strengths,
		"Weaknesses: " + v.Weaknesses,
		"Cheating summary: " + v.CheatingSummary,
		"Seniority guess: " + string(v.SeniorityGuess),
		"Recommendation: " + string(v.Recommendation),
	}
}

// CodeTestMetrics aggregates code execution counters over the whole room.
type CodeTestMetrics struct {
	PassedTests   int `json:"passedTests"`
	FailedTests   int `json:"failedTests"`
	CompileErrors int `json:"compileErrors"`
	RuntimeErrors int `json:"runtimeErrors"`
	Attempts      int `json:"attempts"`
}

// Lines renders the counters as report lines.
func (c CodeTestMetrics) Lines() []string {
	return []string{
		fmt.Sprintf("Code runs: %d", c.Attempts),
		fmt.Sprintf("Tests passed: %d, failed: %d", c.PassedTests, c.FailedTests),
		fmt.Sprintf("Compile errors: %d, runtime errors: %d", c.CompileErrors, c.RuntimeErrors),
	}
}
