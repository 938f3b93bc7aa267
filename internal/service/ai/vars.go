package ai

import (
	"strings"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

const noPlanYet = "(no plan generated yet)"

func planVars(v interview.Vacancy) map[string]any {
	return map[string]any{
		"profession":       v.Profession,
		"position":         v.Position,
		"requirements":     v.Requirements,
		"questions":        v.Questions,
		"tasks":            interview.BulletList(v.Tasks),
		"task_ideas":       interview.BulletList(v.TaskIdeas),
		"interview_plan":   v.InterviewPlan,
		"duration_minutes": v.DurationMinutes(),
	}
}

func welcomeVars(v interview.Vacancy, history []interview.Message) map[string]any {
	plan := v.InterviewPlan
	if plan == "" {
		plan = noPlanYet
	}
	return map[string]any{
		"vacancy_info":   v.PromptText(),
		"interview_plan": plan,
		"chat_history":   interview.Transcript(history),
	}
}

func taskVars(v interview.Vacancy, history []interview.Message) map[string]any {
	vars := welcomeVars(v, history)
	vars["interview_plan"] = v.InterviewPlan
	vars["supported_languages"] = supportedLanguages()
	return vars
}

func replyVars(v interview.Vacancy, history []interview.Message, task interview.Task) map[string]any {
	return map[string]any{
		"vacancy_info":     v.PromptText(),
		"chat_history":     interview.Transcript(history),
		"task_type":        string(task.Type),
		"task_language":    languageLabel(task.Language),
		"task_description": task.Description,
	}
}

func testSuiteVars(v interview.Vacancy, task interview.Task) map[string]any {
	return map[string]any{
		"vacancy_info":     v.PromptText(),
		"task_language":    languageLabel(task.Language),
		"task_description": task.Description,
	}
}

func assessmentVars(v interview.Vacancy, history []interview.Message, raw interview.RawMetrics) map[string]any {
	return map[string]any{
		"vacancy_info":   v.PromptText(),
		"metrics_block1": raw.PromptText(),
		"chat_history":   interview.Transcript(history),
	}
}

func supportedLanguages() string {
	names := make([]string, 0, len(interview.SupportedLanguages))
	for _, lang := range interview.SupportedLanguages {
		names = append(names, string(lang))
	}
	return strings.Join(names, ", ")
}

func languageLabel(lang interview.Language) string {
	if lang == interview.LanguageNone {
		return "not specified"
	}
	return string(lang)
}
