package interview

// TaskType distinguishes coding tasks from theory questions.
type TaskType string

const (
	TaskCode   TaskType = "code"
	TaskTheory TaskType = "theory"
)

// Language is a programming language supported by the code runner.
// The zero value means "no language".
type Language string

const (
	LanguageNone       Language = ""
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageCSharp     Language = "csharp"
	LanguagePHP        Language = "php"
	LanguageRuby       Language = "ruby"
	LanguageGo         Language = "go"
)

// SupportedLanguages lists every language a code task may target, in prompt order.
var SupportedLanguages = []Language{
	LanguagePython,
	LanguageJavaScript,
	LanguageJava,
	LanguageC,
	LanguageCPP,
	LanguageCSharp,
	LanguagePHP,
	LanguageRuby,
	LanguageGo,
}

// Task is an assignment issued to the candidate.
type Task struct {
	Type        TaskType `json:"type"`
	Language    Language `json:"language,omitempty"`
	Description string   `json:"description"`
}

// NewTask builds a task and enforces that theory tasks carry no language.
func NewTask(taskType TaskType, language Language, description string) Task {
	if taskType != TaskCode {
		taskType = TaskTheory
		language = LanguageNone
	}
	return Task{Type: taskType, Language: language, Description: description}
}

// Metadata returns the type/language pair exposed to clients.
func (t Task) Metadata() TaskMetadata {
	return TaskMetadata{Type: t.Type, Language: t.Language}
}

// TaskMetadata describes the current task without its description.
type TaskMetadata struct {
	Type     TaskType `json:"type"`
	Language Language `json:"language,omitempty"`
}
