package control

import "github.com/zhouzirui/interview-room/backend/internal/model/interview"

// Keys carried by reply and task control blocks.
const (
	KeyUserType      = "user_type"
	KeyAssistantType = "assistant_type"
	KeyTaskType      = "task_type"
	KeyTaskLanguage  = "task_language"
)

// UserType maps the candidate-side classification. Unknown values become "other".
func UserType(value string) interview.MessageType {
	switch value {
	case "question":
		return interview.TypeQuestion
	case "answer":
		return interview.TypeAnswer
	case "solution":
		return interview.TypeSolution
	default:
		return interview.TypeOther
	}
}

// AssistantType maps the interviewer-side classification. Unknown values become "response".
func AssistantType(value string) interview.MessageType {
	switch value {
	case "hint":
		return interview.TypeHint
	case "check_solution":
		return interview.TypeCheckSolution
	default:
		return interview.TypeResponse
	}
}

// TaskType maps the task kind. Anything but "code" is a theory task.
func TaskType(value string) interview.TaskType {
	if value == "code" {
		return interview.TaskCode
	}
	return interview.TaskTheory
}

// TaskLanguage maps the task language. Unsupported values mean no language.
func TaskLanguage(value string) interview.Language {
	for _, lang := range interview.SupportedLanguages {
		if string(lang) == value {
			return lang
		}
	}
	return interview.LanguageNone
}

// Reply is the classification decoded from a reply-phase control block.
type Reply struct {
	UserType      interview.MessageType
	AssistantType interview.MessageType
}

// ClassifyReply reads the reply schema from m.
func ClassifyReply(m Mapping) Reply {
	return Reply{
		UserType:      UserType(m.String(KeyUserType)),
		AssistantType: AssistantType(m.String(KeyAssistantType)),
	}
}

// ClassifyTask reads the task schema from m and returns a task with an empty description.
func ClassifyTask(m Mapping) interview.Task {
	return interview.NewTask(TaskType(m.String(KeyTaskType)), TaskLanguage(m.String(KeyTaskLanguage)), "")
}
