package interview

import "fmt"

// Role identifies who authored a chat message.
type Role string

const (
	RoleCandidate   Role = "candidate"
	RoleInterviewer Role = "interviewer"
)

// MessageType is the semantic classification of a chat message.
type MessageType string

const (
	TypeQuestion      MessageType = "question"
	TypeAnswer        MessageType = "answer"
	TypeHint          MessageType = "hint"
	TypeCheckSolution MessageType = "check_solution"
	TypeResponse      MessageType = "response"
	TypeOther         MessageType = "other"
	TypeTask          MessageType = "task"
	TypeSolution      MessageType = "solution"
)

// Message is one committed turn of the interview transcript.
type Message struct {
	Role    Role        `json:"role"`
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// String renders the message the way transcripts and reports show it.
func (m Message) String() string {
	label := "Interviewer"
	if m.Role == RoleCandidate {
		label = "Candidate"
	}
	return fmt.Sprintf("%s [%s]: %s", label, m.Type, m.Content)
}
