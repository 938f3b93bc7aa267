// Package vacancy fetches vacancies and receives finished interview results.
package vacancy

import (
	"context"
	"errors"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

// ErrNotFound is returned when a vacancy id is unknown.
var ErrNotFound = errors.New("vacancy not found")

// Service is the vacancy collaborator used by the interview orchestrator.
type Service interface {
	Get(ctx context.Context, id string) (interview.Vacancy, error)
	SubmitResults(ctx context.Context, results Results) error
}

// Results is the payload reported when a room stops.
type Results struct {
	VacancyID  string   `json:"-"`
	Name       string   `json:"name"`
	Surname    string   `json:"surname"`
	ResumeLink string   `json:"resume_link"`
	Tasks      []string `json:"tasks"`
	Solutions  []string `json:"solutions"`
	History    []string `json:"chat_history"`
	Metrics    []string `json:"metrics"`
}

// ResultsFromRoom flattens a finished room into the reporting payload.
func ResultsFromRoom(room interview.Room) Results {
	res := Results{
		VacancyID:  room.VacancyID,
		Name:       room.Interviewee.Name,
		Surname:    room.Interviewee.Surname,
		ResumeLink: room.Interviewee.ResumeLink,
		Tasks:      make([]string, 0, len(room.Tasks)),
		Solutions:  make([]string, 0, len(room.Solutions)),
		History:    make([]string, 0, len(room.History)),
		Metrics:    append([]string(nil), room.Report...),
	}
	for _, task := range room.Tasks {
		res.Tasks = append(res.Tasks, task.Description)
	}
	for _, solution := range room.Solutions {
		res.Solutions = append(res.Solutions, solution.String())
	}
	for _, msg := range room.History {
		res.History = append(res.History, msg.String())
	}
	return res
}
