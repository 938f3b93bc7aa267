// Package vacancy lists the vacancies served by the local store.
package vacancy

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/pkg/utils"
)

// Lister is implemented by stores that can enumerate vacancies.
type Lister interface {
	List() []interview.Vacancy
}

type vacancyView struct {
	ID              string   `json:"id"`
	Profession      string   `json:"profession"`
	Position        string   `json:"position"`
	Requirements    string   `json:"requirements"`
	TaskIdeas       []string `json:"taskIdeas"`
	DurationMinutes int      `json:"durationMinutes"`
}

// Handler vacancy服务的HTTP处理器
type Handler struct {
	vacancies Lister
}

// New 创建vacancy处理器
func New(vacancies Lister) *Handler {
	return &Handler{vacancies: vacancies}
}

// RegisterRoutes 注册vacancy相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/vacancies", h.handleListVacancies)
}

// handleListVacancies 列出所有vacancy
func (h *Handler) handleListVacancies(w http.ResponseWriter, r *http.Request) {
	items := h.vacancies.List()
	views := make([]vacancyView, 0, len(items))
	for _, v := range items {
		views = append(views, vacancyView{
			ID:              v.ID,
			Profession:      v.Profession,
			Position:        v.Position,
			Requirements:    v.Requirements,
			TaskIdeas:       v.TaskIdeas,
			DurationMinutes: v.DurationMinutes(),
		})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}
