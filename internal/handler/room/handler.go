// Package room exposes interview rooms over REST, with phase output streamed
// as Server-Sent Events.
package room

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/interview-room/backend/internal/handler/stream"
	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
	interviewService "github.com/zhouzirui/interview-room/backend/internal/service/interview"
	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
	"github.com/zhouzirui/interview-room/backend/pkg/utils"
)

// Rooms is the orchestrator surface the transport layer drives.
type Rooms interface {
	CreateRoom(ctx context.Context, req interviewService.CreateRoomRequest) (interview.Room, error)
	Room(ctx context.Context, id string) (interview.Room, error)
	CurrentTask(ctx context.Context, id string) (interview.TaskMetadata, error)
	GenerateWelcomeMessage(ctx context.Context, id string) (tagstream.Reader, error)
	SendQuestion(ctx context.Context, id, text string) error
	GetResponse(ctx context.Context, id string) (tagstream.Reader, error)
	SendSolution(ctx context.Context, id string, solution interview.Solution) error
	GetSolutionResponse(ctx context.Context, id string) (tagstream.Reader, error)
	NewTask(ctx context.Context, id string) (interview.TaskMetadata, tagstream.Reader, error)
	StopRoom(ctx context.Context, id string) error
}

// Handler 面试房间的HTTP处理器
type Handler struct {
	rooms Rooms
}

// New 创建房间处理器
func New(rooms Rooms) *Handler {
	return &Handler{rooms: rooms}
}

// RegisterRoutes 注册房间相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/rooms", h.handleCreateRoom)
	r.Get("/rooms/{roomID}", h.handleGetRoom)
	r.Delete("/rooms/{roomID}", h.handleStopRoom)
	r.Get("/rooms/{roomID}/task", h.handleCurrentTask)
	r.Get("/rooms/{roomID}/task/new", h.handleNewTask)
	r.Get("/rooms/{roomID}/welcome", h.handleWelcome)
	r.Post("/rooms/{roomID}/questions", h.handleSendQuestion)
	r.Get("/rooms/{roomID}/response", h.handleResponse)
	r.Post("/rooms/{roomID}/solutions", h.handleSendSolution)
	r.Get("/rooms/{roomID}/solution-response", h.handleSolutionResponse)
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req interviewService.CreateRoomRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), req)
	if err != nil {
		respondServiceError(w, "create room", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, room)
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Room(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		respondServiceError(w, "get room", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, room)
}

func (h *Handler) handleStopRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.StopRoom(r.Context(), chi.URLParam(r, "roomID")); err != nil {
		respondServiceError(w, "stop room", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCurrentTask(w http.ResponseWriter, r *http.Request) {
	meta, err := h.rooms.CurrentTask(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		respondServiceError(w, "current task", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, meta)
}

func (h *Handler) handleSendQuestion(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.rooms.SendQuestion(r.Context(), chi.URLParam(r, "roomID"), payload.Text); err != nil {
		respondServiceError(w, "send question", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSendSolution(w http.ResponseWriter, r *http.Request) {
	var solution interview.Solution
	if err := utils.DecodeJSON(r, &solution); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.rooms.SendSolution(r.Context(), chi.URLParam(r, "roomID"), solution); err != nil {
		respondServiceError(w, "send solution", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "welcome", func(ctx context.Context, id string) (*interview.TaskMetadata, tagstream.Reader, error) {
		body, err := h.rooms.GenerateWelcomeMessage(ctx, id)
		return nil, body, err
	})
}

func (h *Handler) handleResponse(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "response", func(ctx context.Context, id string) (*interview.TaskMetadata, tagstream.Reader, error) {
		body, err := h.rooms.GetResponse(ctx, id)
		return nil, body, err
	})
}

func (h *Handler) handleSolutionResponse(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "solution response", func(ctx context.Context, id string) (*interview.TaskMetadata, tagstream.Reader, error) {
		body, err := h.rooms.GetSolutionResponse(ctx, id)
		return nil, body, err
	})
}

func (h *Handler) handleNewTask(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "new task", func(ctx context.Context, id string) (*interview.TaskMetadata, tagstream.Reader, error) {
		meta, body, err := h.rooms.NewTask(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return &meta, body, nil
	})
}

type phaseFunc func(ctx context.Context, id string) (*interview.TaskMetadata, tagstream.Reader, error)

// relay starts a streaming phase and forwards its body as SSE. Errors before
// the first byte are plain JSON responses with a mapped status.
func (h *Handler) relay(w http.ResponseWriter, r *http.Request, op string, start phaseFunc) {
	flusher, err := stream.Flusher(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	roomID := chi.URLParam(r, "roomID")
	task, body, err := start(ctx, roomID)
	if err != nil {
		respondServiceError(w, op, err)
		return
	}
	if err := stream.Relay(ctx, w, flusher, roomID, task, body); err != nil {
		log.Printf("[stream] %s for room=%s ended early: %v", op, roomID, err)
	}
}

func respondServiceError(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[room] %s failed: %v", op, err)
	}
	utils.RespondError(w, status, err.Error())
}
