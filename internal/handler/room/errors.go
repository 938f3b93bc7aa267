package room

import (
	"context"
	"errors"
	"net/http"

	"github.com/zhouzirui/interview-room/backend/internal/service/ai/control"
	"github.com/zhouzirui/interview-room/backend/internal/service/coderun"
	interviewService "github.com/zhouzirui/interview-room/backend/internal/service/interview"
	"github.com/zhouzirui/interview-room/backend/internal/service/vacancy"
)

// StatusFor maps an orchestrator error to an HTTP status code.
func StatusFor(err error) int {
	var decodeErr *control.DecodeError
	switch {
	case errors.Is(err, interviewService.ErrRoomNotFound), errors.Is(err, vacancy.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interviewService.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, interviewService.ErrNoTask), errors.Is(err, interviewService.ErrNoSolution):
		return http.StatusConflict
	case errors.As(err, &decodeErr), errors.Is(err, coderun.ErrUnsupportedLanguage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
