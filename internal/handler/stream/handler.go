// Package stream relays interview phase output to clients as Server-Sent Events.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
	"github.com/zhouzirui/interview-room/backend/pkg/utils"
)

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event    string                  `json:"event"`
	Content  string                  `json:"content,omitempty"`
	RoomID   string                  `json:"roomId,omitempty"`
	Task     *interview.TaskMetadata `json:"task,omitempty"`
	Finished bool                    `json:"finished,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// ErrUnsupported is returned when the response writer cannot flush.
var ErrUnsupported = errors.New("streaming unsupported")

// Flusher returns w as a flusher, or ErrUnsupported. Handlers check this
// before starting a phase so an unusable writer never holds a room.
func Flusher(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrUnsupported
	}
	return flusher, nil
}

// Relay writes body to w: a start event, one delta per fragment and an end
// event carrying the full text. A failure after the headers are sent is
// reported as an error event and returned. body is always closed.
func Relay(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, roomID string, task *interview.TaskMetadata, body tagstream.Reader) error {
	defer body.Close()

	utils.SetupSSEHeaders(w)
	send(w, flusher, StreamResponse{Event: "start", RoomID: roomID, Task: task})

	var full strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			log.Printf("[stream] client left room=%s after %d bytes", roomID, full.Len())
			return err
		}
		chunk, err := body.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sendError(w, flusher, roomID, fmt.Sprintf("generation failed: %v", err))
			return err
		}
		full.WriteString(chunk)
		send(w, flusher, StreamResponse{Event: "delta", RoomID: roomID, Content: chunk})
	}

	send(w, flusher, StreamResponse{
		Event:    "end",
		RoomID:   roomID,
		Content:  full.String(),
		Finished: true,
	})
	return nil
}

func send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

func sendError(w http.ResponseWriter, flusher http.Flusher, roomID, message string) {
	send(w, flusher, StreamResponse{Event: "error", RoomID: roomID, Error: message})
}
