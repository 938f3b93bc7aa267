// Package ws drives an interview room over a single WebSocket connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/interview-room/backend/internal/handler/room"
	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket面试处理器
type Handler struct {
	rooms    room.Rooms
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(rooms room.Rooms) *Handler {
	return &Handler{
		rooms: rooms,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rooms/{roomID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type questionMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"roomId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type chunkData struct {
	Content string                  `json:"content,omitempty"`
	Task    *interview.TaskMetadata `json:"task,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

type conn struct {
	ws     *websocket.Conn
	roomID string
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if _, err := h.rooms.Room(r.Context(), roomID); err != nil {
		http.Error(w, err.Error(), room.StatusFor(err))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer ws.Close()
	c := &conn{ws: ws, roomID: roomID}

	log.Printf("[ws] new connection for room=%s", roomID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	go pingLoop(ctx, ws)

	c.send("connected", nil)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error room=%s: %v", roomID, err)
			}
			return
		}

		if done := h.handleMessage(ctx, c, &msg); done {
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room stopped"),
				time.Now().Add(writeTimeout))
			return
		}
		// Streams can outlast the read timeout; the clock restarts once the reply is out.
		ws.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// handleMessage runs one client command and reports whether the connection should close.
func (h *Handler) handleMessage(ctx context.Context, c *conn, msg *inboundMessage) bool {
	switch msg.Type {
	case "room":
		snapshot, err := h.rooms.Room(ctx, c.roomID)
		if err != nil {
			c.sendError(err)
			return false
		}
		c.send("room", snapshot)
	case "welcome":
		body, err := h.rooms.GenerateWelcomeMessage(ctx, c.roomID)
		c.relay(nil, body, err)
	case "task":
		meta, body, err := h.rooms.NewTask(ctx, c.roomID)
		c.relay(&meta, body, err)
	case "question":
		var q questionMessage
		if err := json.Unmarshal(msg.Data, &q); err != nil {
			c.sendError(fmt.Errorf("invalid question payload: %w", err))
			return false
		}
		if err := h.rooms.SendQuestion(ctx, c.roomID, q.Text); err != nil {
			c.sendError(err)
			return false
		}
		body, err := h.rooms.GetResponse(ctx, c.roomID)
		c.relay(nil, body, err)
	case "solution":
		var solution interview.Solution
		if err := json.Unmarshal(msg.Data, &solution); err != nil {
			c.sendError(fmt.Errorf("invalid solution payload: %w", err))
			return false
		}
		if err := h.rooms.SendSolution(ctx, c.roomID, solution); err != nil {
			c.sendError(err)
			return false
		}
		body, err := h.rooms.GetSolutionResponse(ctx, c.roomID)
		c.relay(nil, body, err)
	case "stop":
		if err := h.rooms.StopRoom(ctx, c.roomID); err != nil {
			c.sendError(err)
		}
		c.send("stopped", nil)
		return true
	default:
		c.sendError(errors.New("unsupported message type: " + msg.Type))
	}
	return false
}

// relay forwards a phase body as start, delta and end messages. A failed
// write abandons the body so the room discards the partial message.
func (c *conn) relay(task *interview.TaskMetadata, body tagstream.Reader, err error) {
	if err != nil {
		c.sendError(err)
		return
	}
	defer body.Close()

	if err := c.send("start", chunkData{Task: task}); err != nil {
		return
	}

	var full strings.Builder
	for {
		chunk, err := body.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.sendError(err)
			return
		}
		full.WriteString(chunk)
		if err := c.send("delta", chunkData{Content: chunk}); err != nil {
			log.Printf("[ws] room=%s client went away mid-stream: %v", c.roomID, err)
			return
		}
	}
	c.send("end", chunkData{Content: full.String()})
}

func (c *conn) send(kind string, data interface{}) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := c.ws.WriteJSON(outgoingMessage{
		Type:      kind,
		RoomID:    c.roomID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[ws] failed to send %s to room=%s: %v", kind, c.roomID, err)
	}
	return err
}

func (c *conn) sendError(err error) {
	c.send("error", errorData{Message: err.Error(), Status: room.StatusFor(err)})
}

func pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
