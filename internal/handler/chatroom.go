package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"gemchat/internal/auth"
	"gemchat/internal/domain"
)

// ChatroomService is the slice of the service layer the chatroom handler calls.
type ChatroomService interface {
	Create(ctx context.Context, userID uuid.UUID, name string) (*domain.ChatRoom, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error)
	GetDetails(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatRoom, error)
	SendMessage(ctx context.Context, roomID, userID uuid.UUID, content string) (*domain.Message, error)
}

// ChatroomHandler serves chat room CRUD and message submission.
type ChatroomHandler struct {
	chatrooms ChatroomService
	logger    *slog.Logger
}

// NewChatroomHandler creates a ChatroomHandler.
func NewChatroomHandler(chatrooms ChatroomService, logger *slog.Logger) *ChatroomHandler {
	return &ChatroomHandler{chatrooms: chatrooms, logger: logger}
}

type createChatroomRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/chatroom.
func (h *ChatroomHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	var req createChatroomRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	room, err := h.chatrooms.Create(r.Context(), user.ID, req.Name)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, room)
}

// List handles GET /api/v1/chatroom.
func (h *ChatroomHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	rooms, err := h.chatrooms.List(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if rooms == nil {
		rooms = []domain.ChatRoom{}
	}

	respondJSON(w, http.StatusOK, rooms)
}

// Get handles GET /api/v1/chatroom/{id}, returning the room with its full
// message history.
func (h *ChatroomHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ChatroomHandler.Get", "Invalid chatroom id"))
		return
	}

	room, err := h.chatrooms.GetDetails(r.Context(), roomID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage handles POST /api/v1/chatroom/{id}/message. The reply is
// generated asynchronously; 202 tells the client to poll the room.
func (h *ChatroomHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ChatroomHandler.SendMessage", "Invalid chatroom id"))
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	msg, err := h.chatrooms.SendMessage(r.Context(), roomID, user.ID, req.Content)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"message": msg,
		"status":  "queued",
	})
}
