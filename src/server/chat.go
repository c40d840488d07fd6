package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/storage"
	"github.com/gin-gonic/gin"
)

type chatMessage struct {
	Role            string                  `json:"role" binding:"omitempty,oneof=user assistant"`
	Content         string                  `json:"content"`
	Attachments     storage.Attachments     `json:"attachments,omitempty"`
	ToolInvocations storage.ToolInvocations `json:"toolInvocations,omitempty"`
}

type chatRequest struct {
	// ID names the conversation. A new or unknown id starts one.
	ID      string       `json:"id"`
	Message *chatMessage `json:"message"`
}

type deleteChatRequest struct {
	ID string `json:"id" binding:"required"`
}

func (s *Server) postChat(c *gin.Context) {
	caller := callerFrom(c)
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == nil {
		fail(c, http.StatusBadRequest, "message is required")
		return
	}
	msg := &storage.Message{
		Role:            req.Message.Role,
		Content:         req.Message.Content,
		Attachments:     req.Message.Attachments,
		ToolInvocations: req.Message.ToolInvocations,
	}
	if msg.Role == "" {
		msg.Role = aisdk.RoleUser
	}
	if msg.Role == aisdk.RoleUser && strings.TrimSpace(msg.Content) == "" && len(msg.Attachments) == 0 {
		fail(c, http.StatusBadRequest, "message is required")
		return
	}
	if caller.PublicKey == "" {
		fail(c, http.StatusBadRequest, "a wallet is required")
		return
	}

	sink := newSSESink(c)
	defer sink.Close()
	_, err := s.turns.RunTurn(c.Request.Context(), executor.TurnRequest{
		ConversationID: req.ID,
		Caller:         caller,
		Message:        msg,
	}, sink)
	if err == nil {
		return
	}
	_ = c.Error(err)
	if sink.Started() {
		// nothing else can be said once the stream is open
		return
	}
	switch {
	case errors.Is(err, executor.ErrNoUserMessage):
		fail(c, http.StatusBadRequest, "the first message must come from the user")
	case errors.Is(err, executor.ErrConversationForeign):
		fail(c, http.StatusNotFound, "conversation not found")
	default:
		fail(c, http.StatusInternalServerError, "failed to run chat")
	}
}

func (s *Server) deleteChat(c *gin.Context) {
	caller := callerFrom(c)
	var req deleteChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "conversation id is required")
		return
	}
	err := s.store.DeleteConversation(c.Request.Context(), req.ID, caller.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, "conversation not found")
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to delete conversation")
	default:
		ok(c, nil)
	}
}

func (s *Server) listConversations(c *gin.Context) {
	caller := callerFrom(c)
	convs, err := s.store.Conversations(c.Request.Context(), caller.UserID)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []storage.Conversation{}
	}
	ok(c, convs)
}

func (s *Server) conversationMessages(c *gin.Context) {
	caller := callerFrom(c)
	ctx := c.Request.Context()
	id := c.Param("id")
	_, err := s.store.ConversationForUser(ctx, id, caller.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	msgs, err := s.store.Messages(ctx, id)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if err := s.store.MarkConversationRead(ctx, id, caller.UserID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to mark conversation read", "conversation_id", id, "error", err)
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}
	ok(c, msgs)
}
