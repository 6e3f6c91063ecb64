package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrEmptyReply means the tutor answered 2xx with no response text.
var ErrEmptyReply = errors.New("tutor returned an empty reply")

// Turn is one prior exchange line sent as conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TutorRequest is the stateless tutor call: history travels with the message.
type TutorRequest struct {
	Message             string `json:"message"`
	Subject             string `json:"subject"`
	Model               string `json:"model,omitempty"`
	ConversationHistory []Turn `json:"conversationHistory"`
}

// ChatRequest is the server-held-history variant keyed by conversation id.
type ChatRequest struct {
	Message        string `json:"message"`
	Subject        string `json:"subject"`
	ConversationID string `json:"conversationId"`
}

// TutorReply is the tutor's answer.
type TutorReply struct {
	Response     string `json:"response"`
	LearningMode string `json:"learningMode,omitempty"`
}

// Tutor sends a message with client-held history to /api/tutor.
func (c *Client) Tutor(ctx context.Context, req TutorRequest) (TutorReply, error) {
	if req.ConversationHistory == nil {
		req.ConversationHistory = []Turn{}
	}
	return c.reply(ctx, "/api/tutor", req)
}

// Chat sends a message to /api/chat; the backend supplies the history of the
// saved conversation.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (TutorReply, error) {
	if req.ConversationID == "" {
		return TutorReply{}, errors.New("chat requires a conversation id")
	}
	return c.reply(ctx, "/api/chat", req)
}

func (c *Client) reply(ctx context.Context, path string, req any) (TutorReply, error) {
	var reply TutorReply
	if err := c.doJSON(ctx, http.MethodPost, path, req, &reply); err != nil {
		return TutorReply{}, err
	}
	reply.Response = strings.TrimSpace(reply.Response)
	if reply.Response == "" {
		return TutorReply{}, ErrEmptyReply
	}
	return reply, nil
}
