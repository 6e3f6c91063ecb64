package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ID accepts either a JSON string or number and keeps it as text.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Message is one chat line as stored with a conversation.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// SaveRequest persists a conversation snapshot.
type SaveRequest struct {
	ConversationID string    `json:"conversationId,omitempty"`
	Subject        string    `json:"subject"`
	Messages       []Message `json:"messages"`
	DetectedLevel  string    `json:"detectedLevel"`
	ModelUsed      string    `json:"modelUsed"`
	Title          string    `json:"title"`
}

// Conversation is a saved conversation summary from the history list.
type Conversation struct {
	ID            ID              `json:"id"`
	Subject       string          `json:"subject"`
	Title         string          `json:"title"`
	DetectedLevel string          `json:"detected_level"`
	ModelUsed     string          `json:"model_used"`
	UpdatedAt     string          `json:"updated_at"`
	RawMessages   json.RawMessage `json:"messages"`
}

// Messages decodes the stored message list. The backend returns it either as
// a JSON array or as a string holding one.
func (c Conversation) Messages() ([]Message, error) {
	raw := bytes.TrimSpace(c.RawMessages)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode conversation %s messages: %w", c.ID, err)
		}
		raw = []byte(inner)
	}
	var messages []Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode conversation %s messages: %w", c.ID, err)
	}
	return messages, nil
}

// SaveConversation stores a snapshot and returns the conversation id.
func (c *Client) SaveConversation(ctx context.Context, req SaveRequest) (string, error) {
	if !c.Authenticated() {
		return "", ErrNotAuthenticated
	}
	var reply struct {
		ConversationID ID `json:"conversationId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations", req, &reply); err != nil {
		return "", err
	}
	return string(reply.ConversationID), nil
}

// ListConversations loads saved conversations, optionally for one subject.
// A timed-out first attempt is retried once.
func (c *Client) ListConversations(ctx context.Context, subject string) ([]Conversation, error) {
	if !c.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	path := "/api/conversations"
	if subject = strings.TrimSpace(subject); subject != "" {
		path += "?subject=" + url.QueryEscape(subject)
	}

	var reply struct {
		Conversations []Conversation `json:"conversations"`
	}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &reply)
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		if c.logger != nil {
			c.logger.Info("conversation list timed out; retrying once")
		}
		err = c.doJSON(ctx, http.MethodGet, path, nil, &reply)
	}
	if err != nil {
		return nil, err
	}
	return reply.Conversations, nil
}

// String renders the id for display.
func (id ID) String() string {
	if id == "" {
		return "-"
	}
	return string(id)
}
