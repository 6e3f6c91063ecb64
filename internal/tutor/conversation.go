package tutor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/lilibet/internal/backend"
)

// Message senders.
const (
	SenderUser   = "user"
	SenderTutor  = "tutor"
	SenderSystem = "system"
)

// Conversation is the ordered message log for one subject.
type Conversation struct {
	ID       string
	Subject  Subject
	Messages []backend.Message
}

// WelcomeMessage is the tutor's opening line for a fresh conversation.
func WelcomeMessage(displayName string, subject Subject) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s! I'm Lilibet, your %s tutor. What would you like to explore today?", name, strings.ToLower(subject.Name))
}

// NewConversation starts a conversation that opens with the tutor's welcome.
func NewConversation(subject Subject, displayName string, now time.Time) *Conversation {
	conv := &Conversation{Subject: subject}
	conv.Append(SenderTutor, WelcomeMessage(displayName, subject), now)
	return conv
}

// Resume rebuilds a conversation from a saved history entry.
func Resume(saved backend.Conversation) (*Conversation, error) {
	subject, err := LookupSubject(saved.Subject)
	if err != nil {
		return nil, err
	}
	messages, err := saved.Messages()
	if err != nil {
		return nil, err
	}
	return &Conversation{ID: string(saved.ID), Subject: subject, Messages: messages}, nil
}

// Append adds a message and returns it.
func (c *Conversation) Append(sender string, text string, at time.Time) backend.Message {
	msg := backend.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: at.Format(time.RFC3339),
	}
	c.Messages = append(c.Messages, msg)
	return msg
}

// History converts the log into tutor turns, dropping system notes.
func (c *Conversation) History() []backend.Turn {
	turns := make([]backend.Turn, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.Sender == SenderSystem {
			continue
		}
		role := "assistant"
		if msg.Sender == SenderUser {
			role = "user"
		}
		turns = append(turns, backend.Turn{Role: role, Content: msg.Text})
	}
	return turns
}

// Title names the conversation when it is saved.
func (c *Conversation) Title(now time.Time) string {
	return fmt.Sprintf("%s session - %s", c.Subject.ID, now.Format("2006-01-02"))
}

func (c *Conversation) clone() Conversation {
	return Conversation{
		ID:       c.ID,
		Subject:  c.Subject,
		Messages: append([]backend.Message(nil), c.Messages...),
	}
}
