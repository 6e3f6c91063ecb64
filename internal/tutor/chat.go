package tutor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/lilibet/internal/backend"
	"github.com/rbright/lilibet/internal/session"
	"github.com/rbright/lilibet/internal/speech"
)

const (
	// FallbackReply stands in when the tutor cannot answer.
	FallbackReply = "That's a great question! What do you think?"
	// DetectedLevel is recorded with every saved conversation.
	DetectedLevel = "middle"
)

// ErrEmptyMessage rejects a blank outgoing message.
var ErrEmptyMessage = errors.New("message is empty")

// Backend is the subset of the backend client a chat needs.
type Backend interface {
	Tutor(ctx context.Context, req backend.TutorRequest) (backend.TutorReply, error)
	Chat(ctx context.Context, req backend.ChatRequest) (backend.TutorReply, error)
	SaveConversation(ctx context.Context, req backend.SaveRequest) (string, error)
	Authenticated() bool
}

// Speaker voices tutor replies.
type Speaker interface {
	Speak(ctx context.Context, text string) (speech.Outcome, error)
	Stop()
}

// Recording is the dictation surface a chat must quiet on subject change.
type Recording interface {
	Abandon() session.Result
}

// Options wires a Chat.
type Options struct {
	Backend     Backend
	Speaker     Speaker
	Recording   Recording
	Logger      *slog.Logger
	Model       string
	DisplayName string
	Muted       bool
	// ServerHistory sends saved conversations to /api/chat by id.
	ServerHistory bool
	Now           func() time.Time
}

// Exchange is one user message and the tutor's reply.
type Exchange struct {
	User     backend.Message
	Reply    backend.Message
	Fallback bool
	Saved    bool
}

// Chat holds one conversation at a time and exchanges messages with the tutor.
type Chat struct {
	backend     Backend
	speaker     Speaker
	recording   Recording
	logger      *slog.Logger
	model       string
	displayName string
	serverSide  bool
	now         func() time.Time

	mu    sync.Mutex
	conv  *Conversation
	muted bool

	// speaking tracks replies voiced in the background so Close can wait.
	speaking   sync.WaitGroup
	speakCtx   context.Context
	stopSpeech context.CancelFunc
}

// NewChat opens a fresh conversation for subject.
func NewChat(opts Options, subject Subject) *Chat {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Chat{
		backend:     opts.Backend,
		speaker:     opts.Speaker,
		recording:   opts.Recording,
		logger:      opts.Logger,
		model:       opts.Model,
		displayName: opts.DisplayName,
		serverSide:  opts.ServerHistory,
		now:         now,
		muted:       opts.Muted || opts.Speaker == nil,
	}
	c.speakCtx, c.stopSpeech = context.WithCancel(context.Background())
	c.conv = NewConversation(subject, opts.DisplayName, now())
	return c
}

// Conversation returns a snapshot of the current conversation.
func (c *Chat) Conversation() Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.clone()
}

// Send delivers text to the tutor and records the reply. Tutor failures are
// absorbed into a fallback reply; only a blank message is an error.
func (c *Chat) Send(ctx context.Context, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}

	c.mu.Lock()
	ask := c.request(text)
	userMsg := c.conv.Append(SenderUser, text, c.now())
	conv := c.conv
	subject := conv.Subject.ID
	c.mu.Unlock()

	exchange := Exchange{User: userMsg}
	replyText := FallbackReply
	reply, err := ask(ctx)
	if err != nil {
		exchange.Fallback = true
		c.warn("tutor request failed", "subject", subject, "error", err.Error())
	} else {
		replyText = reply.Response
	}

	c.mu.Lock()
	if c.conv != conv {
		// Subject changed mid-flight; the reply belongs to a discarded log.
		c.mu.Unlock()
		return exchange, nil
	}
	exchange.Reply = c.conv.Append(SenderTutor, replyText, c.now())
	muted := c.muted
	c.mu.Unlock()

	exchange.Saved = c.save(ctx, conv)
	if !muted {
		c.speakAsync(replyText)
	}
	return exchange, nil
}

// request captures the outgoing call before text joins the log. Must be
// called with c.mu held.
func (c *Chat) request(text string) func(context.Context) (backend.TutorReply, error) {
	if c.serverSide && c.conv.ID != "" {
		req := backend.ChatRequest{Message: text, Subject: c.conv.Subject.ID, ConversationID: c.conv.ID}
		return func(ctx context.Context) (backend.TutorReply, error) { return c.backend.Chat(ctx, req) }
	}
	req := backend.TutorRequest{
		Message:             text,
		Subject:             c.conv.Subject.ID,
		Model:               c.model,
		ConversationHistory: c.conv.History(),
	}
	return func(ctx context.Context) (backend.TutorReply, error) { return c.backend.Tutor(ctx, req) }
}

// save persists a complete exchange when the user is signed in.
func (c *Chat) save(ctx context.Context, conv *Conversation) bool {
	if !c.backend.Authenticated() {
		return false
	}

	c.mu.Lock()
	snapshot := conv.clone()
	c.mu.Unlock()

	id, err := c.backend.SaveConversation(ctx, backend.SaveRequest{
		ConversationID: snapshot.ID,
		Subject:        snapshot.Subject.ID,
		Messages:       snapshot.Messages,
		DetectedLevel:  DetectedLevel,
		ModelUsed:      c.model,
		Title:          snapshot.Title(c.now()),
	})
	if err != nil {
		c.warn("conversation save failed", "subject", snapshot.Subject.ID, "error", err.Error())
		return false
	}
	if id != "" {
		c.mu.Lock()
		conv.ID = id
		c.mu.Unlock()
	}
	return true
}

func (c *Chat) speakAsync(text string) {
	c.speaking.Add(1)
	go func() {
		defer c.speaking.Done()
		outcome, err := c.speaker.Speak(c.speakCtx, text)
		if err != nil {
			c.warn("speech failed", "error", err.Error())
			return
		}
		if c.logger != nil {
			c.logger.Debug("reply spoken", "outcome", string(outcome))
		}
	}()
}

// Muted reports whether replies are voiced.
func (c *Chat) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// ToggleMute flips muting. Muting silences the current reply first.
func (c *Chat) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speaker == nil {
		return c.muted
	}
	if !c.muted {
		c.speaker.Stop()
	}
	c.muted = !c.muted
	return c.muted
}

// SwitchSubject abandons any live dictation and starts a new conversation.
func (c *Chat) SwitchSubject(subject Subject) {
	if c.recording != nil {
		c.recording.Abandon()
	}
	if c.speaker != nil {
		c.speaker.Stop()
	}
	c.mu.Lock()
	c.conv = NewConversation(subject, c.displayName, c.now())
	c.mu.Unlock()
}

// ResumeConversation replaces the current conversation with a saved one.
func (c *Chat) ResumeConversation(saved backend.Conversation) error {
	conv, err := Resume(saved)
	if err != nil {
		return err
	}
	if c.recording != nil {
		c.recording.Abandon()
	}
	if c.speaker != nil {
		c.speaker.Stop()
	}
	c.mu.Lock()
	c.conv = conv
	c.mu.Unlock()
	return nil
}

// Close stops speech and waits for background speech to finish.
func (c *Chat) Close() {
	c.stopSpeech()
	if c.speaker != nil {
		c.speaker.Stop()
	}
	c.speaking.Wait()
}

func (c *Chat) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
