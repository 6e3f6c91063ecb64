package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/rbright/lilibet/internal/backend"
	"github.com/rbright/lilibet/internal/cli"
	"github.com/rbright/lilibet/internal/config"
	"github.com/rbright/lilibet/internal/recorder"
	"github.com/rbright/lilibet/internal/session"
	"github.com/rbright/lilibet/internal/transcript"
	"github.com/rbright/lilibet/internal/tutor"
)

type chatREPL struct {
	r          Runner
	client     *backend.Client
	chat       *tutor.Chat
	controller *session.Controller
	lines      <-chan string
	prompt     bool
}

func (r Runner) commandChat(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	subject, err := resolveSubject(parsed.Subject, cfg.Tutor.Subject)
	if err != nil {
		return r.fail(err)
	}
	model := parsed.Model
	if model == "" {
		model = cfg.Tutor.Model
	}

	client := backend.NewFromConfig(cfg, logger)

	speaker, err := newSpeaker(cfg.Speech, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: spoken replies disabled: %v\n", err)
	}

	sessionCfg := session.Config{
		Logger:      logger,
		Recorder:    recorder.Detect(ctx, cfg, logger),
		Transcriber: client,
		Timeout:     cfg.Transcribe.Timeout(),
	}
	opts := tutor.Options{
		Backend:     client,
		Logger:      logger,
		Model:       model,
		DisplayName: cfg.Tutor.DisplayName,
		Muted:       parsed.Muted,

		ServerHistory: cfg.Tutor.ServerHistory,
	}
	if speaker != nil {
		sessionCfg.Speech = speaker
		opts.Speaker = speaker
	}
	controller := session.NewController(sessionCfg)
	opts.Recording = controller

	chat := tutor.NewChat(opts, subject)
	defer chat.Close()
	defer controller.Abandon()

	if !client.Authenticated() {
		fmt.Fprintln(r.Stderr, "note: not signed in; conversations will not be saved")
	}

	repl := chatREPL{
		r:          r,
		client:     client,
		chat:       chat,
		controller: controller,
		lines:      readLines(ctx, r.Stdin),
		prompt:     isTerminal(r.Stdin),
	}
	return repl.run(ctx)
}

func resolveSubject(flag string, configured string) (tutor.Subject, error) {
	id := strings.TrimSpace(flag)
	if id == "" {
		id = strings.TrimSpace(configured)
	}
	if id != "" {
		return tutor.LookupSubject(id)
	}
	subjects, err := tutor.Subjects()
	if err != nil {
		return tutor.Subject{}, err
	}
	if len(subjects) == 0 {
		return tutor.Subject{}, errors.New("subject catalogue is empty")
	}
	return subjects[0], nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readLines feeds stdin lines into a channel that closes on EOF.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (c *chatREPL) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-c.lines:
		return line, ok
	}
}

func (c *chatREPL) run(ctx context.Context) int {
	conv := c.chat.Conversation()
	fmt.Fprintf(c.r.Stdout, "[%s] type a message, /record to speak, /help for commands\n", conv.Subject.Name)
	c.printTutor(conv.Messages[len(conv.Messages)-1].Text)

	for {
		if c.prompt {
			fmt.Fprint(c.r.Stdout, "> ")
		}
		line, ok := c.next(ctx)
		if !ok {
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			c.send(ctx, line)
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case "/quit", "/exit":
			return 0
		case "/help":
			fmt.Fprintln(c.r.Stdout, "/record, /mute, /subject ID, /history, /resume ID, /quit")
		case "/record":
			if !c.dictate(ctx) {
				return 0
			}
		case "/mute":
			if c.chat.ToggleMute() {
				fmt.Fprintln(c.r.Stdout, "(spoken replies off)")
			} else {
				fmt.Fprintln(c.r.Stdout, "(spoken replies on)")
			}
		case "/subject":
			c.switchSubject(arg)
		case "/history":
			c.history(ctx)
		case "/resume":
			c.resume(ctx, arg)
		default:
			fmt.Fprintf(c.r.Stdout, "unknown chat command %s; try /help\n", command)
		}
	}
}

func (c *chatREPL) send(ctx context.Context, text string) {
	exchange, err := c.chat.Send(ctx, text)
	if err != nil {
		fmt.Fprintf(c.r.Stderr, "error: %v\n", err)
		return
	}
	if exchange.Reply.Text != "" {
		c.printTutor(exchange.Reply.Text)
	}
}

// dictate records until the next input line and sends the transcript.
// It returns false when input ended.
func (c *chatREPL) dictate(ctx context.Context) bool {
	if err := c.controller.Begin(ctx); err != nil {
		fmt.Fprintf(c.r.Stderr, "%s\n", session.UserMessage(err))
		return true
	}
	fmt.Fprintln(c.r.Stdout, "(listening; press Enter to send, or type /cancel)")

	line, ok := c.next(ctx)
	if !ok || strings.TrimSpace(line) == "/cancel" {
		c.controller.Abandon()
		fmt.Fprintln(c.r.Stdout, "(recording discarded)")
		return ok
	}

	fmt.Fprintln(c.r.Stdout, "(transcribing…)")
	result := c.controller.Finish(ctx)
	switch {
	case result.Cancelled:
		fmt.Fprintln(c.r.Stdout, "(recording discarded)")
	case result.Err != nil:
		fmt.Fprintf(c.r.Stderr, "%s\n", session.UserMessage(result.Err))
	default:
		text := transcript.Normalize(result.Transcript)
		fmt.Fprintf(c.r.Stdout, "you: %s\n", text)
		c.send(ctx, text)
	}
	return true
}

func (c *chatREPL) switchSubject(id string) {
	subject, err := tutor.LookupSubject(id)
	if err != nil {
		fmt.Fprintf(c.r.Stderr, "error: %v\n", err)
		return
	}
	c.chat.SwitchSubject(subject)
	conv := c.chat.Conversation()
	fmt.Fprintf(c.r.Stdout, "[%s]\n", subject.Name)
	c.printTutor(conv.Messages[0].Text)
}

func (c *chatREPL) history(ctx context.Context) {
	conversations, err := c.client.ListConversations(ctx, c.chat.Conversation().Subject.ID)
	if err != nil {
		fmt.Fprintf(c.r.Stderr, "error: load conversations: %v\n", err)
		return
	}
	c.r.printConversations(conversations)
}

func (c *chatREPL) resume(ctx context.Context, id string) {
	if id == "" {
		fmt.Fprintln(c.r.Stderr, "error: /resume requires a conversation id")
		return
	}
	conversations, err := c.client.ListConversations(ctx, "")
	if err != nil {
		fmt.Fprintf(c.r.Stderr, "error: load conversations: %v\n", err)
		return
	}
	for _, saved := range conversations {
		if string(saved.ID) != id {
			continue
		}
		if err := c.chat.ResumeConversation(saved); err != nil {
			fmt.Fprintf(c.r.Stderr, "error: resume conversation %s: %v\n", id, err)
			return
		}
		conv := c.chat.Conversation()
		fmt.Fprintf(c.r.Stdout, "[%s] resumed %q\n", conv.Subject.Name, saved.Title)
		for _, msg := range conv.Messages {
			if msg.Sender == tutor.SenderUser {
				fmt.Fprintf(c.r.Stdout, "you: %s\n", msg.Text)
			} else if msg.Sender == tutor.SenderTutor {
				c.printTutor(msg.Text)
			}
		}
		return
	}
	fmt.Fprintf(c.r.Stderr, "error: no saved conversation with id %s\n", id)
}

func (c *chatREPL) printTutor(text string) {
	fmt.Fprintf(c.r.Stdout, "lilibet: %s\n", text)
}
