package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rbright/lilibet/internal/backend"
	"github.com/rbright/lilibet/internal/cli"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,}$`)

func (r Runner) commandLogin(ctx context.Context, client *backend.Client, parsed cli.Parsed) int {
	if strings.TrimSpace(parsed.Email) == "" || parsed.Password == "" {
		fmt.Fprintln(r.Stderr, "error: login requires --email and --password")
		return 2
	}
	sess, err := client.Login(ctx, parsed.Email, parsed.Password)
	if err != nil {
		return r.fail(fmt.Errorf("sign in: %w", err))
	}
	r.printSession(sess)
	return 0
}

func (r Runner) commandRegister(ctx context.Context, client *backend.Client, parsed cli.Parsed, logger *slog.Logger) int {
	if strings.TrimSpace(parsed.Email) == "" || parsed.Password == "" || strings.TrimSpace(parsed.DisplayName) == "" {
		fmt.Fprintln(r.Stderr, "error: register requires --email, --password, and --name")
		return 2
	}
	if name := strings.TrimSpace(parsed.DisplayName); usernamePattern.MatchString(name) {
		available, err := client.CheckUsername(ctx, name)
		switch {
		case err != nil:
			logger.Warn("username availability check failed", "error", err.Error())
		case !available:
			return r.fail(fmt.Errorf("name %q is already taken", name))
		}
	}
	sess, err := client.Register(ctx, backend.RegisterRequest{
		Email:       parsed.Email,
		Password:    parsed.Password,
		DisplayName: parsed.DisplayName,
		AgeGroup:    parsed.AgeGroup,
	})
	if err != nil {
		return r.fail(fmt.Errorf("create account: %w", err))
	}
	r.printSession(sess)
	return 0
}

func (r Runner) printSession(sess backend.Session) {
	name := sess.User.DisplayName
	if name == "" {
		name = sess.User.Email
	}
	fmt.Fprintf(r.Stderr, "signed in as %s\n", name)
	fmt.Fprintf(r.Stdout, "LILIBET_TOKEN=%s\n", sess.Token)
}

func (r Runner) commandLogout(ctx context.Context, client *backend.Client) int {
	if !client.Authenticated() {
		fmt.Fprintln(r.Stdout, "not signed in")
		return 0
	}
	if err := client.Logout(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "warning: backend logout failed: %v\n", err)
	}
	fmt.Fprintln(r.Stdout, "signed out; remove LILIBET_TOKEN from your environment")
	return 0
}

func (r Runner) commandHistory(ctx context.Context, client *backend.Client, subject string) int {
	conversations, err := client.ListConversations(ctx, subject)
	if errors.Is(err, backend.ErrNotAuthenticated) {
		return r.fail(errors.New("sign in first: set LILIBET_TOKEN (see `lilibet login`)"))
	}
	if err != nil {
		return r.fail(fmt.Errorf("load conversations: %w", err))
	}
	r.printConversations(conversations)
	return 0
}

func (r Runner) printConversations(conversations []backend.Conversation) {
	if len(conversations) == 0 {
		fmt.Fprintln(r.Stdout, "no saved conversations")
		return
	}
	for _, conv := range conversations {
		fmt.Fprintf(r.Stdout, "%s\t%s\t%s\t%s\n", conv.ID, conv.Subject, conv.Title, conv.UpdatedAt)
	}
}
