package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoginStoresToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ada@example.com", body["email"])
		writeJSON(t, w, http.StatusOK, map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"id": 42, "email": "ada@example.com", "displayName": "Ada"},
		})
	})

	session, err := client.Login(context.Background(), " ada@example.com ", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok-1", session.Token)
	require.Equal(t, ID("42"), session.User.ID)
	require.Equal(t, "Ada", session.User.DisplayName)
	require.Equal(t, "tok-1", client.Token())
}

func TestLoginFailureSurfacesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
	})

	_, err := client.Login(context.Background(), "a@b.c", "nope")
	require.ErrorContains(t, err, "Invalid credentials")
	require.False(t, client.Authenticated())
}

func TestRegisterDefaultsAgeGroup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/register", r.URL.Path)
		var body RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "middle", body.AgeGroup)
		require.Equal(t, "Ada", body.DisplayName)
		writeJSON(t, w, http.StatusCreated, map[string]any{"token": "tok-2", "user": map[string]any{"id": "u-1"}})
	})

	session, err := client.Register(context.Background(), RegisterRequest{Email: "a@b.c", Password: "pw", DisplayName: " Ada "})
	require.NoError(t, err)
	require.Equal(t, ID("u-1"), session.User.ID)
	require.Equal(t, "tok-2", client.Token())
}

func TestLogoutClearsTokenEvenOnFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.SetToken("tok")

	require.Error(t, client.Logout(context.Background()))
	require.False(t, client.Authenticated())
	require.NoError(t, client.Logout(context.Background()))
}

func TestCheckUsername(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/check-username/ada", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{"available": true})
	})

	available, err := client.CheckUsername(context.Background(), "ada")
	require.NoError(t, err)
	require.True(t, available)

	_, err = client.CheckUsername(context.Background(), " ")
	require.Error(t, err)
}

func TestSaveConversationRequiresToken(t *testing.T) {
	client := New(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.SaveConversation(context.Background(), SaveRequest{Subject: "math"})
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = client.ListConversations(context.Background(), "")
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSaveConversation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body SaveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "middle", body.DetectedLevel)
		require.Len(t, body.Messages, 2)
		writeJSON(t, w, http.StatusOK, map[string]any{"conversationId": 7})
	})
	client.SetToken("tok")

	id, err := client.SaveConversation(context.Background(), SaveRequest{
		Subject:       "math",
		DetectedLevel: "middle",
		Messages: []Message{
			{ID: "1", Text: "hi", Sender: "user"},
			{ID: "2", Text: "hello", Sender: "tutor"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "7", id)
}

func TestListConversationsDecodesStringMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "math", r.URL.Query().Get("subject"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"conversations": []map[string]any{{
				"id":             3,
				"subject":        "math",
				"title":          "math session - 10/19/2026",
				"detected_level": "middle",
				"messages":       `[{"id":"a","text":"hi","sender":"user","timestamp":"10:00"}]`,
			}},
		})
	})
	client.SetToken("tok")

	conversations, err := client.ListConversations(context.Background(), "math")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, ID("3"), conversations[0].ID)

	messages, err := conversations[0].Messages()
	require.NoError(t, err)
	require.Equal(t, []Message{{ID: "a", Text: "hi", Sender: "user", Timestamp: "10:00"}}, messages)
}

func TestConversationMessagesAcceptsArray(t *testing.T) {
	conversation := Conversation{RawMessages: json.RawMessage(`[{"id":"b","text":"yo","sender":"tutor"}]`)}
	messages, err := conversation.Messages()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "tutor", messages[0].Sender)

	empty, err := Conversation{}.Messages()
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestListConversationsRetriesOnceOnTimeout(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"conversations": []any{}})
	})
	client.SetToken("tok")
	client.timeout = 100 * time.Millisecond

	conversations, err := client.ListConversations(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, conversations)
	require.Equal(t, int32(2), calls.Load())
}

func TestListConversationsDoesNotRetryOtherErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{"error": "db down"})
	})
	client.SetToken("tok")

	_, err := client.ListConversations(context.Background(), "")
	require.ErrorContains(t, err, "db down")
	require.Equal(t, int32(1), calls.Load())
}

func TestIDUnmarshal(t *testing.T) {
	var id ID
	require.NoError(t, json.Unmarshal([]byte(`12`), &id))
	require.Equal(t, ID("12"), id)
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &id))
	require.Equal(t, ID("abc"), id)
	require.NoError(t, json.Unmarshal([]byte(`null`), &id))
	require.Equal(t, "-", id.String())
	require.Error(t, json.Unmarshal([]byte(`{}`), &id))
}
