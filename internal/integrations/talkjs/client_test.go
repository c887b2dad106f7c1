package talkjs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "sk", "bot")
	require.Error(t, err)
	_, err = NewClient("app", " ", "bot")
	require.Error(t, err)
	_, err = NewClient("app", "sk", "")
	require.Error(t, err)
}

func TestSend_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/app-1/conversations/conv 1/messages", r.URL.Path)
		require.Equal(t, "Bearer sk-secret", r.Header.Get("Authorization"))

		var body []outboundMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []outboundMessage{{Text: "hi there", Sender: "bot-1", Type: "UserMessage"}}, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient("app-1", "sk-secret", "bot-1", WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.Equal(t, "bot-1", c.BotID())
	require.NoError(t, c.Send(context.Background(), "conv 1", "hi there"))
}

func TestSend_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errorCode":"FORBIDDEN"}`))
	}))
	defer srv.Close()

	c, err := NewClient("app-1", "sk", "bot-1", WithBaseURL(srv.URL))
	require.NoError(t, err)
	err = c.Send(context.Background(), "conv-1", "hi")
	require.ErrorIs(t, err, ErrRelay)
	require.Contains(t, err.Error(), "403")
}

func TestSend_NetworkError(t *testing.T) {
	c, err := NewClient("app-1", "sk", "bot-1", WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	require.ErrorIs(t, c.Send(context.Background(), "conv-1", "hi"), ErrRelay)
}

func TestSend_EmptyConversation(t *testing.T) {
	c, err := NewClient("app-1", "sk", "bot-1")
	require.NoError(t, err)
	require.ErrorIs(t, c.Send(context.Background(), "", "hi"), ErrRelay)
}
