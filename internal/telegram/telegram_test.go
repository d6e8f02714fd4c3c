package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghouse/internal/config"
	"ghouse/pkg/types"
)

type logEntry struct {
	chatID, message, status, sendError string
}

type fakeLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *fakeLogger) LogTelegramMessage(_ context.Context, chatID, message, status, sendError string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{chatID, message, status, sendError})
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeLogger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := &fakeLogger{}
	client := NewClient(config.TelegramConfig{BotToken: "test-token", APIBase: srv.URL}, logger, zerolog.Nop())
	return client, logger
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client, logger := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, client.SendMessage(context.Background(), "12345", "hello"))

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])

	require.Len(t, logger.entries, 1)
	assert.Equal(t, "sent", logger.entries[0].status)
}

func TestSendMessage_APIError(t *testing.T) {
	client, logger := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	})

	err := client.SendMessage(context.Background(), "999", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	require.Len(t, logger.entries, 1)
	assert.Equal(t, "failed", logger.entries[0].status)
	assert.NotEmpty(t, logger.entries[0].sendError)
}

func TestSendNotification_Formatting(t *testing.T) {
	var gotText string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotText = body["text"]
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	err := client.SendNotification(context.Background(), "12345", &types.Notification{
		Type:    types.NotificationWarning,
		Title:   "Low moisture",
		Message: "zone-a below 30%",
	})
	require.NoError(t, err)

	assert.Contains(t, gotText, "⚠️")
	assert.Contains(t, gotText, "<b>Low moisture</b>")
	assert.Contains(t, gotText, "zone-a below 30%")
}

func TestDisabledClientDropsSends(t *testing.T) {
	logger := &fakeLogger{}
	client := NewClient(config.TelegramConfig{}, logger, zerolog.Nop())

	assert.False(t, client.Enabled())
	require.NoError(t, client.SendMessage(context.Background(), "12345", "hello"))
	assert.Empty(t, logger.entries)
}
