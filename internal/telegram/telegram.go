package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ghouse/internal/config"
	"ghouse/pkg/types"
)

const defaultAPIBase = "https://api.telegram.org"

// severityEmoji prefixes mirror the dashboard's notification badges.
var severityEmoji = map[string]string{
	types.NotificationInfo:    "ℹ️",
	types.NotificationWarning: "⚠️",
	types.NotificationError:   "\U0001f6a8",
	types.NotificationSuccess: "✅",
}

// DeliveryLogger records every send attempt for auditing.
type DeliveryLogger interface {
	LogTelegramMessage(ctx context.Context, chatID, message, status, sendError string) error
}

// Client sends notifications through the Telegram Bot API. A client built
// without a bot token is disabled and silently drops sends, so deployments
// without Telegram run unchanged.
type Client struct {
	token   string
	apiBase string
	http    *http.Client
	logger  DeliveryLogger
	log     zerolog.Logger
}

// NewClient creates a Telegram client from configuration.
func NewClient(cfg config.TelegramConfig, logger DeliveryLogger, log zerolog.Logger) *Client {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		token:   cfg.BotToken,
		apiBase: apiBase,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

// Enabled reports whether a bot token was configured.
func (c *Client) Enabled() bool {
	return c.token != ""
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers raw text to one chat and records the attempt.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	if !c.Enabled() {
		return nil
	}

	err := c.post(ctx, chatID, text)

	status, sendError := "sent", ""
	if err != nil {
		status, sendError = "failed", err.Error()
		c.log.Error().Err(err).Str("chat_id", chatID).Msg("telegram send failed")
	}
	if logErr := c.logger.LogTelegramMessage(ctx, chatID, text, status, sendError); logErr != nil {
		c.log.Error().Err(logErr).Msg("failed to record telegram delivery")
	}

	return err
}

// SendNotification formats a notification with its severity badge and
// delivers it to one chat.
func (c *Client) SendNotification(ctx context.Context, chatID string, n *types.Notification) error {
	emoji, ok := severityEmoji[n.Type]
	if !ok {
		emoji = severityEmoji[types.NotificationInfo]
	}
	text := fmt.Sprintf("%s <b>%s</b>\n%s", emoji, n.Title, n.Message)
	return c.SendMessage(ctx, chatID, text)
}

func (c *Client) post(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}
