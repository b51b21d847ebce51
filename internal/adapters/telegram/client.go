package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const apiBaseURL = "https://api.telegram.org"

// Config represents Telegram bot configuration
type Config struct {
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Client posts messages to a Telegram chat through the Bot API. It is the
// operator-facing alert channel, so it deliberately has no circuit breaker:
// alerts matter most exactly when everything else is failing.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Telegram bot client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// Enabled reports whether the client has enough configuration to send.
func (c *Client) Enabled() bool {
	return c.config.BotToken != "" && c.config.ChatID != ""
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers one Markdown-formatted message to the configured chat.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if !c.Enabled() {
		return fmt.Errorf("telegram client not configured")
	}

	payload := sendMessageRequest{
		ChatID:    c.config.ChatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", apiBaseURL, c.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}

	if !result.OK {
		c.logger.Error("Telegram rejected message",
			zap.Int("status_code", resp.StatusCode),
			zap.String("description", result.Description))
		return fmt.Errorf("telegram error: %s", result.Description)
	}

	c.logger.Debug("Telegram message sent", zap.Int("length", len(text)))
	return nil
}
