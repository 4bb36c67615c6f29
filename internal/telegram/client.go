// Package telegram delivers capacity alerts through the Telegram Bot API.
// Messages use MarkdownV2; delivery is retried with a linear backoff.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/zonewatch/internal/models"
)

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase < 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Notify sends one message listing the fired alerts.
func (c *Client) Notify(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return c.send(ctx, formatAlerts(alerts))
}

// SendSessionError reports an analysis session that ended with an error.
func (c *Client) SendSessionError(ctx context.Context, mode string, reason string) error {
	message := fmt.Sprintf("⚠️ *%s analysis stopped*\n\n%s",
		escapeMarkdownV2(capitalize(mode)), escapeMarkdownV2(reason))
	return c.send(ctx, message)
}

func (c *Client) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram send interrupted: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatAlerts formats fired alerts into a Telegram message
func formatAlerts(alerts []models.Alert) string {
	var b strings.Builder
	b.WriteString("🚨 *High Traffic Alert*\n\n")

	dateStr := escapeMarkdownV2(alerts[0].RaisedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "📅 Raised: %s\n\n", dateStr)

	for i, a := range alerts {
		fmt.Fprintf(&b, "%d\\. *%s*: %s people \\(threshold %s\\)\n",
			i+1,
			escapeMarkdownV2(a.Zone),
			escapeMarkdownV2(strconv.Itoa(a.Count)),
			escapeMarkdownV2(strconv.Itoa(a.Threshold)),
		)
	}

	window := alerts[0].ExpiresAt.Sub(alerts[0].RaisedAt)
	fmt.Fprintf(&b, "\n⏱ Suppressed for: %s", escapeMarkdownV2(formatDuration(window)))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
