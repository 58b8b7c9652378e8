// Package telegram delivers actionable fusion signals via the Telegram Bot
// API, with retry on transient failures.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/whalefuse/whalefuse/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     3,
		retryDelayBase: time.Second,
	}, nil
}

// Send pushes a batch of actionable signals as one message.
func (c *Client) Send(signals []models.FusionResult) error {
	if len(signals) == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(c.chatID, FormatSignals(signals))
	msg.ParseMode = "Markdown"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// FormatSignals renders signals into the notification body.
func FormatSignals(signals []models.FusionResult) string {
	var b strings.Builder
	b.WriteString("*Whale fusion signals*\n\n")

	for _, s := range signals {
		arrow := "▲ UP"
		if s.Direction == models.DirectionDown {
			arrow = "▼ DOWN"
		}
		fmt.Fprintf(&b, "%s `%s` (%s)\n", arrow, s.MarketID, s.Category)
		fmt.Fprintf(&b, "  posterior %.1f%% · confidence %.1f%% · size ×%.2f · %d whales\n\n",
			s.Posterior*100, s.Confidence*100, s.SizeMultiplier, s.WhaleCount)
	}
	return b.String()
}
