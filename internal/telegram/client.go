// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/marketstate/internal/logger"
	"github.com/rewired-gh/marketstate/internal/view"
)

// statusBalanceRows caps the ranking shown by /status.
const statusBalanceRows = 5

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// StatusFunc returns the dashboard state answered by /status.
type StatusFunc func() view.ViewModel

// Client handles Telegram notifications.
type Client struct {
	bot            sender
	api            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	status         StatusFunc
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	c := newClient(bot, chatIDInt, maxRetries, retryDelayBase)
	c.api = bot
	return c, nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// SetStatusFunc installs the source for /status replies.
func (c *Client) SetStatusFunc(fn StatusFunc) {
	c.status = fn
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	if c.api == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message.Chat.ID, update.Message.Command())
				}
			}
		}
	}()
}

func (c *Client) handleCommand(chatID int64, command string) {
	var reply tgbotapi.MessageConfig
	switch command {
	case "ping":
		reply = tgbotapi.NewMessage(chatID, "Pong")
	case "status":
		if c.status == nil {
			reply = tgbotapi.NewMessage(chatID, "Status unavailable")
			break
		}
		reply = tgbotapi.NewMessage(chatID, FormatStatus(c.status()))
		reply.ParseMode = "MarkdownV2"
	default:
		return
	}
	if _, err := c.bot.Send(reply); err != nil {
		logger.Warn("Failed to answer /%s: %v", command, err)
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError reports the first failure of a region's refresh streak.
func (c *Client) SendError(region string, err error) error {
	text := fmt.Sprintf("⚠️ *Refresh error* in %s\n`%s`", escapeMarkdownV2(region), escapeMarkdownV2(err.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery reports that a region refreshed again after consecutive failures.
func (c *Client) SendRecovery(region string, failureCount int) error {
	text := fmt.Sprintf("✅ *%s recovered* after %d consecutive failure\\(s\\)", escapeMarkdownV2(region), failureCount)
	return c.sendMarkdownV2(text)
}

// SendAuctionResult announces a newly cleared auction.
func (c *Client) SendAuctionResult(card view.AuctionCard) error {
	return c.sendMarkdownV2(FormatAuctionResult(card))
}

// FormatAuctionResult renders a result card as a MarkdownV2 message.
func FormatAuctionResult(card view.AuctionCard) string {
	var b strings.Builder
	b.WriteString("🔨 *New auction result*\n\n")
	for _, row := range card.Rows {
		fmt.Fprintf(&b, "%s: *%s*\n", escapeMarkdownV2(row.Label), escapeMarkdownV2(row.Value))
	}
	return b.String()
}

// FormatStatus summarizes the dashboard as a MarkdownV2 message.
func FormatStatus(vm view.ViewModel) string {
	var b strings.Builder
	b.WriteString("📊 *Market\\-State*\n\n")

	fmt.Fprintf(&b, "Next step: *%s*%s\n", valueOrDash(vm.NextStep.Value), staleMark(vm.NextStep.Status))
	fmt.Fprintf(&b, "Time: *%s*%s\n", valueOrDash(vm.SimTime.Value), staleMark(vm.SimTime.Status))

	open := 0
	for _, card := range vm.Auctions.Upcoming {
		if card.Placeholder == "" {
			open++
		}
	}
	fmt.Fprintf(&b, "Open auctions: *%d*%s\n", open, staleMark(vm.Auctions.Status))
	if vm.Auctions.Result.Placeholder == "" {
		for _, row := range vm.Auctions.Result.Rows {
			if row.Label == "Clearing Price" {
				fmt.Fprintf(&b, "Last clearing price: *%s*\n", escapeMarkdownV2(row.Value))
			}
		}
	}

	if len(vm.Balances.Rows) > 0 {
		fmt.Fprintf(&b, "\n*Ranking*%s\n", staleMark(vm.Balances.Status))
		for i, row := range vm.Balances.Rows {
			if i == statusBalanceRows {
				fmt.Fprintf(&b, "\\.\\.\\. %d more\n", len(vm.Balances.Rows)-statusBalanceRows)
				break
			}
			fmt.Fprintf(&b, "%d\\. %s: %s\n", i+1, escapeMarkdownV2(row.Name), escapeMarkdownV2(row.Balance.String()))
		}
	}
	return b.String()
}

func valueOrDash(v string) string {
	if v == "" {
		return "\\-"
	}
	return escapeMarkdownV2(v)
}

func staleMark(s view.Status) string {
	if !s.Stale {
		return ""
	}
	return fmt.Sprintf(" ⚠️ _%s_", escapeMarkdownV2(s.ErrKind))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
