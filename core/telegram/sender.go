package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/romnatson3/pharmacy/core/logger"
)

var (
	// ErrAPI marks failures the Telegram API reported in its response envelope.
	ErrAPI = errors.New("telegram: api error")
	// ErrDelivery marks transport-level failures before any API response.
	ErrDelivery = errors.New("telegram: delivery failed")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Sender is the outbound message-delivery capability consumed by tasks.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error
}

// NewBot builds a telebot client over the tuned HTTP transport.
// Offline skips the getMe verification call (tests, dry runs).
func NewBot(token string, offline bool) (*tele.Bot, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Client:  BuildHTTPClient(),
		Offline: offline,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// BotSender delivers messages through the Telegram sendMessage method
// with HTML parse mode.
type BotSender struct {
	bot *tele.Bot
}

// NewBotSender wraps a telebot client as a Sender.
func NewBotSender(bot *tele.Bot) *BotSender {
	return &BotSender{bot: bot}
}

// SendMessage posts text to chatID. API rejections and transport failures
// surface as distinct error kinds (ErrAPI, ErrDelivery).
func (s *BotSender) SendMessage(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if markup != nil {
		opts.ReplyMarkup = markup
	}

	start := time.Now()
	_, err := s.bot.Send(tele.ChatID(chatID), text, opts)
	took := time.Since(start)
	if err != nil {
		kind := classifyError(err)
		logger.Error(ctx, "tg", "send.fail",
			slog.Int64("chat_id", chatID),
			slog.String("error_kind", kind),
			slog.String("err", sanitizeErrorMessage(err)),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		if kind == "api" {
			return fmt.Errorf("%w: chat_id=%d: %s", ErrAPI, chatID, sanitizeErrorMessage(err))
		}
		return fmt.Errorf("%w: chat_id=%d: %s", ErrDelivery, chatID, sanitizeErrorMessage(err))
	}

	logger.Debug(ctx, "tg", "send.success",
		slog.Int64("chat_id", chatID),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func classifyError(err error) string {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return "api"
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return "api"
	}
	return "transport"
}

// sanitizeErrorMessage prevents accidental leakage of bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
