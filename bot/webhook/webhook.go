// Package webhook receives Telegram update callbacks over HTTP. Telegram
// only needs a 2xx to stop redelivering, so after the secret check every
// request is answered 200 no matter what the payload held.
package webhook

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	tele "gopkg.in/telebot.v4"

	"github.com/romnatson3/pharmacy/bot/funnel"
	"github.com/romnatson3/pharmacy/core/logger"
)

// secretHeader is the header Telegram echoes back when the webhook was
// registered with a secret token.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Handler authenticates and dispatches webhook updates.
type Handler struct {
	secret string
	funnel *funnel.Funnel
}

// New constructs a Handler.
func New(secret string, f *funnel.Funnel) *Handler {
	return &Handler{secret: secret, funnel: f}
}

// Register mounts the webhook route on the fiber app.
func (h *Handler) Register(app *fiber.App, path string) {
	app.Post(path, h.Handle)
}

// Handle processes one webhook request.
func (h *Handler) Handle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	start := time.Now()

	if c.Get(secretHeader) != h.secret {
		logger.Warn(ctx, "web", "webhook.unauthorized", slog.String("ip", c.IP()))
		return c.SendStatus(fiber.StatusBadRequest)
	}

	var update tele.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		logger.Error(ctx, "web", "webhook.parse.fail", slog.String("err", err.Error()))
		return c.SendStatus(fiber.StatusOK)
	}

	ctx = logger.WithRID(ctx, logger.BuildRID(update.ID, senderID(update)))
	var err error
	switch {
	case update.Message != nil:
		err = h.funnel.HandleMessage(ctx, update.Message)
	case update.Callback != nil:
		err = h.funnel.HandleCallback(ctx, update.Callback)
	default:
		logger.Debug(ctx, "web", "webhook.ignored", slog.Int("update_id", update.ID))
	}
	if err != nil {
		logger.Error(ctx, "web", "webhook.dispatch.fail",
			slog.Int("update_id", update.ID),
			slog.String("err", err.Error()),
		)
	}

	logger.Debug(ctx, "web", "webhook.done",
		slog.Int("update_id", update.ID),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return c.SendStatus(fiber.StatusOK)
}

func senderID(update tele.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Sender != nil:
		return update.Message.Sender.ID
	case update.Callback != nil && update.Callback.Sender != nil:
		return update.Callback.Sender.ID
	}
	return 0
}
