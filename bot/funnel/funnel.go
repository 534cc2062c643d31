package funnel

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/romnatson3/pharmacy/bot/format"
	"github.com/romnatson3/pharmacy/bot/texts"
	"github.com/romnatson3/pharmacy/catalog"
	"github.com/romnatson3/pharmacy/core/logger"
	"github.com/romnatson3/pharmacy/core/queue"
)

// minQueryRunes is the shortest free-text query accepted for search.
const minQueryRunes = 3

// Task names as they appear in queue logs.
const (
	TaskWelcome           = "welcome"
	TaskDistricts         = "districts"
	TaskSearchPrompt      = "search_prompt"
	TaskTypeMore          = "type_more"
	TaskStartOver         = "start_over"
	TaskMedicationChoices = "medication_choices"
	TaskSearchResult      = "search_result"
	TaskChainStocks       = "chain_stocks"
	TaskProductOfTheDay   = "product_of_the_day"
)

// Tasks is the set of background operations the funnel can schedule.
// Everything that touches the database or Telegram happens inside them.
type Tasks interface {
	Welcome(ctx context.Context, user catalog.User, chatID int64) error
	Districts(ctx context.Context, chatID int64) error
	SearchPrompt(ctx context.Context, chatID int64) error
	TypeMore(ctx context.Context, chatID int64) error
	StartOver(ctx context.Context, chatID int64) error
	MedicationChoices(ctx context.Context, userID, chatID int64, query string) error
	SearchResult(ctx context.Context, userID, chatID int64, choice string) error
	ChainStocks(ctx context.Context, userID, chatID, chainID int64) error
	ProductOfTheDay(ctx context.Context, chatID int64) error
}

// Funnel decides, per update, which task to run. The only work done on the
// request path is one conversation-state read or write plus the enqueue.
type Funnel struct {
	state *State
	queue queue.Enqueuer
	tasks Tasks
}

// New constructs a Funnel.
func New(state *State, q queue.Enqueuer, tasks Tasks) *Funnel {
	return &Funnel{state: state, queue: q, tasks: tasks}
}

// HandleMessage routes a plain message update.
func (f *Funnel) HandleMessage(ctx context.Context, msg *tele.Message) error {
	if msg == nil || msg.Sender == nil || msg.Chat == nil {
		logger.Warn(ctx, "bot", "message.skip", slog.String("reason", "incomplete update"))
		return nil
	}
	userID := msg.Sender.ID
	chatID := msg.Chat.ID
	ctx = logger.WithUpdateMeta(ctx, userID, chatID)
	text := msg.Text

	switch {
	case strings.HasPrefix(text, "/start"):
		user := catalog.User{
			ID:        userID,
			Username:  msg.Sender.Username,
			FirstName: msg.Sender.FirstName,
			LastName:  msg.Sender.LastName,
			IsBot:     msg.Sender.IsBot,
		}
		return f.enqueue(ctx, TaskWelcome, userID, chatID, func(ctx context.Context) error {
			return f.tasks.Welcome(ctx, user, chatID)
		})

	case text == texts.SearchByMedicationButton:
		if err := f.state.ClearDistrict(ctx, userID); err != nil {
			logger.Error(ctx, "bot", "state.clear.fail", slog.String("err", err.Error()))
		}
		if err := f.state.ClearStockIDs(ctx, userID); err != nil {
			logger.Error(ctx, "bot", "state.clear.fail", slog.String("err", err.Error()))
		}
		return f.enqueue(ctx, TaskDistricts, userID, chatID, func(ctx context.Context) error {
			return f.tasks.Districts(ctx, chatID)
		})

	case text == texts.ProductOfTheDayButton:
		return f.enqueue(ctx, TaskProductOfTheDay, userID, chatID, func(ctx context.Context) error {
			return f.tasks.ProductOfTheDay(ctx, chatID)
		})
	}

	if _, _, ok := format.DecodeChoiceID(text); ok {
		return f.enqueue(ctx, TaskSearchResult, userID, chatID, func(ctx context.Context) error {
			return f.tasks.SearchResult(ctx, userID, chatID, text)
		})
	}

	query := strings.TrimSpace(text)
	if utf8.RuneCountInString(query) < minQueryRunes {
		return f.enqueue(ctx, TaskTypeMore, userID, chatID, func(ctx context.Context) error {
			return f.tasks.TypeMore(ctx, chatID)
		})
	}

	if _, err := f.state.District(ctx, userID); err != nil {
		if errors.Is(err, ErrStaleState) {
			return f.enqueue(ctx, TaskStartOver, userID, chatID, func(ctx context.Context) error {
				return f.tasks.StartOver(ctx, chatID)
			})
		}
		return err
	}
	return f.enqueue(ctx, TaskMedicationChoices, userID, chatID, func(ctx context.Context) error {
		return f.tasks.MedicationChoices(ctx, userID, chatID, query)
	})
}

// HandleCallback routes an inline-button press.
func (f *Funnel) HandleCallback(ctx context.Context, cb *tele.Callback) error {
	if cb == nil || cb.Sender == nil || cb.Message == nil || cb.Message.Chat == nil {
		logger.Warn(ctx, "bot", "callback.skip", slog.String("reason", "incomplete update"))
		return nil
	}
	userID := cb.Sender.ID
	chatID := cb.Message.Chat.ID
	ctx = logger.WithUpdateMeta(ctx, userID, chatID)

	unique, payload := parseCallback(cb.Data)
	switch unique {
	case format.CallbackDistrict:
		if payload == "" {
			logger.Warn(ctx, "bot", "callback.skip", slog.String("reason", "empty district payload"))
			return nil
		}
		if err := f.state.SetDistrict(ctx, userID, payload); err != nil {
			return err
		}
		return f.enqueue(ctx, TaskSearchPrompt, userID, chatID, func(ctx context.Context) error {
			return f.tasks.SearchPrompt(ctx, chatID)
		})

	case format.CallbackChain:
		chainID, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			logger.Warn(ctx, "bot", "callback.skip",
				slog.String("reason", "bad chain payload"),
				slog.String("payload", logger.SanitizeLimit(payload, 64)),
			)
			return nil
		}
		return f.enqueue(ctx, TaskChainStocks, userID, chatID, func(ctx context.Context) error {
			return f.tasks.ChainStocks(ctx, userID, chatID, chainID)
		})
	}

	logger.Warn(ctx, "bot", "callback.skip",
		slog.String("reason", "unknown action"),
		slog.String("action", logger.SanitizeLimit(unique, 64)),
	)
	return nil
}

// enqueue schedules a task and carries the update's log identity into it.
func (f *Funnel) enqueue(ctx context.Context, name string, userID, chatID int64, run func(ctx context.Context) error) error {
	rid := logger.RIDFrom(ctx)
	return f.queue.Enqueue(ctx, name, func(ctx context.Context) error {
		ctx = logger.WithUpdateMeta(ctx, userID, chatID)
		if rid != "" {
			ctx = logger.WithRID(ctx, rid)
		}
		return run(ctx)
	})
}

// parseCallback splits telebot's \f<unique>|<payload> callback encoding.
func parseCallback(raw string) (string, string) {
	raw = strings.TrimPrefix(raw, "\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		return unique, parts[1]
	}
	return unique, ""
}
