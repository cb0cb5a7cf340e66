package surface

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/internal/domain"
)

// Telegram renders messages and inline keyboards through the Bot API
// and feeds callback presses and text replies to a Listener.
type Telegram struct {
	bot *tgbotapi.BotAPI
	log *zap.Logger
}

func NewTelegram(token string, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, log: log}, nil
}

func (t *Telegram) Post(_ context.Context, chatID int64, text string, actions []Action) (domain.Anchor, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(actions) > 0 {
		msg.ReplyMarkup = keyboard(actions)
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		return domain.Anchor{}, fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return domain.Anchor{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (t *Telegram) Edit(_ context.Context, anchor domain.Anchor, text string, actions []Action) error {
	var edit tgbotapi.Chattable
	if len(actions) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(anchor.ChatID, anchor.MessageID, text, keyboard(actions))
	} else {
		edit = tgbotapi.NewEditMessageText(anchor.ChatID, anchor.MessageID, text)
	}

	if _, err := t.bot.Send(edit); err != nil {
		return fmt.Errorf("edit message %d in chat %d: %w", anchor.MessageID, anchor.ChatID, err)
	}
	return nil
}

// Listen long-polls for updates until ctx is done. Each decoded event
// is handed to the listener on its own goroutine so a slow handler
// never stalls the receive loop.
func (t *Telegram) Listen(ctx context.Context, listener Listener) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := t.bot.GetUpdatesChan(cfg)

	t.log.Info("telegram listener started", zap.String("bot", t.bot.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.log.Info("telegram listener stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.dispatch(ctx, update, listener)
		}
	}
}

func (t *Telegram) dispatch(ctx context.Context, update tgbotapi.Update, listener Listener) {
	switch {
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if _, err := t.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			t.log.Warn("failed to answer callback", zap.Error(err))
		}
		if query.Message == nil {
			return
		}
		event := ActionEvent{
			Anchor:   domain.Anchor{ChatID: query.Message.Chat.ID, MessageID: query.Message.MessageID},
			ChatID:   query.Message.Chat.ID,
			Actor:    actorRef(query.From),
			ActionID: query.Data,
		}
		go listener.HandleAction(ctx, event)

	case update.Message != nil && update.Message.Text != "":
		event := TextEvent{
			ChatID: update.Message.Chat.ID,
			Actor:  actorRef(update.Message.From),
			Text:   update.Message.Text,
		}
		go listener.HandleText(ctx, event)
	}
}

func keyboard(actions []Action) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	for _, action := range actions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(action.Label, action.ID))
		if len(row) == 2 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 2)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func actorRef(user *tgbotapi.User) string {
	if user == nil {
		return "unknown"
	}
	if user.UserName != "" {
		return "@" + user.UserName
	}
	return strconv.FormatInt(user.ID, 10)
}
