// Package notify delivers administrator alerts and user notifications: to
// open SSE streams through the realtime broker and, for administrators, to a
// Telegram chat.
package notify

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/neadvenduro/advenduro/internal/realtime"
)

// Sender is the part of the Telegram bot API used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts plain-text alerts to one chat.
type Telegram struct {
	bot    Sender
	chatID int64
}

// NewTelegram logs the bot in with token and returns a Telegram that posts
// to chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	bot.Debug = false
	logrus.WithField("bot", bot.Self.UserName).Info("telegram alerts enabled")
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// NewTelegramWithSender is NewTelegram for an already constructed sender.
func NewTelegramWithSender(bot Sender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

func (t *Telegram) SendText(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// Hub fans notifications out to the broker and the optional Telegram chat.
type Hub struct {
	broker   *realtime.Broker
	telegram *Telegram

	wg sync.WaitGroup
}

// NewHub returns a Hub. telegram may be nil.
func NewHub(broker *realtime.Broker, telegram *Telegram) *Hub {
	return &Hub{broker: broker, telegram: telegram}
}

// Admins pushes msg to every connected administrator and posts text to the
// Telegram chat in the background.
func (h *Hub) Admins(msg realtime.Message, text string) {
	h.broker.NotifyAdmins(msg)
	if h.telegram == nil || text == "" {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.telegram.SendText(text); err != nil {
			logrus.WithError(err).WithField("type", msg.Type).Warn("telegram alert failed")
		}
	}()
}

// Users pushes msg to every connection of the given users.
func (h *Hub) Users(userIDs []int64, msg realtime.Message) {
	for _, id := range userIDs {
		h.broker.NotifyUser(id, msg)
	}
}

// Wait blocks until every pending Telegram post has finished.
func (h *Hub) Wait() {
	h.wg.Wait()
}
