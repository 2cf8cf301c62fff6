package notify

import (
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/neadvenduro/advenduro/internal/realtime"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.err
}

func TestHubAdmins(t *testing.T) {
	broker := realtime.NewBroker()
	admin := broker.AddClient(1, true)
	sender := &fakeSender{}
	hub := NewHub(broker, NewTelegramWithSender(sender, -1001))

	hub.Admins(realtime.Message{Type: realtime.TypePaymentSubmitted}, "Payment submitted by Dust Devils")
	hub.Wait()

	if len(admin.C) != 1 {
		t.Errorf("admin stream got %d messages, want 1", len(admin.C))
	}
	if len(sender.sent) != 1 {
		t.Fatalf("telegram got %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].ChatID != -1001 || sender.sent[0].Text != "Payment submitted by Dust Devils" {
		t.Errorf("telegram message = %+v", sender.sent[0])
	}
}

func TestHubTelegramFailureIsNotFatal(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	hub := NewHub(realtime.NewBroker(), NewTelegramWithSender(sender, 1))
	hub.Admins(realtime.Message{Type: realtime.TypeDocumentUploaded}, "x")
	hub.Wait()
}

func TestHubWithoutTelegram(t *testing.T) {
	broker := realtime.NewBroker()
	rider := broker.AddClient(5, false)
	hub := NewHub(broker, nil)

	hub.Admins(realtime.Message{Type: realtime.TypeDocumentUploaded}, "ignored")
	hub.Users([]int64{5, 6}, realtime.Message{Type: realtime.TypeDocumentReviewed})
	hub.Wait()

	if len(rider.C) != 1 {
		t.Errorf("rider stream got %d messages, want 1", len(rider.C))
	}
}
