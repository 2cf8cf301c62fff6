package realtime

import (
	"encoding/json"
	"testing"
)

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case raw := <-c.C:
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("bad payload %s: %v", raw, err)
		}
		return m, true
	default:
		return Message{}, false
	}
}

func TestBrokerRouting(t *testing.T) {
	b := NewBroker()
	admin := b.AddClient(1, true)
	riderTab1 := b.AddClient(2, false)
	riderTab2 := b.AddClient(2, false)
	other := b.AddClient(3, false)

	b.NotifyAdmins(Message{Type: TypePaymentSubmitted, Payload: map[string]int{"teamId": 7}})
	if m, ok := receive(t, admin); !ok || m.Type != TypePaymentSubmitted {
		t.Errorf("admin got %+v, %v", m, ok)
	}
	if _, ok := receive(t, riderTab1); ok {
		t.Error("rider received an admin broadcast")
	}

	b.NotifyUser(2, Message{Type: TypePaymentReviewed})
	for _, c := range []*Client{riderTab1, riderTab2} {
		if m, ok := receive(t, c); !ok || m.Type != TypePaymentReviewed {
			t.Errorf("rider tab got %+v, %v", m, ok)
		}
	}
	if _, ok := receive(t, other); ok {
		t.Error("message leaked to another user")
	}
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker()
	c := b.AddClient(1, true)
	for i := 0; i < cap(c.C)+5; i++ {
		b.NotifyAdmins(Message{Type: TypeDocumentUploaded})
	}
	if len(c.C) != cap(c.C) {
		t.Errorf("buffered %d, want %d", len(c.C), cap(c.C))
	}

	b.RemoveClient(c)
	b.RemoveClient(c)
	for range c.C {
	}
}
