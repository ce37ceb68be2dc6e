package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

type staticResolver struct {
	other string
	err   error
}

func (r staticResolver) OtherParticipant(context.Context, string, string) (string, error) {
	return r.other, r.err
}

func directView(senderID, conversationID string) message.View {
	return message.View{
		Message: message.Message{
			ID:       "m1",
			SenderID: senderID,
			Content:  "hi",
			Target:   message.ConversationTarget(conversationID),
		},
		Sender: user.Summary{ID: senderID, Username: senderID},
	}
}

func TestPublishDirectToUnsubscribedRecipient(t *testing.T) {
	r := NewRegistry()
	sender := newFakeHandle("s")
	recipient := newFakeHandle("r")
	r.Register(sender)
	r.Register(recipient)

	f := NewFanout(r, staticResolver{other: "r"})
	d := f.Publish(context.Background(), directView("s", "c1"), sender)

	if !d.Direct {
		t.Fatalf("expected direct delivery, got %+v", d)
	}
	if recipient.count() != 1 {
		t.Fatalf("recipient got %d frames, want 1", recipient.count())
	}
	if sender.count() != 0 {
		t.Fatalf("sender must not be echoed")
	}

	var env Envelope
	if err := json.Unmarshal(recipient.frames[0], &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != EventReceiveMessage {
		t.Fatalf("unexpected event %q", env.Type)
	}
	var v message.View
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatal(err)
	}
	if v.ID != "m1" || v.Target.ConversationID() != "c1" {
		t.Errorf("payload mismatch: %+v", v)
	}
}

func TestPublishSubscribedRecipientReceivesOnce(t *testing.T) {
	r := NewRegistry()
	sender := newFakeHandle("s")
	recipient := newFakeHandle("r")
	r.Register(sender)
	r.Register(recipient)
	r.Subscribe(sender, message.ConversationChannel("c1"))
	r.Subscribe(recipient, message.ConversationChannel("c1"))

	f := NewFanout(r, staticResolver{other: "r"})
	d := f.Publish(context.Background(), directView("s", "c1"), sender)

	if recipient.count() != 1 {
		t.Fatalf("recipient got %d frames, want exactly 1", recipient.count())
	}
	if d.Broadcast != 1 || d.Direct || d.DirectSkip != SkipSubscribed {
		t.Errorf("unexpected delivery report %+v", d)
	}
	if sender.count() != 0 {
		t.Errorf("sender must not be echoed through the channel")
	}
}

func TestPublishOfflineRecipient(t *testing.T) {
	r := NewRegistry()
	sender := newFakeHandle("s")
	r.Register(sender)

	f := NewFanout(r, staticResolver{other: "r"})
	d := f.Publish(context.Background(), directView("s", "c1"), sender)

	if d.Direct || d.DirectSkip != SkipOffline {
		t.Errorf("expected offline skip, got %+v", d)
	}
}

func TestPublishLookupFailureDegradesToChannel(t *testing.T) {
	r := NewRegistry()
	sender := newFakeHandle("s")
	watcher := newFakeHandle("w")
	r.Register(sender)
	r.Register(watcher)
	r.Subscribe(watcher, message.ConversationChannel("c1"))

	f := NewFanout(r, staticResolver{err: errors.New("boom")})
	d := f.Publish(context.Background(), directView("s", "c1"), sender)

	if d.DirectSkip != SkipLookup {
		t.Errorf("expected lookup skip, got %q", d.DirectSkip)
	}
	if watcher.count() != 1 {
		t.Errorf("channel broadcast must still happen")
	}
}

func TestPublishRoomBroadcast(t *testing.T) {
	r := NewRegistry()
	sender := newFakeHandle("s")
	a := newFakeHandle("a")
	b := newFakeHandle("b")
	outsider := newFakeHandle("o")
	for _, h := range []*fakeHandle{sender, a, b, outsider} {
		r.Register(h)
	}
	channel := message.RoomChannel("lobby")
	r.Subscribe(sender, channel)
	r.Subscribe(a, channel)
	r.Subscribe(b, channel)
	b.full = true

	msg := message.View{Message: message.Message{ID: "m2", SenderID: "s", Content: "yo", Target: message.RoomTarget("lobby"), Read: true}}
	d := NewFanout(r, nil).Publish(context.Background(), msg, sender)

	if d.Broadcast != 1 || d.Dropped != 1 {
		t.Errorf("expected 1 delivered and 1 dropped, got %+v", d)
	}
	if a.count() != 1 || outsider.count() != 0 || sender.count() != 0 {
		t.Errorf("room delivery went to the wrong handles")
	}
	if d.DirectSkip != "" {
		t.Errorf("room messages have no direct path, got %q", d.DirectSkip)
	}
}
