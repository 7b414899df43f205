package api

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zap.NewNop())
	go h.Run()
	return h
}

func registerTestClient(h *Hub) *Client {
	c := &Client{id: "c1", hub: h, send: make(chan []byte, 8), subscriptions: make(map[string]bool)}
	h.register <- c
	return c
}

func TestPublishToChannelSkipsClientsThatNeverSubscribed(t *testing.T) {
	h := newTestHub(t)
	c := registerTestClient(h)
	time.Sleep(10 * time.Millisecond) // let the register case land

	h.PublishToChannel("workflows:wf1", MsgTypeWorkflowUpdate, map[string]string{"status": "completed"})

	select {
	case <-c.send:
		t.Fatal("expected no delivery on a channel the client never subscribed to")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeRoutesChannelMessagesToTheClient(t *testing.T) {
	h := newTestHub(t)
	c := registerTestClient(h)
	time.Sleep(10 * time.Millisecond)

	h.Subscribe(c, "workflows:wf1")
	h.PublishToChannel("workflows:wf1", MsgTypeStageUpdate, map[string]string{"stage": "2_compile"})

	select {
	case raw := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Channel != "workflows:wf1" {
			t.Fatalf("Channel = %q, want workflows:wf1", msg.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the subscribed client to receive the channel message")
	}
}

func TestUnsubscribeStopsFurtherDeliveryOnThatChannel(t *testing.T) {
	h := newTestHub(t)
	c := registerTestClient(h)
	time.Sleep(10 * time.Millisecond)

	h.Subscribe(c, "workflows:wf1")
	h.Unsubscribe(c, "workflows:wf1")
	h.PublishToChannel("workflows:wf1", MsgTypeStageUpdate, nil)

	select {
	case <-c.send:
		t.Fatal("expected no message after unsubscribing")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastReachesEveryRegisteredClientRegardlessOfSubscription(t *testing.T) {
	h := newTestHub(t)
	c := registerTestClient(h)
	time.Sleep(10 * time.Millisecond)

	h.BroadcastLeaderboardUpdate(map[string]int{"totalPasses": 5})

	select {
	case raw := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != MsgTypeLeaderboardTick {
			t.Fatalf("Type = %q, want %q", msg.Type, MsgTypeLeaderboardTick)
		}
	case <-time.After(time.Second):
		t.Fatal("expected every registered client to receive a Broadcast message")
	}
}

func TestClientCountTracksRegistrations(t *testing.T) {
	h := newTestHub(t)
	if got := h.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() = %d, want 0", got)
	}
	registerTestClient(h)
	time.Sleep(10 * time.Millisecond)
	if got := h.ClientCount(); got != 1 {
		t.Fatalf("ClientCount() = %d, want 1", got)
	}
}
