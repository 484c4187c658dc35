package api

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestHubSendsSnapshotOnRegister(t *testing.T) {
	t.Parallel()
	h := NewHub(slog.Default(), func() DashboardSnapshot {
		return DashboardSnapshot{State: "collecting"}
	})
	go h.Run()

	client := &Client{hub: h, send: make(chan []byte, 4)}
	h.register <- client

	select {
	case data := <-client.send:
		var evt DashboardEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Type != "snapshot" {
			t.Fatalf("expected a snapshot event on register, got %q", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the initial snapshot")
	}
}

func TestHubBroadcastsOpportunityToAllClients(t *testing.T) {
	t.Parallel()
	h := NewHub(slog.Default(), func() DashboardSnapshot { return DashboardSnapshot{} })
	go h.Run()

	a := &Client{hub: h, send: make(chan []byte, 4)}
	b := &Client{hub: h, send: make(chan []byte, 4)}
	h.register <- a
	h.register <- b
	<-a.send // drain each client's initial snapshot
	<-b.send

	h.BroadcastOpportunity(OpportunityView{Strategy: "n_cycle_arbitrage"})

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.send:
			var evt DashboardEvent
			if err := json.Unmarshal(data, &evt); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if evt.Type != "opportunity" {
				t.Fatalf("expected an opportunity event, got %q", evt.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for the broadcast opportunity")
		}
	}

	if got := h.Broadcasts(); got != 1 {
		t.Fatalf("Broadcasts() = %d, want 1", got)
	}
}

func TestHubUnregisterClosesClientSend(t *testing.T) {
	t.Parallel()
	h := NewHub(slog.Default(), nil)
	go h.Run()

	client := &Client{hub: h, send: make(chan []byte, 4)}
	h.register <- client
	h.unregister <- client

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected client.send to be closed after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client.send to close")
	}
}
