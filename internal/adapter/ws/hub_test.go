package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(context.Background(), "p1", Message{Type: "test", Payload: []byte(`{"key":"value"}`)})
	hub.BroadcastEvent(context.Background(), EventProposalTransition, ProposalEvent{ProposalID: "p1", Status: "voting"})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()
	// A channel cannot be marshaled to JSON: logged, not panicked.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel})
	if hub.ConnectionCount() != 0 {
		t.Fatal("expected 0 connections")
	}
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func waitForConns(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, got %d", n, hub.ConnectionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversFilteredEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	defer hub.Close()

	all := dial(t, srv, "")
	defer all.CloseNow()
	only := dial(t, srv, "?proposal_id=p2")
	defer only.CloseNow()
	waitForConns(t, hub, 2)

	hub.BroadcastEvent(context.Background(), EventVoteCast, VoteEvent{ProposalID: "p1", VoterID: "v1", Choice: "for", Power: 3})
	hub.BroadcastEvent(context.Background(), EventVoteCast, VoteEvent{ProposalID: "p2", VoterID: "v2", Choice: "against", Power: 4})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, want := range []string{"p1", "p2"} {
		msg := readMessage(ctx, t, all)
		var ev VoteEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatal(err)
		}
		if msg.Type != EventVoteCast || ev.ProposalID != want {
			t.Fatalf("unfiltered client: got %s/%s, want %s", msg.Type, ev.ProposalID, want)
		}
	}

	msg := readMessage(ctx, t, only)
	var ev VoteEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.ProposalID != "p2" {
		t.Fatalf("filtered client received %s", ev.ProposalID)
	}
}

func TestHubCloseDisconnects(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv, "")
	defer c.CloseNow()
	waitForConns(t, hub, 1)

	hub.Close()
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections after close, got %d", hub.ConnectionCount())
	}
}

func readMessage(ctx context.Context, t *testing.T, c *websocket.Conn) Message {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}
