package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/GovForge/internal/logger"
	"github.com/Strob0t/GovForge/internal/port/messagequeue"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

func TestDurableName(t *testing.T) {
	if got := durableName("governance.execution.status"); got != "govforge_governance_execution_status" {
		t.Fatalf("durableName = %q", got)
	}
}

func TestQueue_PublishSubscribeWithHeaders(t *testing.T) {
	q := testConnect(t)
	subject := "governance.test." + t.Name()

	var (
		mu      sync.Mutex
		gotReq  string
		gotProp string
		gotData []byte
		done    = make(chan struct{})
		once    sync.Once
	)
	stop, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, d []byte) error {
		mu.Lock()
		gotReq, gotProp, gotData = logger.RequestID(ctx), logger.ProposalID(ctx), d
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	ctx := logger.WithProposalID(logger.WithRequestID(context.Background(), "req-1"), "prop-1")
	if err := q.Publish(ctx, subject, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotReq != "req-1" || gotProp != "prop-1" {
		t.Errorf("headers not propagated: request=%q proposal=%q", gotReq, gotProp)
	}
	if string(gotData) != `{"ok":true}` {
		t.Errorf("data = %s", gotData)
	}
}

func TestQueue_InvalidPayloadGoesToDLQ(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	subject := messagequeue.SubjectExecutionStatus
	called := make(chan struct{}, 1)
	stop, err := q.Subscribe(ctx, subject, func(context.Context, string, []byte) error {
		called <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	dlq := make(chan []byte, 1)
	stopDLQ, err := q.Subscribe(ctx, subject+dlqSuffix, func(_ context.Context, _ string, d []byte) error {
		dlq <- d
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe dlq: %v", err)
	}
	defer stopDLQ()

	// Missing proposal_id fails validation.
	body, _ := json.Marshal(map[string]string{"status": "completed"})
	if err := q.Publish(ctx, subject, body); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-dlq:
		if string(got) != string(body) {
			t.Errorf("dlq data = %s", got)
		}
	case <-called:
		t.Fatal("invalid message reached the handler")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for DLQ message")
	}
}

func TestQueue_KeyValue(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "test-kv-"+t.Name(), 30*time.Second)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	if _, err := kv.Put(ctx, "greeting", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "greeting")
	if err != nil || string(entry.Value()) != "hello" {
		t.Fatalf("Get: %v %v", entry, err)
	}
	if err := kv.Delete(ctx, "greeting"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "greeting"); !errors.Is(err, jetstream.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestQueue_IsConnected(t *testing.T) {
	q := testConnect(t)
	if !q.IsConnected() {
		t.Error("IsConnected() = false after Connect, want true")
	}
}
