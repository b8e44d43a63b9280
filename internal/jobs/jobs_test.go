package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"account-platform/backend/internal/bus"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rdb, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestEnqueue(t *testing.T) {
	rdb, mr, cleanup := newTestRedis(t)
	defer cleanup()

	q := NewQueue(rdb, "")
	task := Task{ClientID: "c1", Name: "send_email", Payload: "hello"}
	if err := q.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	vals, err := mr.List(DefaultQueueKey)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(vals) != 1 {
		t.Fatalf("queue length = %d, want 1", len(vals))
	}
	var got Task
	if err := json.Unmarshal([]byte(vals[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != task {
		t.Errorf("stored task = %+v, want %+v", got, task)
	}
}

func collectMessages(t *testing.T, sub bus.Subscription, n int) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for len(out) < n {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				t.Fatalf("subscription closed after %d messages, want %d", len(out), n)
			}
			var decoded map[string]interface{}
			if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
				t.Fatalf("unmarshal %q: %v", msg.Payload, err)
			}
			out = append(out, decoded)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d messages, want %d", len(out), n)
		}
	}
	return out
}

func TestProcessPublishesLifecycle(t *testing.T) {
	rdb, _, cleanup := newTestRedis(t)
	defer cleanup()
	b := bus.NewRedisBus(rdb)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, bus.ClientTopic("c1"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	w := NewWorker(rdb, b, "", 1, 0)
	w.Process(ctx, Task{ClientID: "c1", Name: "demo", Payload: "input-1"})

	// One started message, five step updates, one completion.
	msgs := collectMessages(t, sub, 7)

	first := msgs[0]
	if first["type"] != "task_progress" || first["status"] != "started" {
		t.Errorf("first message = %v", first)
	}
	if first["progress"].(float64) != 0 {
		t.Errorf("start progress = %v, want 0", first["progress"])
	}

	for i := 1; i <= 5; i++ {
		m := msgs[i]
		if m["type"] != "task_progress" || m["status"] != "processing" {
			t.Errorf("message %d = %v", i, m)
		}
		want := float64(i) / 5 * 100
		if m["progress"].(float64) != want {
			t.Errorf("progress %d = %v, want %v", i, m["progress"], want)
		}
	}

	last := msgs[6]
	if last["type"] != "task_completed" || last["status"] != "success" {
		t.Errorf("final message = %v", last)
	}
	data, ok := last["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("completion data = %v", last["data"])
	}
	if data["input"] != "input-1" || data["output"] != "Processed: input-1" {
		t.Errorf("completion data = %v", data)
	}
	if data["steps_completed"].(float64) != 5 {
		t.Errorf("steps_completed = %v", data["steps_completed"])
	}
}

func TestRunConsumesQueue(t *testing.T) {
	rdb, _, cleanup := newTestRedis(t)
	defer cleanup()
	b := bus.NewRedisBus(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, bus.ClientTopic("c9"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	q := NewQueue(rdb, "")
	if err := q.Enqueue(ctx, Task{ClientID: "c9", Name: "demo", Payload: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := NewWorker(rdb, b, "", 2, 0)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	msgs := collectMessages(t, sub, 7)
	if msgs[6]["type"] != "task_completed" {
		t.Errorf("final message = %v", msgs[6])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestRunDropsMalformedTask(t *testing.T) {
	rdb, mr, cleanup := newTestRedis(t)
	defer cleanup()
	b := bus.NewRedisBus(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr.Lpush(DefaultQueueKey, "not-json")

	sub, err := b.Subscribe(ctx, bus.ClientTopic("c1"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	w := NewWorker(rdb, b, "", 1, 0)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The malformed entry is dropped and a following valid task still runs.
	q := NewQueue(rdb, "")
	if err := q.Enqueue(ctx, Task{ClientID: "c1", Name: "demo", Payload: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	msgs := collectMessages(t, sub, 7)
	if msgs[6]["type"] != "task_completed" {
		t.Errorf("final message = %v", msgs[6])
	}

	cancel()
	<-done
}
