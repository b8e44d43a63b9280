// Package jobs is the background task edge: requests enqueue tasks onto a
// Redis list, workers pop them and report progress over the client's pub/sub
// topic.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the Redis list holding pending tasks.
const DefaultQueueKey = "jobs:tasks"

// Task is one unit of background work, addressed back to the client that
// requested it.
type Task struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Payload  string `json:"payload"`
}

// Queue enqueues tasks for the workers.
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue returns a Queue over the given Redis list key. An empty key uses
// DefaultQueueKey.
func NewQueue(rdb *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{rdb: rdb, key: key}
}

// Enqueue pushes the task onto the queue. Fire and forget: the caller gets no
// handle on the task's outcome; results arrive on the client's topic.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, body).Err()
}
