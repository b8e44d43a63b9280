package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"account-platform/backend/internal/bus"
)

// Progress message shapes published to ws:{client_id}. Clients key off the
// type field.
type progressMessage struct {
	Type     string  `json:"type"`
	TaskName string  `json:"task_name"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
}

type completedMessage struct {
	Type     string          `json:"type"`
	TaskName string          `json:"task_name"`
	Status   string          `json:"status"`
	Data     completedResult `json:"data"`
}

type completedResult struct {
	Input          string  `json:"input"`
	Output         string  `json:"output"`
	ProcessedAt    float64 `json:"processed_at"`
	StepsCompleted int     `json:"steps_completed"`
}

type errorMessage struct {
	Type     string `json:"type"`
	TaskName string `json:"task_name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

const taskSteps = 5

// Worker pops tasks off the queue and processes them, publishing progress,
// completion, and error messages to the requesting client's topic.
type Worker struct {
	rdb         *redis.Client
	bus         bus.Bus
	key         string
	concurrency int
	stepDelay   time.Duration
}

// NewWorker returns a Worker reading from the given queue key. An empty key
// uses DefaultQueueKey; concurrency below 1 is raised to 1.
func NewWorker(rdb *redis.Client, b bus.Bus, key string, concurrency int, stepDelay time.Duration) *Worker {
	if key == "" {
		key = DefaultQueueKey
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{rdb: rdb, bus: b, key: key, concurrency: concurrency, stepDelay: stepDelay}
}

// Run blocks consuming tasks until ctx is canceled. It pops with a short
// blocking timeout so cancellation is noticed within a second.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		vals, err := w.rdb.BRPop(ctx, time.Second, w.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: queue pop error: %v", err)
			continue
		}
		// BRPop returns [key, value].
		if len(vals) != 2 {
			continue
		}
		var task Task
		if err := json.Unmarshal([]byte(vals[1]), &task); err != nil {
			log.Printf("worker: dropping malformed task: %v", err)
			continue
		}
		w.Process(ctx, task)
	}
}

// Process runs one task end to end. Progress messages bracket the work: a
// started message, one message per step, then a completion or error message.
func (w *Worker) Process(ctx context.Context, task Task) {
	topic := bus.ClientTopic(task.ClientID)

	if err := w.publishProgress(ctx, topic, task.Name, 0, "started",
		fmt.Sprintf("Task '%s' started processing", task.Name)); err != nil {
		w.publishError(ctx, topic, task.Name, err)
		return
	}

	for step := 1; step <= taskSteps; step++ {
		select {
		case <-ctx.Done():
			w.publishError(ctx, topic, task.Name, ctx.Err())
			return
		case <-time.After(w.stepDelay):
		}
		progress := float64(step) / taskSteps * 100
		if err := w.publishProgress(ctx, topic, task.Name, progress, "processing",
			fmt.Sprintf("Processing step %d/%d", step, taskSteps)); err != nil {
			w.publishError(ctx, topic, task.Name, err)
			return
		}
	}

	done := completedMessage{
		Type:     "task_completed",
		TaskName: task.Name,
		Status:   "success",
		Data: completedResult{
			Input:          task.Payload,
			Output:         "Processed: " + task.Payload,
			ProcessedAt:    float64(time.Now().UnixNano()) / float64(time.Second),
			StepsCompleted: taskSteps,
		},
	}
	body, _ := json.Marshal(done)
	if err := w.bus.Publish(ctx, topic, body); err != nil {
		log.Printf("worker: publish completion for %s failed: %v", task.ClientID, err)
	}
}

func (w *Worker) publishProgress(ctx context.Context, topic, taskName string, progress float64, status, message string) error {
	body, _ := json.Marshal(progressMessage{
		Type:     "task_progress",
		TaskName: taskName,
		Progress: progress,
		Status:   status,
		Message:  message,
	})
	return w.bus.Publish(ctx, topic, body)
}

func (w *Worker) publishError(ctx context.Context, topic, taskName string, cause error) {
	body, _ := json.Marshal(errorMessage{
		Type:     "task_error",
		TaskName: taskName,
		Status:   "error",
		Message:  cause.Error(),
	})
	if err := w.bus.Publish(context.WithoutCancel(ctx), topic, body); err != nil {
		log.Printf("worker: publish error message failed: %v", err)
	}
}
