package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Predefinied Queue IDs.
const (
	CreateQueue = "creation"
	UpdateQueue = "updating"
	DeleteQueue = "deletion"
)

// QueuePopTimeout bounds each blocking pop so consumers notice shutdown.
const QueuePopTimeout = time.Second

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// ErrQueueEmpty is returned by Pop when nothing arrived before its timeout.
var ErrQueueEmpty = errors.New("queue is empty")

// Queuer describes a queue of book change events.
type Queuer interface {
	Push(ctx context.Context, qid string, book BookEntity) error
	Pop(ctx context.Context, qids ...string) (string, BookEntity, error)
}

// redisQueue represents a queue backed by redis lists.
type redisQueue struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisQueue provides a queue which blocks on Pop for at most
// timeout. A zero timeout blocks until an event arrives.
func NewRedisQueue(client *redis.Client, timeout time.Duration) Queuer {
	return &redisQueue{client: client, timeout: timeout}
}

// Push enqueues a book onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, book BookEntity) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, bookBytes).Err()
}

// Pop returns the first dequeued book from the list of queue ids.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, BookEntity, error) {
	var book BookEntity
	infos, err := q.client.BLPop(ctx, q.timeout, qids...).Result()
	if errors.Is(err, redis.Nil) {
		return "", book, ErrQueueEmpty
	}
	if err != nil {
		return "", book, err
	}
	if len(infos) != 2 {
		return "", book, fmt.Errorf("queue: unexpected pop reply of %d items", len(infos))
	}
	if err = json.Unmarshal([]byte(infos[1]), &book); err != nil {
		return infos[0], book, err
	}
	return infos[0], book, nil
}
