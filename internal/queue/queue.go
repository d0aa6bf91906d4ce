// Package queue is the durable FIFO hand-off between message submission and
// AI generation, backed by a named Redis list. Producers push onto the head
// with LPUSH; the worker pops from the tail with BRPOP, so jobs leave in the
// order they arrived. No per-user fairness: a burst from one user delays everyone
// behind it in the same list.
//
// Delivery is at-least-once at best: a job popped but not fully processed
// before a crash is gone, because there is no acknowledgment or redelivery
// mechanism. This is an accepted gap, not an oversight.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gemchat/internal/domain"
)

// Job is the serialized payload carried through the queue. It exists only
// between enqueue and successful processing; durability is the Redis list's.
type Job struct {
	ChatroomID    string `json:"chatroomId"`
	UserID        string `json:"userId"`
	UserMessageID string `json:"userMessageId"`
	UserContent   string `json:"userContent"`
}

// ErrNoJob is returned by Dequeue when the blocking window elapsed without a
// job arriving. The worker treats it as "check the stop flag and pop again".
var ErrNoJob = errors.New("queue: no job available")

// MalformedJobError reports a payload that could not be decoded. The worker
// logs and drops these; they are never retried.
type MalformedJobError struct {
	Payload string
	Err     error
}

func (e *MalformedJobError) Error() string {
	return fmt.Sprintf("queue: malformed job payload: %v", e.Err)
}

func (e *MalformedJobError) Unwrap() error {
	return e.Err
}

// dequeueBlock bounds a single BRPOP so the worker can observe its stop flag
// between pops without busy-waiting.
const dequeueBlock = 5 * time.Second

// Queue is a named durable FIFO over Redis.
type Queue struct {
	rdb  *redis.Client
	name string
}

// New creates a Queue on the given list name.
func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

// Name returns the backing list name.
func (q *Queue) Name() string {
	return q.name
}

// Enqueue pushes the job onto the head of the list. It never blocks beyond
// the push itself. An unreachable Redis surfaces as EUNAVAILABLE so the producer
// fails loudly instead of silently losing the message.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	const op = "queue.enqueue"

	payload, err := encodeJob(job)
	if err != nil {
		return domain.Internal(err, op, "failed to serialize job")
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return domain.Unavailable(err, op, "message queue is unavailable")
	}
	return nil
}

// Dequeue pops exactly one job from the tail of the list, blocking up to the
// internal window. Returns ErrNoJob when the window elapsed empty, a
// MalformedJobError for an undecodable payload, and EUNAVAILABLE when Redis
// cannot be reached.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	const op = "queue.dequeue"

	res, err := q.rdb.BRPop(ctx, dequeueBlock, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrNoJob
		}
		return Job{}, domain.Unavailable(err, op, "message queue is unavailable")
	}

	// BRPOP returns [list name, payload].
	job, err := decodeJob(res[1])
	if err != nil {
		return Job{}, &MalformedJobError{Payload: res[1], Err: err}
	}
	return job, nil
}

func encodeJob(job Job) (string, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJob(payload string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return Job{}, err
	}
	return job, nil
}
