package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const memoryBuffer = 100

type memoryJob struct {
	job     Job
	attempt int
}

// Memory is an in-process queue backed by a buffered channel. Failed jobs
// are redelivered with exponential backoff until maxAttempts is spent.
type Memory struct {
	jobs        chan memoryJob
	maxAttempts int
	backoff     time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemory creates an in-process queue. maxAttempts counts deliveries, so
// 3 means one initial try plus two retries. backoff is the first retry
// delay and doubles per attempt.
func NewMemory(maxAttempts int, backoff time.Duration) *Memory {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Memory{
		jobs:        make(chan memoryJob, memoryBuffer),
		maxAttempts: maxAttempts,
		backoff:     backoff,
		closed:      make(chan struct{}),
	}
}

func (m *Memory) Enqueue(ctx context.Context, job Job) error {
	select {
	case m.jobs <- memoryJob{job: job, attempt: 1}:
		return nil
	case <-m.closed:
		return fmt.Errorf("queue closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume processes jobs one at a time until ctx is cancelled or the
// queue is closed.
func (m *Memory) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return nil
		case mj := <-m.jobs:
			m.process(ctx, mj, handler)
		}
	}
}

func (m *Memory) process(ctx context.Context, mj memoryJob, handler Handler) {
	err := handler(ctx, mj.job)
	if err == nil {
		return
	}

	if mj.attempt >= m.maxAttempts {
		log.Printf("queue: job %s for %s/%s failed after %d attempts: %v",
			mj.job.AnalysisID, mj.job.Owner, mj.job.Name, mj.attempt, err)
		return
	}

	delay := m.backoff
	for i := 1; i < mj.attempt; i++ {
		delay *= 2
	}
	log.Printf("queue: job %s failed on attempt %d, retrying in %s: %v",
		mj.job.AnalysisID, mj.attempt, delay, err)

	retry := memoryJob{job: mj.job, attempt: mj.attempt + 1}
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		case <-m.closed:
			return
		}
		select {
		case m.jobs <- retry:
		case <-ctx.Done():
		case <-m.closed:
		}
	}()
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}
