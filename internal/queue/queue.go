// Package queue decouples analysis submission from execution. The HTTP
// layer enqueues jobs and a worker consumes them, either in-process or
// through Kafka when the service runs with separate worker processes.
package queue

import "context"

// Job identifies one repository analysis request.
type Job struct {
	AnalysisID string `json:"analysisId"`
	Owner      string `json:"owner"`
	Name       string `json:"name"`
}

// Handler processes one job. A returned error triggers redelivery until
// the backend's attempt budget is spent.
type Handler func(ctx context.Context, job Job) error

// Queue is the job transport. Consume blocks until ctx is cancelled.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
