package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/refero/internal/models"
)

// JobQueue is the durable queue abstraction the worker pool drains.
// Receive returns the message plus a delete function the worker calls after
// successful processing; an unacked message becomes visible again after the
// visibility timeout.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.GenerationJob) error
	EnqueueWithDelay(ctx context.Context, job *models.GenerationJob, delay time.Duration) error
	Receive(ctx context.Context) (*models.GenerationJob, func() error, error)
	Extend(ctx context.Context, jobID string, duration time.Duration) error
	Len(ctx context.Context) (int, error)
	Close() error
}
