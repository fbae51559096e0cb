package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// queueMessage wraps a generation job with queue bookkeeping. Messages are
// keyed by job ID so visibility extension can address the in-flight message
// directly.
type queueMessage struct {
	ID           string               `json:"id"`
	Body         models.GenerationJob `json:"body"`
	EnqueuedAt   time.Time            `json:"enqueued_at"`
	VisibleAt    time.Time            `json:"visible_at"`
	ReceiveCount int                  `json:"receive_count"`
}

// JobQueue implements a persistent generation queue on BadgerDB. Two key
// families: message data under queue:{name}:msg:{id} and a visibility index
// under queue:{name}:index:{timestamp}:{id} for ordered readiness scans.
type JobQueue struct {
	db                *badgerdb.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

var _ interfaces.JobQueue = (*JobQueue)(nil)

// NewJobQueue creates a Badger-backed job queue
func NewJobQueue(db *BadgerDB, cfg QueueOptions, logger arbor.ILogger) (*JobQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if cfg.QueueName == "" {
		return nil, errors.New("queue name is required")
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 2 * time.Minute
	}
	if cfg.MaxReceive <= 0 {
		cfg.MaxReceive = 3
	}

	return &JobQueue{
		db:                db.Store().Badger(),
		queueName:         cfg.QueueName,
		visibilityTimeout: cfg.VisibilityTimeout,
		maxReceive:        cfg.MaxReceive,
		logger:            logger,
	}, nil
}

// QueueOptions configures the job queue
type QueueOptions struct {
	QueueName         string
	VisibilityTimeout time.Duration
	MaxReceive        int
}

// Enqueue adds a job to the queue, immediately visible.
func (q *JobQueue) Enqueue(ctx context.Context, job *models.GenerationJob) error {
	return q.enqueue(job, time.Now())
}

// EnqueueWithDelay adds a job that becomes visible after the delay. Retry
// backoff rides on the visibility index rather than worker-side sleeps.
func (q *JobQueue) EnqueueWithDelay(ctx context.Context, job *models.GenerationJob, delay time.Duration) error {
	return q.enqueue(job, time.Now().Add(delay))
}

func (q *JobQueue) enqueue(job *models.GenerationJob, visibleAt time.Time) error {
	qMsg := queueMessage{
		ID:         job.JobID,
		Body:       *job,
		EnqueuedAt: time.Now(),
		VisibleAt:  visibleAt,
	}

	data, err := json.Marshal(qMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return q.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(q.msgKey(qMsg.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(qMsg.VisibleAt, qMsg.ID), []byte{})
	})
}

// Receive pulls the next visible job. The returned delete function acks the
// message; an unacked message reappears after the visibility timeout with an
// incremented receive count.
func (q *JobQueue) Receive(ctx context.Context) (*models.GenerationJob, func() error, error) {
	var qMsg queueMessage
	var msgID string
	var oldIndexKey []byte

	// The found flag lives outside the transaction: an empty scan must
	// return nil from the update so poison-message and orphaned-index
	// deletions commit instead of rolling back with the error.
	found := false

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}

			// Index keys sort by timestamp, a future entry ends the scan.
			if ts.After(now) {
				break
			}

			item, err := txn.Get(q.msgKey(id))
			if err != nil {
				if err == badgerdb.ErrKeyNotFound {
					// Orphaned index entry, clean it up and keep scanning.
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &qMsg)
			}); err != nil {
				return err
			}

			if qMsg.ReceiveCount >= q.maxReceive {
				// Poison message: drop it so it cannot loop forever. The
				// stale-lease sweep terminalizes the owning report.
				q.logger.Warn().
					Str("job_id", id).
					Str("report_id", qMsg.Body.ReportID).
					Int("receive_count", qMsg.ReceiveCount).
					Msg("Dropping job after max receives")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return nil
		}

		qMsg.ReceiveCount++
		qMsg.VisibleAt = time.Now().Add(q.visibilityTimeout)

		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(msgID), newData); err != nil {
			return err
		}

		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(q.indexKey(qMsg.VisibleAt, msgID), []byte{})
	})

	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, models.ErrNoMessage
	}

	deleteFn := func() error {
		return q.db.Update(func(txn *badgerdb.Txn) error {
			item, err := txn.Get(q.msgKey(msgID))
			if err != nil {
				if err == badgerdb.ErrKeyNotFound {
					return nil // Already deleted
				}
				return err
			}

			var current queueMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			if err := txn.Delete(q.indexKey(current.VisibleAt, msgID)); err != nil {
				if err != badgerdb.ErrKeyNotFound {
					return err
				}
			}
			return txn.Delete(q.msgKey(msgID))
		})
	}

	job := qMsg.Body
	return &job, deleteFn, nil
}

// Extend pushes out the visibility timeout for an in-flight job. Workers call
// this as a heartbeat while a render is still making progress.
func (q *JobQueue) Extend(ctx context.Context, jobID string, duration time.Duration) error {
	return q.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(q.msgKey(jobID))
		if err != nil {
			return err
		}

		var qMsg queueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &qMsg)
		}); err != nil {
			return err
		}

		oldVisibleAt := qMsg.VisibleAt
		qMsg.VisibleAt = time.Now().Add(duration)

		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(jobID), newData); err != nil {
			return err
		}

		if err := txn.Delete(q.indexKey(oldVisibleAt, jobID)); err != nil {
			if err != badgerdb.ErrKeyNotFound {
				return err
			}
		}
		return txn.Set(q.indexKey(qMsg.VisibleAt, jobID), []byte{})
	})
}

// Len counts all messages in the queue, visible or not.
func (q *JobQueue) Len(ctx context.Context) (int, error) {
	count := 0
	err := q.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close is a no-op, the database connection is managed externally.
func (q *JobQueue) Close() error {
	return nil
}

func (q *JobQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.queueName, id))
}

func (q *JobQueue) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so lexical ordering matches numeric ordering
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.queueName, visibleAt.UnixNano(), id))
}

func (q *JobQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", q.queueName)
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 21 { // 20 digits + separator
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}
