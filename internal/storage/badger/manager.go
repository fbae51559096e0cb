package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
)

// Manager owns the Badger connection and the stores built on it
type Manager struct {
	db     *BadgerDB
	report *ReportStorage
	queue  *JobQueue
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.Config) (*Manager, error) {
	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	queue, err := NewJobQueue(db, QueueOptions{
		QueueName:         config.Queue.QueueName,
		VisibilityTimeout: config.Queue.GetVisibilityTimeout(),
		MaxReceive:        config.Queue.MaxReceive,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	manager := &Manager{
		db:     db,
		report: NewReportStorage(db, logger),
		queue:  queue,
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ReportStorage returns the report storage interface
func (m *Manager) ReportStorage() interfaces.ReportStorage {
	return m.report
}

// Queue returns the durable job queue
func (m *Manager) Queue() interfaces.JobQueue {
	return m.queue
}

// DB returns the underlying database connection
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
