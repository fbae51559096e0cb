package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/storage/badger"
	"github.com/ternarybob/refero/internal/storage/files"
)

// manager bundles the Badger stores with the filesystem artifact store
type manager struct {
	badger    *badger.Manager
	artifacts *files.ArtifactStore
}

var _ interfaces.StorageManager = (*manager)(nil)

// NewStorageManager creates the storage manager from config
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	badgerManager, err := badger.NewManager(logger, config)
	if err != nil {
		return nil, err
	}

	artifacts, err := files.NewArtifactStore(config.Storage.Artifacts.Dir, logger)
	if err != nil {
		badgerManager.Close()
		return nil, err
	}

	return &manager{
		badger:    badgerManager,
		artifacts: artifacts,
	}, nil
}

func (m *manager) ReportStorage() interfaces.ReportStorage {
	return m.badger.ReportStorage()
}

func (m *manager) ArtifactStore() interfaces.ArtifactStore {
	return m.artifacts
}

func (m *manager) JobQueue() interfaces.JobQueue {
	return m.badger.Queue()
}

func (m *manager) Close() error {
	return m.badger.Close()
}
