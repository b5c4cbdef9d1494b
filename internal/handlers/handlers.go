package handlers

import (
	"time"

	"insta-archive/internal/cache"
	"insta-archive/internal/database"
	"insta-archive/internal/indexer"
)

// Handlers carries the API's collaborators.
type Handlers struct {
	db        *database.Database
	coord     *indexer.Coordinator
	cache     *cache.Cache
	dataDir   string
	startedAt time.Time
}

// New wires the handlers. cch may be nil to disable response caching.
func New(db *database.Database, coord *indexer.Coordinator, cch *cache.Cache, dataDir string) *Handlers {
	return &Handlers{
		db:        db,
		coord:     coord,
		cache:     cch,
		dataDir:   dataDir,
		startedAt: time.Now(),
	}
}
