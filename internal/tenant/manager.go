package tenant

import (
	"log/slog"
	"sync"

	"github.com/skycms/skycms/internal/database"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
)

// Manager owns the per-tenant database handles. Handles are opened
// lazily on first use and cached for the life of the process.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*database.DB
	logger  *slog.Logger
}

// NewManager creates a manager with no open handles.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		handles: make(map[string]*database.DB),
		logger:  logger,
	}
}

// DB returns the database handle for the tenant, opening it on first
// use. Safe for concurrent use.
func (m *Manager) DB(t *Tenant) (*database.DB, error) {
	m.mu.RLock()
	db, ok := m.handles[t.ID]
	m.mu.RUnlock()
	if ok {
		return db, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have opened it while we waited for the lock.
	if db, ok := m.handles[t.ID]; ok {
		return db, nil
	}

	db, err := database.Open(t.DSN)
	if err != nil {
		return nil, errors.DatabaseError("failed to open tenant database").
			WithCause(err).
			WithContext("tenant", t.ID).
			Build()
	}

	m.logger.Debug("opened tenant database", logfields.Tenant(t.ID))
	m.handles[t.ID] = db
	return db, nil
}

// Close closes all open handles. The first error is returned, but every
// handle is attempted.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for id, db := range m.handles {
		if err := db.Close(); err != nil && first == nil {
			first = errors.DatabaseError("failed to close tenant database").
				WithCause(err).
				WithContext("tenant", id).
				Build()
		}
		delete(m.handles, id)
	}
	return first
}
