package db

import (
	"context"
	"database/sql"

	"github.com/hostvault/hostvault/internal/server/connections"
	"github.com/hostvault/hostvault/internal/server/drives"
	"github.com/hostvault/hostvault/internal/server/grants"
	"github.com/hostvault/hostvault/internal/server/inbox"
	"github.com/hostvault/hostvault/internal/server/outbox"
	"github.com/hostvault/hostvault/internal/server/owner"
	"github.com/hostvault/hostvault/internal/server/registrations"
)

type InMemoryRepositoryManager struct {
	owner         owner.Repository
	drives        drives.Repository
	grants        grants.Repository
	registrations registrations.Repository
	connections   connections.Repository
	outbox        outbox.Repository
	inbox         inbox.Repository
}

func NewInMemoryRepositoryManager() RepositoryManager {
	return &InMemoryRepositoryManager{
		owner:         owner.NewInMemoryRepository(),
		drives:        drives.NewInMemoryRepository(),
		grants:        grants.NewInMemoryRepository(),
		registrations: registrations.NewInMemoryRepository(),
		connections:   connections.NewInMemoryRepository(),
		outbox:        outbox.NewInMemoryRepository(),
		inbox:         inbox.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) Conn() *sql.DB {
	return nil
}

func (m *InMemoryRepositoryManager) Owner() owner.Repository {
	return m.owner
}

func (m *InMemoryRepositoryManager) Drives() drives.Repository {
	return m.drives
}

func (m *InMemoryRepositoryManager) Grants() grants.Repository {
	return m.grants
}

func (m *InMemoryRepositoryManager) Registrations() registrations.Repository {
	return m.registrations
}

func (m *InMemoryRepositoryManager) Connections() connections.Repository {
	return m.connections
}

func (m *InMemoryRepositoryManager) Outbox() outbox.Repository {
	return m.outbox
}

func (m *InMemoryRepositoryManager) Inbox() inbox.Repository {
	return m.inbox
}
