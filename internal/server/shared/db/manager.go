// Package db wires the per-domain repositories to a backing store: a
// postgres database in production, plain maps in tests.
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

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Owner() owner.Repository
	Drives() drives.Repository
	Grants() grants.Repository
	Registrations() registrations.Repository
	Connections() connections.Repository
	Outbox() outbox.Repository
	Inbox() inbox.Repository
}
