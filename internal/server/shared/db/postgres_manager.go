package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hostvault/hostvault/internal/server/connections"
	"github.com/hostvault/hostvault/internal/server/drives"
	"github.com/hostvault/hostvault/internal/server/grants"
	"github.com/hostvault/hostvault/internal/server/inbox"
	"github.com/hostvault/hostvault/internal/server/migrations"
	"github.com/hostvault/hostvault/internal/server/outbox"
	"github.com/hostvault/hostvault/internal/server/owner"
	"github.com/hostvault/hostvault/internal/server/registrations"
)

type PostgresRepositoryManager struct {
	db            *sql.DB
	owner         owner.Repository
	drives        drives.Repository
	grants        grants.Repository
	registrations registrations.Repository
	connections   connections.Repository
	outbox        outbox.Repository
	inbox         inbox.Repository
}

func NewPostgresRepositoryManager(dsn string) (RepositoryManager, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:            conn,
		owner:         owner.NewPostgresRepository(conn),
		drives:        drives.NewPostgresRepository(conn),
		grants:        grants.NewPostgresRepository(conn),
		registrations: registrations.NewPostgresRepository(conn),
		connections:   connections.NewPostgresRepository(conn),
		outbox:        outbox.NewPostgresRepository(conn),
		inbox:         inbox.NewPostgresRepository(conn),
	}

	if err := m.RunMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return m, nil
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Owner() owner.Repository {
	return m.owner
}

func (m *PostgresRepositoryManager) Drives() drives.Repository {
	return m.drives
}

func (m *PostgresRepositoryManager) Grants() grants.Repository {
	return m.grants
}

func (m *PostgresRepositoryManager) Registrations() registrations.Repository {
	return m.registrations
}

func (m *PostgresRepositoryManager) Connections() connections.Repository {
	return m.connections
}

func (m *PostgresRepositoryManager) Outbox() outbox.Repository {
	return m.outbox
}

func (m *PostgresRepositoryManager) Inbox() inbox.Repository {
	return m.inbox
}
