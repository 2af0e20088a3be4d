// Package server initializes and runs the hostvault server. It wires the
// storage backends, the key-hierarchy services, the transit pipeline and
// the HTTP surface, and handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/config"
	"github.com/hostvault/hostvault/internal/server/connections"
	"github.com/hostvault/hostvault/internal/server/drives"
	"github.com/hostvault/hostvault/internal/server/grants"
	"github.com/hostvault/hostvault/internal/server/httpapi"
	"github.com/hostvault/hostvault/internal/server/inbox"
	"github.com/hostvault/hostvault/internal/server/outbox"
	"github.com/hostvault/hostvault/internal/server/owner"
	"github.com/hostvault/hostvault/internal/server/payloads"
	"github.com/hostvault/hostvault/internal/server/permissions"
	"github.com/hostvault/hostvault/internal/server/registrations"
	"github.com/hostvault/hostvault/internal/server/shared/db"
	"github.com/hostvault/hostvault/internal/server/transit"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	repos     db.RepositoryManager
	router    http.Handler
	processor *outbox.Processor
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout)

	rm, err := db.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := payloads.NewS3Store(ctx, payloads.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	ownerService := owner.NewService(rm.Owner())
	driveService := drives.NewService(rm.Drives())
	grantService := grants.NewService(rm.Grants(), driveService, logger)
	registrationService := registrations.NewService(rm.Registrations(), logger)
	connectionService := connections.NewService(rm.Connections(), logger)
	resolver := permissions.NewResolver(rm.Registrations(), rm.Grants(), logger)

	inboxService := inbox.NewService(rm.Inbox(), connectionService, blobs, logger)
	sender := transit.NewSender(connectionService, cfg.HostIdentity, logger)
	receiver := transit.NewReceiver(blobs, inboxService,
		transit.DefaultFilters(cfg.MaxPartSize), cfg.QuarantineTimeout, logger)

	outboxService := outbox.NewService(rm.Outbox(), connectionService, blobs, sender, outbox.Options{
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
		BackoffBase: cfg.OutboxBackoffBase,
		BackoffCap:  cfg.OutboxBackoffCap,
	}, logger)
	processor := outbox.NewProcessor(outboxService, receiver, cfg.SweepInterval, logger)

	jwtSecret := []byte(cfg.SecretKey)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Owner:       httpapi.NewOwnerHandler(ownerService, jwtSecret, cfg.SessionValidityDuration, logger),
		Grants:      httpapi.NewGrantHandler(driveService, grantService, registrationService, logger),
		Connections: httpapi.NewConnectionHandler(connectionService, logger),
		Outbox:      httpapi.NewOutboxHandler(outboxService, processor, logger),
		Inbox:       httpapi.NewInboxHandler(inboxService, logger),
		Transit:     httpapi.NewTransitHandler(receiver, inboxService, logger),
		Resolver:    resolver,
		JWTSecret:   jwtSecret,
	})

	return &App{
		config:    cfg,
		logger:    logger,
		repos:     rm,
		router:    router,
		processor: processor,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.processor.Start(ctx); err != nil {
		return fmt.Errorf("outbox processor start error: %w", err)
	}
	defer app.processor.Stop()

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	if conn := app.repos.Conn(); conn != nil {
		if err := conn.Close(); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}

	return nil
}
