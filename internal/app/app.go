package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/autoyard/garageapi/internal/adapters/httpapi"
	"github.com/autoyard/garageapi/internal/adapters/notify"
	sqliteadapter "github.com/autoyard/garageapi/internal/adapters/sqlite"
	"github.com/autoyard/garageapi/internal/adapters/sqlite/gormsqlite"
	"github.com/autoyard/garageapi/internal/catalog"
	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/internal/core/ports"
	"github.com/autoyard/garageapi/internal/core/usecase"
	"github.com/autoyard/garageapi/migrations"
)

type Config struct {
	Addr   string
	DBPath string

	JWTSecret string

	WebhookURL    string
	WebhookSecret string

	BootstrapAPIKey string
	BootstrapUserID string
	BootstrapRole   string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	resources := catalog.Default()
	validator, err := usecase.NewPayloadValidator(resources)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("compile resource schemas: %w", err)
	}

	recordStore := sqliteadapter.NewRecordStore(db)
	auditRepo := sqliteadapter.NewAuditRepository(db)
	flagRepo := sqliteadapter.NewFlagRepository(db)
	deliveryRepo := sqliteadapter.NewDeliveryRepository(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)

	resourceService := usecase.NewResourceService(recordStore, validator, usecase.NewComposer())
	discountService := usecase.NewDiscountService(recordStore)
	flagService := usecase.NewFlagService(flagRepo, auditRepo)
	auditService := usecase.NewAuditService(auditRepo)
	authService := usecase.NewAuthService(apiKeyRepo, cfg.JWTSecret)

	var sender ports.Sender = notify.NewLogSender()
	if cfg.WebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.WebhookURL, cfg.WebhookSecret, 0)
	}
	dispatcher := usecase.NewDeliveryDispatcher(deliveryRepo, sender, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	if cfg.BootstrapAPIKey != "" {
		userID := cfg.BootstrapUserID
		if userID == "" {
			userID = "bootstrap"
		}
		role := cfg.BootstrapRole
		if role == "" {
			role = domain.RoleAdmin
		}

		bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := apiKeyRepo.Upsert(bootstrapCtx, domain.APIKey{
			TokenHash: usecase.HashToken(cfg.BootstrapAPIKey),
			UserID:    userID,
			Role:      role,
			Name:      "bootstrap",
			Active:    true,
			CreatedAt: time.Now().UTC(),
		})
		bootstrapCancel()
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap api key: %w", err)
		}
	}

	handler := httpapi.NewHandler(resources, resourceService, discountService, flagService, auditService, authService)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}
