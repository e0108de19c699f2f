package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	bankpaymentservice "bankpay/contexts/finance-core/bank-payment-service"
	"bankpay/contexts/finance-core/bank-payment-service/adapters/bankapi"
	postgresadapter "bankpay/contexts/finance-core/bank-payment-service/adapters/postgres"
	workerapp "bankpay/contexts/finance-core/bank-payment-service/application/workers"
	"bankpay/contexts/finance-core/bank-payment-service/domain/services"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
	"bankpay/internal/platform/config"
	"bankpay/internal/platform/db"
	"bankpay/internal/platform/httpserver"
	"bankpay/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workerapp.OutboxRelay
	auditLog     workerapp.AuditLogConsumer
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.LogLevel).With("service", cfg.ServiceName, "process", "api")

	// Key material and bank settings are checked before anything touches the network.
	keys, err := services.LoadKeyring(cfg.Bank.PublicKeyFile, cfg.Bank.PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	settings := BankSettings(cfg.Bank)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	pg, err := connectPostgres(cfg)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	module := bankpaymentservice.NewModule(bankpaymentservice.Dependencies{
		Transactions: repo,
		Ledger:       postgresadapter.NewLedger(pg.DB, logger),
		Gateway:      bankapi.NewClient(cfg.Bank.RequestTimeout, logger),
		Settings:     settings,
		Keys:         keys,
		Clock:        postgresadapter.SystemClock{},
		IDGenerator:  postgresadapter.UUIDGenerator{},
		Logger:       logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.LogLevel).With("service", cfg.ServiceName, "process", "worker")

	pg, err := connectPostgres(cfg)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			Topic:     cfg.AuditTopic,
			BatchSize: 100,
			Logger:    logger,
		},
		auditLog: workerapp.AuditLogConsumer{
			Subscriber: kafka,
			Topic:      cfg.AuditTopic,
			Logger:     logger,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

// BankSettings maps process configuration onto the settings both flows consume.
func BankSettings(cfg config.BankConfig) ports.BankSettings {
	return ports.BankSettings{
		Credentials: ports.Credentials{
			AggregatorID:   cfg.AggregatorID,
			AggregatorName: cfg.AggregatorName,
			CorporateID:    cfg.CorporateID,
			UserID:         cfg.UserID,
			URN:            cfg.URN,
		},
		OTPURL:                    cfg.OTPURL,
		PaymentURL:                cfg.PaymentURL,
		APIKey:                    cfg.APIKey,
		DebitAccountNo:            cfg.DebitAccountNo,
		DebitLedgerAccount:        cfg.DebitLedgerAccount,
		IFSC:                      cfg.IFSC,
		PaymentMode:               cfg.PaymentMode,
		SettlementReferencePrefix: cfg.SettlementReferencePrefix,
	}
}

// NewLogger builds the process JSON logger at the configured level.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func connectPostgres(cfg config.Config) (*db.Postgres, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := db.Connect(cfg.PostgresDSN, db.Options{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := postgresadapter.Migrate(ctx, pg.DB); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	return pg, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.auditLog.Start(ctx); err != nil {
		return err
	}

	interval := w.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", interval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("outbox relay cycle failed",
				"event", "bootstrap_worker_relay_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
