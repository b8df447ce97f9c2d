package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cafe-order-service/internal/cart"
	"cafe-order-service/internal/catalog"
	"cafe-order-service/internal/config"
	"cafe-order-service/internal/db"
	httpapi "cafe-order-service/internal/http"
	"cafe-order-service/internal/http/handlers"
	"cafe-order-service/internal/ledger"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/receipt"
	"cafe-order-service/internal/reconcile"
	"cafe-order-service/internal/storage"
	"cafe-order-service/internal/store"
	"cafe-order-service/internal/store/memstore"
	"cafe-order-service/internal/store/postgres"
	"cafe-order-service/internal/tables"
	"cafe-order-service/internal/ws"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket API",
		Long: `Start the cafe API.

Storage comes from STORE_DRIVER (postgres by default). Guest sessions live in
Redis when REDIS_ADDR is set and in memory otherwise. Domain events go to
RabbitMQ when RABBITMQ_URL is set; receipts are archived to the object store
when its credentials are configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg := opts.load()
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, pool, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := openSessions(ctx, cfg, log)
	queueClient := openQueue(cfg, log)
	if queueClient != nil {
		defer queueClient.Close()
	}

	// The floor hub reads from the registry while the registry publishes to
	// the hub, so events route through a fanout filled in below.
	var fanout queue.Fanout
	events := queue.PublisherFunc(func(ctx context.Context, ev queue.Event) {
		fanout.Publish(ctx, ev)
	})

	registry := tables.NewRegistry(st, events, log)
	orders := ledger.New(st, events, log)
	seats := reconcile.New(st, sessions, events, log)
	hub := ws.New(registry, log, cfg)

	fanout = append(fanout, hub)
	if queueClient != nil {
		fanout = append(fanout, queue.NewAMQPPublisher(queueClient, queue.EventsExchange, log))
	}
	var archiver *receipt.Archiver
	if cfg.ObjectStoreEnabled() {
		objects, err := storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		if err != nil {
			if cfg.IsProduction() {
				return fmt.Errorf("object store init failed: %w", err)
			}
			log.Warn("object store init failed; receipts will not be archived", zap.Error(err))
		} else {
			archiver = receipt.NewArchiver(orders, objects, cfg.CafeName, log)
			fanout = append(fanout, archiver)
			log.Info("receipt archiving enabled", zap.String("bucket", cfg.ObjectStoreBucket))
		}
	}

	go hub.Run(ctx)
	if pool != nil {
		go hub.ListenPostgres(ctx, pool)
	}
	if queueClient != nil {
		startRealtimeConsumer(ctx, cfg, log, queueClient, hub)
	}

	router, err := httpapi.NewRouter(log, cfg, &handlers.Handler{
		Logger:  log,
		Config:  cfg,
		Catalog: catalog.New(st),
		Tables:  registry,
		Ledger:  orders,
		Seats:   seats,
	}, hub)
	if err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("cafe api ready", zap.String("base", "/api"))
		log.Info("cafe ws ready", zap.String("base", "/ws"))
		log.Info("cafe service listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	if archiver != nil {
		archiver.Wait()
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, *pgxpool.Pool, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		if cfg.IsProduction() {
			log.Warn("memory store in production; state is lost on restart")
		}
		st := memstore.New()
		if !cfg.IsProduction() {
			st.SeedDemo()
		}
		log.Info("memory store enabled")
		return st, nil, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return postgres.New(pool, log), pool, nil
}

func openSessions(ctx context.Context, cfg config.Config, log *zap.Logger) cart.SessionStore {
	if cfg.RedisAddr == "" {
		log.Info("session store: memory", zap.Duration("ttl", cfg.SessionTTL))
		return cart.NewMemorySessionStore(cfg.SessionTTL)
	}
	client, err := cart.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		if cfg.IsProduction() {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		log.Warn("redis connection failed; falling back to memory sessions", zap.Error(err))
		return cart.NewMemorySessionStore(cfg.SessionTTL)
	}
	log.Info("session store: redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.SessionTTL))
	return cart.NewRedisSessionStore(client, cfg.SessionTTL)
}

func openQueue(cfg config.Config, log *zap.Logger) *queue.Client {
	if cfg.RabbitMQURL == "" {
		log.Info("event publishing disabled (RABBITMQ_URL is empty)")
		return nil
	}
	qc, err := queue.New(cfg.RabbitMQURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
		return nil
	}
	if err := queue.EnsureEventsTopology(qc); err != nil {
		if cfg.IsProduction() {
			log.Fatal("rabbitmq topology failed", zap.Error(err))
		}
		log.Warn("rabbitmq topology failed; continuing without events", zap.Error(err))
		_ = qc.Close()
		return nil
	}
	log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange))
	return qc
}

// startRealtimeConsumer refreshes the floor hub for events raised by other
// instances sharing the exchange.
func startRealtimeConsumer(ctx context.Context, cfg config.Config, log *zap.Logger, qc *queue.Client, hub *ws.Server) {
	if cfg.RabbitMQWorkerMode != "daemon" {
		log.Info("realtime consumer disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
		return
	}
	log.Info("realtime consumer enabled", zap.String("queue", queue.RealtimeQueue))
	go func() {
		err := qc.ConsumeWithRetry(ctx, queue.RealtimeQueue, func(ctx context.Context, body []byte) error {
			if _, err := queue.DecodeEvent(body); err != nil {
				return err
			}
			hub.Notify()
			return nil
		}, 5, 5*time.Second, log)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("consumer stopped", zap.Error(err))
		}
	}()
}
