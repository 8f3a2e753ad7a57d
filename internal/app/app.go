package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/sanchey92/checkout-service/internal/config"
	"github.com/sanchey92/checkout-service/internal/consumer"
	httpapi "github.com/sanchey92/checkout-service/internal/http"
	"github.com/sanchey92/checkout-service/internal/http/handlers"
	"github.com/sanchey92/checkout-service/internal/service/cart"
	"github.com/sanchey92/checkout-service/internal/service/order"
	"github.com/sanchey92/checkout-service/internal/storage/pg"
	"github.com/sanchey92/checkout-service/internal/storage/sqlite"
	"github.com/sanchey92/checkout-service/pkg/kafka"
	"github.com/sanchey92/checkout-service/pkg/outbox"
	"github.com/sanchey92/checkout-service/pkg/rabbitmq"
)

type store interface {
	order.Repository
	cart.Repository
	outbox.RelayRepo
	handlers.Pinger
	Close() error
}

type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store
	server   *http.Server
	relay    *outbox.Relay
	consumer *kafka.Consumer
	closers  []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}

	logger := newLogger(cfg.App.LogLevel, cfg.App.Name)
	slog.SetDefault(logger)
	logger.Info("initialising",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("broker", cfg.Outbox.Broker))

	a := &App{cfg: cfg, logger: logger}

	st, err := openStore(ctx, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("app creation: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			logger.Error("close storage", slog.Any("error", err))
		}
	})

	orders := order.NewOrderService(logger.With(slog.String("component", "orders")), st, cfg.Kafka.EventTopic)
	carts := cart.NewCartService(logger.With(slog.String("component", "cart")), st)

	if err = a.initBrokers(orders); err != nil {
		a.close()
		return nil, fmt.Errorf("app creation: %w", err)
	}

	if cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(logger.With(slog.String("component", "http")), httpapi.Services{
		Orders: orders,
		Carts:  carts,
		DB:     st,
	})
	a.server = &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return a, nil
}

func openStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) (store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		st, err := sqlite.NewSQLiteStorage(ctx, logger, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite opened", slog.String("path", cfg.SQLite.Path))
		return st, nil
	default:
		st, err := pg.NewPGStorage(ctx, logger, &pg.StorageConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLife:     cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		if err = st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		logger.Info("postgres connected")
		return st, nil
	}
}

// initBrokers builds the outbox sink and the command consumer.
func (a *App) initBrokers(orders *order.Service) error {
	cfg := a.cfg
	var producer *kafka.Producer

	if cfg.Outbox.Broker == config.BrokerKafka || cfg.Kafka.ConsumeCommands {
		p, err := kafka.NewProducer(&kafka.ProducerConfig{
			Brokers:     cfg.Kafka.Brokers,
			Acks:        cfg.Kafka.Acks,
			LingerMs:    cfg.Kafka.LingerMs,
			Compression: cfg.Kafka.Compression,
		}, a.logger)
		if err != nil {
			return err
		}
		producer = p
		a.closers = append(a.closers, p.Close)
	}

	var publisher outbox.Publisher
	switch cfg.Outbox.Broker {
	case config.BrokerKafka:
		publisher = producer
	case config.BrokerRabbitMQ:
		pool, err := rabbitmq.NewChannelPool(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.ChannelPool, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		publisher = rabbitmq.NewPublisher(pool, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.PublishTimeout)
	}
	if publisher != nil {
		a.relay = outbox.NewRelay(a.store, publisher, a.logger.With(slog.String("component", "outbox")), outbox.RelayConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxRetries:   cfg.Outbox.MaxRetries,
			RetryBackoff: cfg.Outbox.RetryBackoff,
			MaxBackoff:   cfg.Outbox.MaxBackoff,
			Lease:        cfg.Outbox.Lease,
		})
	}

	if cfg.Kafka.ConsumeCommands {
		log := a.logger.With(slog.String("component", "commands"))
		c, err := kafka.NewConsumer(&kafka.ConsumerConfig{
			Topics:            []string{cfg.Kafka.CommandTopic},
			Brokers:           cfg.Kafka.Brokers,
			ConsumerGroup:     cfg.Kafka.ConsumerGroup,
			OffsetReset:       cfg.Kafka.OffsetReset,
			SessionTimeoutMs:  cfg.Kafka.SessionTimeoutMs,
			MaxPollInterval:   cfg.Kafka.MaxPollInterval,
			PartitionStrategy: cfg.Kafka.PartitionStrategy,
			MaxRetries:        cfg.Kafka.MaxRetries,
			RetryBackoff:      cfg.Kafka.RetryBackoff,
		}, consumer.StatusCommands(orders, log), kafka.DeadLetterTo(producer, cfg.Kafka.DLQTopic), log)
		if err != nil {
			return err
		}
		a.consumer = c
	}
	return nil
}

// Run serves until ctx is cancelled, then drains the HTTP server and stops
// the background workers.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server started", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		a.logger.Info("http server shutting down")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if a.relay != nil {
		g.Go(func() error { return a.relay.Run(gctx) })
	}
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(gctx) })
	}

	err := g.Wait()
	a.logger.Info("application stopped")
	return err
}

// close releases resources in reverse order of acquisition.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newLogger(level, service string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With(slog.String("service", service))
}
