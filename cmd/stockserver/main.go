package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/catalog"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/gateway"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/index"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/repository"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/server"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/session"
	"github.com/shubham-shewale/stock-orderbook/pkg/config"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <port>\n", os.Args[0])
		os.Exit(1)
	}
	port := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, port); err != nil {
		logger.Error("Server failed", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Shutdown Complete")
}

// run serves until ctx is cancelled. Every resource it opens is closed
// before it returns, on failure paths too.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, port string) error {
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	tree := index.New()
	n, err := repository.Restore(store, tree)
	if err != nil {
		return fmt.Errorf("load stock: %w", err)
	}
	cat := catalog.New(tree, cfg.Server.Capacity)
	if err := cat.Build(); err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	logger.Info("Stock loaded", zap.Int("records", n), zap.Int("height", tree.Height()))

	var publishers repository.MultiPublisher
	var mirror repository.Mirror
	if cfg.Redis.Addr != "" {
		rdb := repository.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, feed may lag", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		feed := repository.NewRedisFeed(rdb)
		defer feed.Close()
		publishers = append(publishers, feed)
		mirror = feed
	}
	if len(cfg.Kafka.Brokers) > 0 {
		topic := repository.NewTradeTopic(cfg.Kafka.Topic, 4, &repository.RealKafkaDialer{Dialer: kafka.DefaultDialer}, repository.RealClock{}, logger)
		if err := topic.Ensure(ctx, cfg.Kafka.Brokers); err != nil {
			logger.Warn("Trade topic not confirmed, producer retries on write", zap.Error(err))
		}
		producer := repository.NewKafkaPublisher(repository.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), cfg.Kafka.PublishTimeout)
		defer producer.Close()
		publishers = append(publishers, producer)
	}

	persister := repository.NewPersister(cat, store, mirror, logger)
	var publisher repository.Publisher = repository.NopPublisher{}
	if len(publishers) > 0 {
		publisher = publishers
	}
	handler := session.NewHandler(cat, persister, publisher, logger, cfg.Server.MessageSize)

	strategy, err := server.New(cfg.Server, handler, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, port))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", port, err)
	}

	var httpSrv *http.Server
	if cfg.Gateway.Addr != "" {
		httpSrv = &http.Server{Addr: cfg.Gateway.Addr, Handler: gateway.Handler(ctx, handler, logger)}
		go func() {
			logger.Info("Gateway started", zap.String("addr", cfg.Gateway.Addr))
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Gateway error", zap.Error(err))
			}
		}()
	}

	logger.Info("Server started", zap.String("port", port), zap.String("mode", cfg.Server.Mode))
	serveErr := strategy.Serve(ctx, ln)

	if httpSrv != nil {
		httpSrv.Shutdown(context.Background())
	}
	if err := persister.Persist(context.Background()); err != nil {
		return errors.Join(serveErr, fmt.Errorf("final persist: %w", err))
	}
	return serveErr
}

func openStore(cfg config.StoreConfig) (repository.StockStore, error) {
	if cfg.Backend == config.BackendPebble {
		store, err := repository.OpenPebbleStore(cfg.PebbleDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return repository.NewFileStore(cfg.Path), nil
}
