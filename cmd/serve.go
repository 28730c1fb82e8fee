package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cass-tech/storefront/internal/cache"
	"github.com/cass-tech/storefront/internal/gateway"
	apihttp "github.com/cass-tech/storefront/internal/http"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/cass-tech/storefront/internal/publisher"
	"github.com/cass-tech/storefront/internal/repository"
	"github.com/cass-tech/storefront/internal/saleor"
	"github.com/cass-tech/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storefront checkout API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cfg, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := log.L(ctx)

	// trace ids flow from the browser through to the checkout API
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	client := saleor.NewClient(cfg.Saleor)
	registry, err := gateway.NewDefaultRegistry(client, cfg.Storefront.Gateways)
	if err != nil {
		return fmt.Errorf("invalid payment gateways: %w", err)
	}
	logger.Infof("Checkout API at %s, gateways %v", cfg.Saleor.APIURL, registry.IDs())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// completions still go through, only without the cross-replica guard
		logger.WithError(err).Warn("Redis ping failed")
	} else {
		logger.Info("Redis ping succeeded")
	}
	guard := cache.NewRedisGuard(redisClient, cfg.Redis.CompletionLockTTL, cfg.Redis.CompletedOrderTTL)

	repo, err := repository.NewRepository(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return err
	}
	logger.Info("Database migrations completed")

	writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	poller := publisher.NewOutboxPoller(repo, writer, cfg.Kafka.PollInterval)
	pollerCtx, stopPoller := context.WithCancel(ctx)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(pollerCtx)
	}()

	svc := service.NewCheckoutService(client, registry, guard, repo, service.Options{
		StorefrontURL:  cfg.Storefront.URL,
		DefaultChannel: cfg.Storefront.DefaultChannel,
		SubmitWait:     cfg.Session.SubmitWait,
		IdleTTL:        cfg.Session.IdleTTL,
		SweepInterval:  cfg.Session.SweepInterval,
	})

	handler := apihttp.NewCheckoutHandler(svc, cfg.HTTP.RequestTimeout)
	router := apihttp.NewRouter(handler, cfg.HTTP, cfg.CORS,
		apihttp.HealthCheck{Name: "database", Check: repo.Ping},
		apihttp.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Storefront API listening on :%s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down storefront API...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	shutdown(shutdownCtx, srv, svc, func() {
		stopPoller()
		<-pollerDone
	}, poller)

	logger.Info("Storefront API stopped")
	return runErr
}

// shutdown stops the server, then the sessions, then the outbox poller and its kafka writer.
// Sessions go before the poller because a completion still running writes to the outbox.
func shutdown(ctx context.Context, srv *http.Server, sessions io.Closer, stopPoller func(), writer io.Closer) {
	logger := log.L(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	if err := sessions.Close(); err != nil {
		logger.WithError(err).Warn("failed to close checkout sessions")
	}
	stopPoller()
	if err := writer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka writer")
	}
}
