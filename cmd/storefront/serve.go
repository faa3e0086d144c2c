package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cicadacove/storefront/internal/auth"
	"github.com/cicadacove/storefront/internal/cart/cache"
	"github.com/cicadacove/storefront/internal/cart/consumer"
	cartrepo "github.com/cicadacove/storefront/internal/cart/repository"
	cartservice "github.com/cicadacove/storefront/internal/cart/service"
	"github.com/cicadacove/storefront/internal/catalog"
	"github.com/cicadacove/storefront/internal/checkout"
	"github.com/cicadacove/storefront/internal/config"
	"github.com/cicadacove/storefront/internal/healthcheck"
	storehttp "github.com/cicadacove/storefront/internal/http"
	"github.com/cicadacove/storefront/internal/payment"
	"github.com/cicadacove/storefront/internal/publisher"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/cicadacove/storefront/internal/telemetry"
	"github.com/cicadacove/storefront/internal/webhook"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const healthInterval = 10 * time.Second

func serve(c *cli.Context, cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, healthcheck.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	// Set up the order database
	cred := cfg.Credentials()
	repo, err := repository.NewRepository(cred)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(cred); err != nil {
		return err
	}
	log.WithField("driver", cred.Driver).Info("database ready")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("redis ping succeeded")

	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())
	carts := cartrepo.NewMongoRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		return err
	}
	log.WithField("database", cfg.MongoDB).Info("connected to MongoDB")

	gateway, sandbox := newGateway(cfg, log)

	products := catalog.NewService(repo, catalog.NewRedisProductCache(redisClient), log)
	cartSvc := cartservice.NewCartService(carts, cache.NewRedisCache(redisClient), products, policy, log)
	checkouts := checkout.NewService(products, repo, gateway, checkout.Config{AppURL: cfg.AppURL, Policy: policy}, log)
	webhooks := webhook.NewService(gateway, repo, log)

	a := storehttp.NewAuth(auth.NewSessionResolver(redisClient), repo, log)
	handlers := storehttp.Handlers{
		Auth:     a,
		Catalog:  storehttp.NewCatalogHandler(products, cfg.RequestTimeout),
		Cart:     storehttp.NewCartHandler(cartSvc, cfg.RequestTimeout),
		Checkout: storehttp.NewCheckoutHandler(checkouts, cfg.RequestTimeout),
		Webhook:  storehttp.NewWebhookHandler(webhooks, log),
		Orders:   storehttp.NewOrdersHandler(repo, a, cfg.RequestTimeout),
		Admin:    storehttp.NewAdminHandler(catalog.NewAdminService(products), cfg.RequestTimeout),
	}
	if sandbox != nil {
		handlers.Sandbox = storehttp.NewSandboxHandler(sandbox, webhooks, log)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: storehttp.NewRouter(handlers, storehttp.RouterConfig{
			RequestTimeout: cfg.RequestTimeout,
			SecureCookies:  cfg.SecureCookies(),
			Logger:         log,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	health := healthcheck.NewServer(map[string]healthcheck.Probe{
		"database": func(context.Context) error { return repo.Ping() },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"mongo":    func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) },
	}, log)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	poller := publisher.NewOutboxPoller(repo, log, cfg.KafkaTopic, cfg.KafkaBrokers...)
	defer poller.Close()
	cartCleaner := consumer.NewConsumer(cartSvc, log, cfg.KafkaTopic, cfg.KafkaBrokers...)
	defer cartCleaner.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.HTTPPort).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("port", cfg.GRPCPort).Info("gRPC health server listening")
		return health.Serve(lis)
	})
	g.Go(func() error {
		health.Run(gctx, healthInterval)
		return nil
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cartCleaner.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		health.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("storefront stopped")
	return err
}

// newGateway wraps the configured processor in a circuit breaker. The
// sandbox is also returned so its hosted payment page can be mounted.
func newGateway(cfg *config.Config, log logrus.FieldLogger) (payment.Gateway, *payment.Sandbox) {
	var (
		upstream payment.Gateway
		sandbox  *payment.Sandbox
	)
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		upstream = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	default:
		sandbox = payment.NewSandbox(cfg.AppURL, cfg.StripeWebhookSecret, payment.RandomOutcome{})
		upstream = sandbox
		log.Warn("using sandbox payment gateway")
	}
	return payment.NewBreakerGateway(upstream, cfg.Breaker(), log), sandbox
}
