package main

import (
	"context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skybi/impds-proxy/internal/api"
	"github.com/skybi/impds-proxy/internal/codec"
	"github.com/skybi/impds-proxy/internal/config"
	"github.com/skybi/impds-proxy/internal/metrics"
	"github.com/skybi/impds-proxy/internal/parser"
	"github.com/skybi/impds-proxy/internal/portal"
	"github.com/skybi/impds-proxy/internal/resultcache"
	"github.com/skybi/impds-proxy/internal/search"
	"github.com/skybi/impds-proxy/internal/searchlog"
	"github.com/skybi/impds-proxy/internal/secret"
	"github.com/skybi/impds-proxy/internal/session"
	"github.com/skybi/impds-proxy/internal/storage"
	"github.com/skybi/impds-proxy/internal/storage/inmem"
	"github.com/skybi/impds-proxy/internal/storage/postgres"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	retentionInterval = time.Hour
	shutdownTimeout   = 10 * time.Second
)

func main() {
	log.Info().Msg("starting up...")

	// Load the application configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load the configuration")
	}
	configureLogging(cfg)
	log.Debug().
		Str("listen_address", cfg.ListenAddress).
		Str("portal", cfg.PortalBaseURL).
		Str("session_policy", cfg.SessionPolicy).
		Dur("result_cache_ttl", cfg.ResultCacheTTL).
		Msg("loaded configuration")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize the search log storage driver
	driver := newStorageDriver(cfg)
	log.Info().Msg("initializing the search log storage...")
	if err := driver.Initialize(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("could not initialize the search log storage")
	}
	defer driver.Close()

	// Schedule a task that removes expired search log entries
	if cfg.SearchLogRetention > 0 {
		retentionTask := searchlog.NewRetentionTask(driver.Searches(), cfg.SearchLogRetention, retentionInterval)
		retentionTask.Start()
		defer retentionTask.Stop(false)
	}

	// Create the result cache
	cache, closeCache := newResultCache(cfg)
	defer closeCache()

	// Create the session manager and warm it up
	sessions := session.NewManager(newAcquirer(cfg), session.Options{
		Lifetime: cfg.EffectiveSessionLifetime(),
		Timeout:  cfg.AcquirerTimeout,
		Metrics:  m,
	})
	log.Info().Msg("warming up the portal session...")
	if _, err := sessions.Acquire(context.Background()); err != nil {
		if cfg.SessionWarmupRequired {
			log.Fatal().Err(err).Msg("could not warm up the portal session")
		}
		log.Warn().Err(err).Msg("could not warm up the portal session; the first search will retry")
	}

	passphrase := codec.NewPassphrase(cfg.EncryptionKey)
	searches := search.NewService(
		sessions,
		passphrase,
		portal.New(portal.Options{
			BaseURL:   cfg.PortalBaseURL,
			UserAgent: cfg.PortalUserAgent,
			Timeout:   cfg.PortalTimeout,
			Metrics:   m,
		}),
		parser.New(nil),
		search.Options{
			Cache:         cache,
			Searches:      driver.Searches(),
			Fingerprinter: secret.NewFingerprinter(cfg.FingerprintKey),
			Metrics:       m,
		},
	)

	service := &api.Service{
		Config:   cfg,
		Searches: searches,
		Codec:    passphrase,
		Sessions: sessions,
		Storage:  driver,
		Gatherer: registry,
	}
	if cfg.OIDCIssuerURL != "" {
		log.Info().Str("issuer", cfg.OIDCIssuerURL).Msg("discovering the OIDC issuer...")
		verifier, err := api.NewOIDCVerifier(context.Background(), cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			log.Fatal().Err(err).Msg("could not discover the OIDC issuer")
		}
		service.Verifier = verifier
	}

	// Start up the API
	log.Info().Str("address", cfg.ListenAddress).Msg("starting up the API...")
	apiErrs := make(chan error, 1)
	service.Startup(apiErrs)
	go func() {
		err := <-apiErrs
		log.Fatal().Err(err).Msg("the API service raised an unexpected error")
	}()
	defer func() {
		log.Info().Msg("shutting down the API...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		service.Shutdown(ctx)
	}()

	log.Info().Msg("done!")
	defer log.Info().Msg("shutting down...")

	// Wait for the application to be terminated
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
}

func configureLogging(cfg *config.Config) {
	if !cfg.IsEnvProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out: os.Stderr,
		})
	}

	level := zerolog.InfoLevel
	if !cfg.IsEnvProduction() {
		level = zerolog.DebugLevel
	}
	if cfg.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level; keeping the default")
		} else {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
}

func newStorageDriver(cfg *config.Config) storage.Driver {
	if cfg.PostgresDSN != "" {
		log.Info().Msg("using PostgreSQL for the search log")
		return postgres.New(cfg.PostgresDSN)
	}
	log.Info().Msg("using the in-memory search log")
	return inmem.New()
}

func newResultCache(cfg *config.Config) (resultcache.Cache, func()) {
	if !cfg.CacheEnabled() {
		return resultcache.Nop{}, func() {}
	}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := resultcache.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to the result cache")
		}
		log.Info().Dur("ttl", cfg.ResultCacheTTL).Msg("caching search results in redis")
		return resultcache.NewRedis(client, cfg.ResultCacheTTL), func() { client.Close() }
	}
	log.Info().Dur("ttl", cfg.ResultCacheTTL).Msg("caching search results in memory")
	cache := resultcache.NewMemory(cfg.ResultCacheTTL)
	return cache, cache.Close
}

func newAcquirer(cfg *config.Config) session.Acquirer {
	if cfg.SessionToken != "" {
		log.Info().Msg("using the configured static portal session token")
		return session.NewStaticToken(cfg.SessionToken)
	}
	return &session.CommandAcquirer{
		Interpreter: cfg.AcquirerInterpreter,
		Script:      cfg.AcquirerScript,
	}
}
