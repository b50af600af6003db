package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/cache"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/events"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/notify"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/server"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/services"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/settings"
	"github.com/practiceops/servicecatalog/internal/common/logtrace"
)

const shutdownGrace = 5 * time.Second

// publishWait of zero keeps event delivery off the request path; the
// forwarder buffers what it has not yet written.
const publishWait = 0

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := run(ctx); err != nil {
				log.Error().Err(err).Msg("server failed")
				return ErrAlreadyHandled
			}
			return nil
		},
	}
}

// loadServerConfig loads the server config file and initializes logging.
func loadServerConfig() error {
	if err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.Log.Level, cfg.Log.Console)
	return nil
}

func run(ctx context.Context) error {
	if err := loadServerConfig(); err != nil {
		return err
	}
	slog := log.With().Str("state", "init").Logger()
	ctx = slog.WithContext(ctx)
	slog.Info().Str("config_file", configFile).Msg("loaded config file")
	if config.Config().ServerPort == "" {
		return fmt.Errorf("server port not defined")
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	serverErrors, shutdownServer, err := createCatalogServer(ctx, rt.catalog)
	if err != nil {
		return fmt.Errorf("creating catalog server: %w", err)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
	case <-ctx.Done():
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

// runtime holds the catalog service and everything it was assembled from.
type runtime struct {
	catalog   *services.CatalogService
	store     db.Store
	cache     cache.Cache
	bus       *events.Bus
	forwarder *events.KafkaForwarder
	webhook   *notify.WebhookNotifier
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg := config.Config()
	rt := &runtime{}

	store, err := db.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	rt.store = store

	c, err := cache.Open(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	rt.cache = c

	rt.bus = events.NewBus()
	if len(cfg.Events.KafkaBrokers) > 0 {
		rt.forwarder = events.NewKafkaForwarder(rt.bus, cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		rt.forwarder.Start(ctx)
	}

	notifiers := notify.Multi{notify.NewLogNotifier()}
	if cfg.Notify.WebhookURL != "" {
		rt.webhook = notify.NewWebhookNotifier(notify.WebhookOptions{
			URL:         cfg.Notify.WebhookURL,
			QueueSize:   cfg.Notify.QueueSize,
			MaxAttempts: cfg.Notify.MaxAttempts,
			Timeout:     cfg.Notify.GetTimeout(),
		})
		rt.webhook.Start(ctx)
		notifiers = append(notifiers, rt.webhook)
		log.Ctx(ctx).Info().Str("url", cfg.Notify.WebhookURL).Msg("webhook notifications enabled")
	}

	var lookup settings.Lookup = settings.Static(settings.Defaults())
	if cfg.Settings.File != "" {
		lookup = settings.NewFileLookup(cfg.Settings.File, cfg.Settings.GetReloadInterval())
	}

	listTTL, entryTTL, statsTTL := cfg.Cache.TTLs()
	rt.catalog = services.New(services.Options{
		Store:    store,
		Cache:    c,
		Notifier: notifiers,
		Emitter:  events.NewBusEmitter(rt.bus, publishWait),
		Settings: lookup,
		ListTTL:  listTTL,
		EntryTTL: entryTTL,
		StatsTTL: statsTTL,
	})
	return rt, nil
}

// close stops the background workers first so queued work can still reach
// the store and cache.
func (rt *runtime) close(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()

	if rt.webhook != nil {
		if err := rt.webhook.Stop(stopCtx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("webhook notifier did not drain")
		}
	}
	if rt.forwarder != nil {
		if err := rt.forwarder.Stop(); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to stop kafka forwarder")
		}
	}
	if rt.bus != nil {
		rt.bus.Shutdown()
	}
	if err := rt.cache.Close(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to close cache")
	}
	if err := rt.store.Close(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to close store")
	}
}

func createCatalogServer(ctx context.Context, catalog *services.CatalogService) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := server.CreateNewServer(catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	// Start the service listening for requests.
	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
