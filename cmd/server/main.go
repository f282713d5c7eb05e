package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/Efrain290493/gft/internal/api"
	appconfig "github.com/Efrain290493/gft/internal/config"
	"github.com/Efrain290493/gft/internal/events"
	"github.com/Efrain290493/gft/internal/kyc"
	"github.com/Efrain290493/gft/internal/redeban"
	"github.com/Efrain290493/gft/internal/secrets"
	"github.com/Efrain290493/gft/internal/telemetry"
	"github.com/Efrain290493/gft/internal/token"
	"github.com/Efrain290493/gft/internal/tokenstore"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) {
	var cleanup func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			cleanup = telemetry.InitTracer(cfg.ServiceName)
			return nil
		},
		OnStop: func(context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})
}

// newSQLDB provides the shared *sql.DB backing the token store and closes it
// on shutdown. The token store is load-bearing, so a failed connection is fatal.
func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) (*sql.DB, error) {
	logger.Printf("Connecting to PostgreSQL database %s@%s:%d", cfg.Database.Database, cfg.Database.Host, cfg.Database.Port)
	db, err := tokenstore.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect token store database: %w", err)
	}
	logger.Printf("Database connection established successfully")
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func newTokenStore(lc fx.Lifecycle, db *sql.DB) *tokenstore.Store {
	store := tokenstore.NewStore(db)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.EnsureSchema(ctx)
		},
	})
	return store
}

// newKafkaProducer constructs the shared audit producer and binds its lifecycle to Fx.
func newKafkaProducer(cfg appconfig.Config, lc fx.Lifecycle) *events.Producer {
	prod := events.NewProducerWithBrokers(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newCertificateProvider(cfg appconfig.Config) *secrets.CertificateProvider {
	return secrets.NewCertificateProvider(cfg.Secrets)
}

func newTokenManager(cfg appconfig.Config, store *tokenstore.Store) *token.Manager {
	invoker := token.NewRuntimeInvoker(
		cfg.Token.RuntimeURL,
		cfg.Token.Service,
		tokenstore.SingletonKey,
		cfg.Token.Handler,
	)
	return token.NewManager(store, invoker)
}

func newLookupService(cfg appconfig.Config, certs *secrets.CertificateProvider, mgr *token.Manager) *kyc.Service {
	return kyc.NewService(cfg.Redeban, certs, mgr)
}

// newHealthClient is a plain-HTTP probe of the upstream; no client
// certificates needed for the health endpoint.
func newHealthClient(cfg appconfig.Config, logger *log.Logger) api.UpstreamChecker {
	cli, err := redeban.NewClient(cfg.Redeban, nil)
	if err != nil {
		logger.Printf("WARNING: upstream health probe unavailable: %v", err)
		return nil
	}
	return cli
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner,
	svc *kyc.Service, store *tokenstore.Store, certs *secrets.CertificateProvider, upstream api.UpstreamChecker, prod *events.Producer) {

	mux := http.NewServeMux()
	api.RegisterCommerceRoutes(mux, svc, prod, cfg.Kafka.AuditTopic)
	api.RegisterHealthRoutes(mux, store, certs, upstream)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: withCORS(mux),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				displayAddr := cfg.HTTP.Addr
				if strings.HasPrefix(displayAddr, ":") {
					displayAddr = "localhost" + displayAddr
				}
				logger.Printf("Commerce lookup API available on http://%s", displayAddr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("API server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newSQLDB,
			newTokenStore,
			newKafkaProducer,
			newCertificateProvider,
			newTokenManager,
			newLookupService,
			newHealthClient,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s...", cfg.ServiceName)
			},
			setupTelemetry,
			registerWebServer,
		),
	)

	app.Run()
}
