package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jimiolaniyan/authcore/auth"
	"github.com/jimiolaniyan/authcore/auth/mongodb"
	"github.com/jimiolaniyan/authcore/auth/postgres"
	"github.com/jimiolaniyan/authcore/auth/sqlitedb"
	"github.com/jimiolaniyan/authcore/config"
	"github.com/jimiolaniyan/authcore/logger"
	"github.com/jimiolaniyan/authcore/notify"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP authentication server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			log := logger.New(cfg.Env, cfg.Log.Level, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, log); err != nil {
				log.Error().Err(err).Msg("server stopped")
				return err
			}
			return nil
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	accounts, closeStore, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, closeNotifier := newNotifier(cfg, log)
	defer closeNotifier()

	handler, err := newHTTPHandler(cfg, log, accounts, notifier)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("env", cfg.Env).
			Str("store", cfg.Store.Driver).
			Str("notify", cfg.Notify.Driver).
			Msg("server started")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHTTPHandler assembles the service stack and wraps the auth routes in
// CORS and request logging. /metrics is mounted when enabled.
func newHTTPHandler(cfg *config.Config, log zerolog.Logger, accounts auth.Directory, notifier auth.Notifier) (http.Handler, error) {
	hasher, err := auth.NewBcryptHasher(cfg.Hash.Cost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.Token.Secret, cfg.Token.TTL)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	svc := auth.NewService(accounts, hasher, tokens, notifier, log)
	svc = auth.NewInstrumentingService(svc, auth.NewMetrics(reg))

	mux := http.NewServeMux()
	mux.Handle("/", auth.MakeHandler(svc, tokens))
	if cfg.Server.Metrics {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	var h http.Handler = mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.NewHandler(log)(h)
	h = cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(h)
	return h, nil
}

func openDirectory(ctx context.Context, cfg *config.Config) (auth.Directory, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return auth.NewAccountRepository(), func() {}, nil

	case "mongo":
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.DSN))
		if err != nil {
			return nil, nil, oops.Code("STORE_CONNECT_FAILED").With("driver", "mongo").Wrap(err)
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		if err = client.Ping(ctx, nil); err != nil {
			closeFn()
			return nil, nil, oops.Code("STORE_CONNECT_FAILED").With("driver", "mongo").Wrap(err)
		}
		c := client.Database(cfg.Store.Database).Collection(cfg.Store.Collection)
		if err = mongodb.EnsureIndexes(ctx, c); err != nil {
			closeFn()
			return nil, nil, err
		}
		return mongodb.NewAccountRepository(c), closeFn, nil

	case "sqlite":
		db, err := sqlitedb.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = db.Close() }
		if err = sqlitedb.Migrate(ctx, db); err != nil {
			closeFn()
			return nil, nil, err
		}
		return sqlitedb.NewAccountRepository(db), closeFn, nil

	case "postgres":
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, oops.Code("STORE_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
		}
		if err = postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewAccountRepository(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func newNotifier(cfg *config.Config, log zerolog.Logger) (auth.Notifier, func()) {
	if cfg.Notify.Driver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Notify.RedisAddr,
			Password: cfg.Notify.RedisPassword,
			DB:       cfg.Notify.RedisDB,
		})
		return notify.NewRedisQueue(client, cfg.Notify.Queue), func() { _ = client.Close() }
	}
	return notify.NewLogNotifier(log), func() {}
}
