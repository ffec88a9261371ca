// Command gardien serves the authentication engine over HTTP.
//
//	gardien -config gardien.yaml
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/koustreak/gardien/internal/auth"
	"github.com/koustreak/gardien/internal/config"
	"github.com/koustreak/gardien/internal/crud"
	_ "github.com/koustreak/gardien/internal/database/mysql"
	_ "github.com/koustreak/gardien/internal/database/postgres"
	_ "github.com/koustreak/gardien/internal/database/sqlite"
	"github.com/koustreak/gardien/internal/filestore"
	"github.com/koustreak/gardien/internal/filestore/local"
	"github.com/koustreak/gardien/internal/filestore/minio"
	"github.com/koustreak/gardien/internal/httpapi"
	"github.com/koustreak/gardien/internal/logger"
	"github.com/koustreak/gardien/internal/password"
	"github.com/koustreak/gardien/internal/session"
	"github.com/koustreak/gardien/internal/validation"
	"github.com/redis/go-redis/v9"
)

func main() {
	path := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gardien: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     strings.ToLower(cfg.Log.Format),
		TimeFormat: "rfc3339",
		Output:     os.Stdout,
	})
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorWith("gardien stopped", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	sessions, closeSessions, err := openSessions(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeSessions()

	hasher, err := password.FromConfig(cfg.Password)
	if err != nil {
		return err
	}

	opts := []auth.Option{
		auth.WithMapping(cfg.Auth.Mapping),
		auth.WithLogger(log),
		auth.WithSessionStore(sessions),
		auth.WithRateLimit(cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window),
		auth.WithHasher(hasher),
		auth.WithMinPasswordLength(cfg.Auth.MinPasswordLength),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
	}
	if v, rules, err := buildValidator(cfg.Validation); err != nil {
		return err
	} else if v != nil {
		opts = append(opts, auth.WithValidator(v, rules))
	}

	engine, err := auth.New(ctx, &cfg.Database, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	journal := log
	if cfg.Log.JournalFile != "" {
		j, f, err := logger.OpenFile(cfg.Log.JournalFile, cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer f.Close()
		journal = j
	}
	users, err := crud.New(engine.DB(), cfg.Auth.Table,
		crud.WithJournal(journal),
		crud.WithIntrospector(engine.Introspector()))
	if err != nil {
		return err
	}

	store, err := openStore(ctx, &cfg.FileStore)
	if err != nil {
		return err
	}
	defer store.Close()

	secret := []byte(cfg.Server.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, config.MinJWTSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate cookie secret: %w", err)
		}
		log.Warn("no server.jwt_secret configured, clients are forgotten on restart")
	}
	cookies, err := httpapi.NewCookieSigner(secret, cfg.Server.CookieName, 0, cfg.Server.CookieSecure)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.New(engine, cookies,
			httpapi.WithLogger(log),
			httpapi.WithExport(users, store, cfg.FileStore.Bucket)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.InfoWith("listening", map[string]any{
			"addr":   cfg.Server.Addr,
			"engine": string(cfg.Database.Engine),
			"table":  cfg.Auth.Table,
		})
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

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openSessions(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	if cfg.Driver != config.SessionRedis {
		return session.NewMemoryStore(cfg.TTL), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store := session.NewRedisStore(rdb, cfg.Prefix, cfg.TTL)
	if err := store.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, func() { _ = rdb.Close() }, nil
}

func openStore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	if cfg.Provider == filestore.ProviderMinIO {
		return minio.New(ctx, cfg)
	}
	return local.New(cfg)
}

// buildValidator returns nil when no validation is configured.
func buildValidator(cfg config.ValidationConfig) (*validation.Validator, map[string]any, error) {
	if cfg.RulesFile == "" && len(cfg.Fields) == 0 && len(cfg.Messages) == 0 {
		return nil, nil, nil
	}

	v := validation.New()
	if cfg.RulesFile != "" {
		if err := v.LoadFile(cfg.RulesFile); err != nil {
			return nil, nil, err
		}
	}
	v.SetMessages(cfg.Messages)

	rules := make(map[string]any, len(cfg.Fields))
	for field, rule := range cfg.Fields {
		rules[field] = rule
	}
	return v, rules, nil
}
