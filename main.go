// Command main_backend serves the direct-hire case API. `main_backend token` prints a
// signed bearer token for local testing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dhportal/main_backend/authz"
	"dhportal/main_backend/caseflow"
	"dhportal/main_backend/config"
	ds "dhportal/main_backend/database_service"
	"dhportal/main_backend/documents"
	"dhportal/main_backend/eventbus"
	"dhportal/main_backend/litestore"
	"dhportal/main_backend/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("❌ %v", err)
	}
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			logrus.Fatalf("❌ %v", err)
		}
		return
	}

	log, closer, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		logrus.Fatalf("❌ %v", err)
	}
	defer closer.Close()
	entry := log.WithField("service", "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := caseflow.Deps{Auth: authz.RoleAuthorizer{}, Log: entry}

	if cfg.LiteMode() {
		if err := os.MkdirAll(filepath.Dir(cfg.LiteDBPath), 0o755); err != nil {
			entry.WithError(err).Fatal("❌ lite db dir")
		}
		store, err := litestore.Open(ctx, cfg.LiteDBPath)
		if err != nil {
			entry.WithError(err).Fatal("❌ lite db open")
		}
		defer store.Close()
		deps.Store = store
		entry.WithField("path", cfg.LiteDBPath).Info("lite mode: using sqlite store")
	} else {
		db, err := ds.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			entry.WithError(err).Fatal("❌ db connect")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			entry.WithError(err).Fatal("❌ db migrate")
		}
		deps.Store = db
		deps.Notifiers = append(deps.Notifiers, db)
	}

	if cfg.DocumentsBucket != "" {
		docs, err := documents.NewS3Store(ctx, documents.S3Config{
			Bucket:   cfg.DocumentsBucket,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			entry.WithError(err).Fatal("❌ documents store")
		}
		deps.Attachments = docs
	} else {
		deps.Attachments = documents.NewLocalStore(cfg.DocumentsDir)
	}

	if cfg.RedisAddr != "" {
		bus := eventbus.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.EventsChannel)
		defer bus.Close()
		if err := bus.Ping(ctx); err != nil {
			entry.WithError(err).Warn("redis unreachable; events will be retried per publish")
		}
		deps.Notifiers = append(deps.Notifiers, bus)
	}

	svc, err := caseflow.New(deps)
	if err != nil {
		entry.WithError(err).Fatal("❌ case service")
	}
	s := &server{svc: svc, tokens: authz.NewTokenIssuer(cfg.JWTSecret), log: entry, timeout: cfg.Timeout()}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	entry.WithField("addr", srv.Addr).Info("api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		entry.WithError(err).Fatal("❌ server error")
	}
	entry.Info("api shut down")
}

func issueToken(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "caller id")
	name := fs.String("name", "", "display name, matched against case evaluators")
	email := fs.String("email", "", "email, matched against case emails for applicants")
	role := fs.String("role", string(authz.RoleStaff), "admin, staff or applicant")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		return errors.New("token: -sub is required")
	}
	tok, err := authz.NewTokenIssuer(cfg.JWTSecret).Issue(authz.Caller{
		ID: *sub, Name: *name, Email: *email, Role: authz.Role(*role),
	}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
