package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/staffma/staffma-backend/internal/config"
	"github.com/staffma/staffma-backend/internal/pkg/logger"
	"github.com/staffma/staffma-backend/migrations"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the latest migration")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("error loading config", "error", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.App.Env, cfg.App.LogLevel)

	db, err := goose.OpenDBWithDriver("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Error("goose: failed to open DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("schema_migrations")
	goose.SetLogger(slogGooseLogger{log})

	command := "up"
	if *rollback {
		command = "down"
	}
	if err := goose.RunContext(ctx, command, db, "."); err != nil {
		log.Error("goose: migration failed", "command", command, "error", err)
		db.Close()
		os.Exit(1)
	}
	log.Info("migrations applied", "command", command)
}

// slogGooseLogger routes goose progress output through the application logger.
type slogGooseLogger struct {
	log *slog.Logger
}

func (l slogGooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
