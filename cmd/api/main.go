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

	"github.com/staffma/staffma-backend/internal/config"
	appHTTP "github.com/staffma/staffma-backend/internal/handler/http"
	"github.com/staffma/staffma-backend/internal/pkg/authz"
	"github.com/staffma/staffma-backend/internal/pkg/database"
	"github.com/staffma/staffma-backend/internal/pkg/jwt"
	"github.com/staffma/staffma-backend/internal/pkg/logger"
	"github.com/staffma/staffma-backend/internal/pkg/paymentgateway"
	"github.com/staffma/staffma-backend/internal/pkg/taxsheet"
	"github.com/staffma/staffma-backend/internal/repository/postgresql"
	payrollService "github.com/staffma/staffma-backend/internal/service/payroll"
)

const version = "v1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("error loading config", "error", err)
		os.Exit(1)
	}

	appLogger := logger.Init(cfg.App.Env, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		appLogger.Error("error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	txManager := postgresql.NewTransactor(db)
	payrollRepo := postgresql.NewPayrollRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	authorizer, err := authz.NewAuthorizer(cfg.Authz.Mode)
	if err != nil {
		appLogger.Error("failed to initialize authorizer", "error", err)
		os.Exit(1)
	}

	gateway := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:  cfg.Payment.BaseURL,
		APIKey:   cfg.Payment.APIKey,
		Currency: cfg.Payment.Currency,
		Timeout:  cfg.Payment.Timeout,
	}, appLogger)

	payrollSvc := payrollService.NewPayrollService(
		txManager,
		payrollRepo,
		employeeRepo,
		gateway,
		taxsheet.NewParser(),
		payrollService.Config{
			Policy:                cfg.Policy(),
			MaxPaymentConcurrency: cfg.Payment.MaxConcurrency,
			Currency:              cfg.Payment.Currency,
		},
	)

	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			Env:            cfg.App.Env,
			Version:        version,
			AllowedOrigins: cfg.App.AllowedOrigins,
		},
		JWTService,
		authorizer,
		payrollHandler,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("server running",
			"addr", server.Addr,
			"env", cfg.App.Env,
			"authz_mode", authorizer.Mode(),
			"reprocess_policy", cfg.Payroll.ReprocessPolicy,
			"unmatched_bracket_policy", cfg.Payroll.UnmatchedBracketPolicy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", "error", err)
	}
	appLogger.Info("server stopped")
}
