package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/staffma/staffma-backend/internal/domain/user"
	"github.com/staffma/staffma-backend/internal/handler/http/middleware"
	"github.com/staffma/staffma-backend/internal/pkg/jwt"
)

type RouterOptions struct {
	Env            string
	Version        string
	AllowedOrigins []string
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, authorizer middleware.Authorizer, payrollHandler PayrollHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "staffma-payroll"),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(chiMiddleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.RequestLogger)

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	r.Route("/api/payroll", func(r chi.Router) {
		r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
		r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
		r.Use(middleware.SessionFromToken)

		can := func(c user.Capability) func(http.Handler) http.Handler {
			return middleware.RequireCapability(authorizer, c)
		}

		r.Route("/settings", func(r chi.Router) {
			r.With(can(user.CapabilityPayrollView)).Get("/", payrollHandler.GetSettings)

			r.Group(func(r chi.Router) {
				r.Use(can(user.CapabilityPayrollSettingsManage))
				r.Put("/", payrollHandler.UpdateSettings)
				r.Delete("/", payrollHandler.ResetSettings)

				r.Route("/allowances", func(r chi.Router) {
					r.Post("/", payrollHandler.AddAllowance)
					r.Put("/{itemId}", payrollHandler.UpdateAllowance)
					r.Delete("/{itemId}", payrollHandler.DeleteAllowance)
				})
				r.Route("/deductions", func(r chi.Router) {
					r.Post("/", payrollHandler.AddDeduction)
					r.Put("/{itemId}", payrollHandler.UpdateDeduction)
					r.Delete("/{itemId}", payrollHandler.DeleteDeduction)
				})
			})

			r.Route("/tax-brackets", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(can(user.CapabilityPayrollView))
					r.Get("/", payrollHandler.GetTaxTable)
					r.Get("/templates", payrollHandler.ListTaxTemplates)
				})

				r.Group(func(r chi.Router) {
					r.Use(can(user.CapabilityPayrollSettingsManage))
					r.Put("/", payrollHandler.ReplaceTaxTable)
					r.Post("/", payrollHandler.AddTaxBracket)
					r.Post("/template", payrollHandler.LoadTaxTemplate)
					r.Post("/upload", payrollHandler.UploadTaxBrackets)
					r.Put("/{bracketId}", payrollHandler.UpdateTaxBracket)
					r.Delete("/{bracketId}", payrollHandler.DeleteTaxBracket)
				})
			})
		})

		r.With(can(user.CapabilityPayrollProcess)).Post("/process", payrollHandler.ProcessPayroll)
		r.With(can(user.CapabilityPayrollApprove)).Post("/approve", payrollHandler.ApprovePayroll)
		r.With(can(user.CapabilityPayrollPay)).Post("/process-payments", payrollHandler.ProcessPayments)

		r.Group(func(r chi.Router) {
			r.Use(can(user.CapabilityPayrollView))
			r.Get("/history", payrollHandler.ListPayrollRecords)
			r.Get("/records/{id}", payrollHandler.GetPayrollRecord)
			r.Get("/summary", payrollHandler.GetPayrollSummary)
		})
	})

	return r
}
