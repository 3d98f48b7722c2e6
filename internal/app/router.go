package app

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quizhub/internal/app/apiresp"
	"quizhub/internal/app/observability"
	"quizhub/internal/auth"
	"quizhub/internal/catalog"
	"quizhub/internal/payment"
	"quizhub/internal/quiz"
	"quizhub/internal/report"
	"quizhub/internal/subscription"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	gateway := newGateway(cfg)

	authSvc := auth.NewService(db, auth.ServiceConfig{})
	authHandler := auth.NewHandler(authSvc)

	quizSvc := quiz.NewService(db)
	quizHandler := quiz.NewHandler(quizSvc)

	subSvc := subscription.NewService(db, gateway, cfg.MonthlyPriceMinor, cfg.PaymentCurrency)
	subHandler := subscription.NewHandler(subSvc)

	catalogSvc := catalog.NewService(db, subSvc)
	catalogHandler := catalog.NewHandler(catalogSvc)

	reportSvc := report.NewService(db)
	reportHandler := report.NewHandler(reportSvc)

	loginLimiter := NewIPRateLimiter(cfg.LoginRateLimitPerMin, time.Minute)
	callbackLimiter := NewIPRateLimiter(cfg.CallbackRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteOK(w, r, http.StatusOK, map[string]bool{"healthy": true})
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.With(RateLimitMiddleware(loginLimiter)).Post("/auth/login", authHandler.Login)

		// Server-to-server callback from the payment gateway; the bank is
		// not an authenticated user of ours.
		api.With(RateLimitMiddleware(callbackLimiter)).Post("/subscription/callback", subHandler.Callback)

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Get("/tests", catalogHandler.ListTests)
			secure.Get("/tests/{testID}", catalogHandler.GetTest)

			secure.Post("/submit", quizHandler.Submit)

			secure.Post("/subscription/create", subHandler.Create)
			secure.Get("/subscription/status", subHandler.Status)

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles(auth.RoleAdmin))
				admin.Get("/admin/reports/tests/{testID}", reportHandler.TestSummary)
				admin.Get("/admin/reports/tests/{testID}/export", reportHandler.ExportSolutions)
				admin.Get("/admin/reports/pending-review", reportHandler.PendingReview)
			})
		})
	})

	return r
}

// newGateway selects the payment protocol once at startup; the two
// implementations are never mixed within one process.
func newGateway(cfg Config) payment.Gateway {
	if cfg.PaymentGateway == "xml" {
		return payment.NewXMLGateway(payment.XMLConfig{
			Endpoint:         cfg.XMLGatewayEndpoint,
			MerchantID:       cfg.XMLMerchantID,
			Currency:         cfg.PaymentCurrency,
			ApproveURL:       cfg.PaymentApproveURL,
			CancelURL:        cfg.PaymentCancelURL,
			DeclineURL:       cfg.PaymentDeclineURL,
			RedirectTemplate: cfg.XMLRedirectTemplate,
			Timeout:          cfg.PaymentTimeout(),
		})
	}
	return payment.NewJSONGateway(payment.JSONConfig{
		Endpoint:       cfg.JSONGatewayEndpoint,
		StatusEndpoint: cfg.JSONStatusEndpoint,
		Secret:         cfg.JSONGatewaySecret,
		Currency:       cfg.PaymentCurrency,
		CallbackURL:    cfg.PaymentCallbackURL,
		SuccessURL:     cfg.PaymentApproveURL,
		CancelURL:      cfg.PaymentCancelURL,
		Timeout:        cfg.PaymentTimeout(),
	})
}
