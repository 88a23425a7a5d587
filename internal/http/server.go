// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/handlers"
	"ridehail/internal/http/middleware"
	"ridehail/internal/metrics"
	"ridehail/internal/modules/account"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/review"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/session"
)

type ServerDeps struct {
	Accounts       *account.Service
	Pricing        *pricing.Service
	Rides          *ride.Service
	Reviews        *review.Service
	Sessions       *session.Manager
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

type Server struct {
	accounts       *account.Service
	pricing        *pricing.Service
	rides          *ride.Service
	reviews        *review.Service
	sessions       *session.Manager
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		accounts:       deps.Accounts,
		pricing:        deps.Pricing,
		rides:          deps.Rides,
		reviews:        deps.Reviews,
		sessions:       deps.Sessions,
		logger:         log,
		requestTimeout: deps.RequestTimeout,
	}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Logging(s.logger),
		middleware.Recovery(),
		middleware.Metrics(),
		middleware.Timeout(s.requestTimeout),
		middleware.Auth(s.sessions),
	)

	health := handlers.NewHealthHandler(s.pricing)
	r.GET("/health", health.Check)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	accountHandler := handlers.NewAccountHandler(s.accounts, s.sessions)
	api.POST("/passengers/register", accountHandler.RegisterPassenger)
	api.POST("/passengers/login", accountHandler.LoginPassenger)
	api.GET("/passengers/me", middleware.RequirePassenger(), accountHandler.PassengerProfile)
	api.POST("/drivers/register", accountHandler.RegisterDriver)
	api.POST("/drivers/login", accountHandler.LoginDriver)
	api.GET("/drivers/me", middleware.RequireDriver(), accountHandler.DriverDashboard)
	api.POST("/logout", middleware.RequireAuthenticated(), accountHandler.Logout)

	tariffHandler := handlers.NewTariffHandler(s.pricing)
	api.GET("/tariffs", tariffHandler.List)
	api.GET("/tariffs/:id/quote", tariffHandler.Quote)

	rideHandler := handlers.NewRideHandler(s.rides, s.reviews)
	api.GET("/rides", middleware.RequirePassenger(), rideHandler.List)
	api.POST("/rides", middleware.RequirePassenger(), rideHandler.Create)
	api.GET("/rides/:id", middleware.RequireAuthenticated(), rideHandler.Get)
	api.POST("/rides/:id/review", middleware.RequirePassenger(), rideHandler.Review)

	driverHandler := handlers.NewDriverHandler(s.rides, s.reviews)
	drivers := api.Group("/drivers", middleware.RequireDriver())
	drivers.GET("/orders", driverHandler.Orders)
	drivers.POST("/orders/:id/accept", driverHandler.Accept)
	drivers.POST("/orders/:id/on_way", driverHandler.OnWay)
	drivers.POST("/orders/:id/complete", driverHandler.Complete)
	drivers.GET("/reviews", driverHandler.Reviews)

	return r
}
