package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/notify"
	orderdomain "github.com/smallbiznis/bookpay/internal/order/domain"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
	"github.com/smallbiznis/bookpay/internal/verify"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(log, registry)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	sessionSvc sessiondomain.Service
	orderSvc   orderdomain.Service
	channel    verify.Channel
	dispatcher *notify.Dispatcher

	createLimiter *rateLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	SessionSvc sessiondomain.Service
	OrderSvc   orderdomain.Service
	Channel    verify.Channel
	Dispatcher *notify.Dispatcher
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		sessionSvc:    p.SessionSvc,
		orderSvc:      p.OrderSvc,
		channel:       p.Channel,
		dispatcher:    p.Dispatcher,
		createLimiter: newRateLimiter(30, time.Minute),
	}

	svc.registerSessionRoutes()
	svc.registerOrderRoutes()
	svc.registerAdminRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSessionRoutes() {
	s.engine.POST("/payment-session", s.CreatePaymentSession)
	s.engine.GET("/payment-session", s.GetPaymentSession)
	s.engine.PUT("/payment-session", s.UpdatePaymentSession)
	s.engine.GET("/payment-session/callback", s.PaymentSessionCallback)
}

func (s *Server) registerOrderRoutes() {
	s.engine.POST("/order/materialize", s.MaterializeOrder)
	s.engine.GET("/order/:id", s.GetOrderByID)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/sessions", s.ListOpenSessions)
	admin.PATCH("/orders/:id/delivery", s.UpdateOrderDelivery)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/verify/webhook", s.WebhookSecretRequired(), s.HandleVerificationPush)
	s.engine.GET("/verify/webhook", s.ManageVerificationWebhook)
}
