package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/wahook/app/api/routes"
	_ "github.com/wahook/docs"
	"github.com/wahook/pkg/capture"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/domains/status"
	"github.com/wahook/pkg/domains/webhook"
	"github.com/wahook/pkg/domains/whatsapp"
	"github.com/wahook/pkg/hub"
	"github.com/wahook/pkg/middleware"
	"github.com/wahook/pkg/utils"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the long-lived services the HTTP surface is built on. WhatsApp
// and Hub are optional.
type Deps struct {
	Config   *config.Config
	Log      zerolog.Logger
	Registry *prometheus.Registry
	Webhook  webhook.Service
	Events   events.Service
	Status   status.Service
	WhatsApp whatsapp.Service
	Requests *capture.Log
	Hub      *hub.Hub
}

func NewRouter(d Deps) *gin.Engine {
	appc, allows := d.Config.App, d.Config.Allows
	if appc.LogLevel == "debug" || appc.LogLevel == "trace" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.RegisterBindingValidations()

	app := gin.New()
	app.Use(gin.LoggerWithFormatter(func(log gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] - %s \"%s %s %s %d %s\"\n",
			log.TimeStamp.Format("2006-01-02 15:04:05"),
			log.ClientIP,
			log.Method,
			log.Path,
			log.Request.Proto,
			log.StatusCode,
			log.Latency,
		)
	}))
	app.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	app.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		d.Log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("handler panicked")
		c.AbortWithStatusJSON(500, gin.H{"error": constant.SOMETHING_WENT_WRONG})
	}))
	app.Use(otelgin.Middleware(appc.Name))
	app.Use(middleware.ClaimIp())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowMethods:     allows.Methods,
		AllowHeaders:     allows.Headers,
		AllowOrigins:     allows.Origins,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	registry := d.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	p := ginprom.New(
		ginprom.Engine(app),
		ginprom.Registry(registry),
		ginprom.Subsystem("gin"),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/docs/*any"),
	)
	app.Use(p.Instrument())

	app.GET("/healthz", routes.Healthz)

	// Webhook ingestion is never authenticated: the provider cannot send tokens.
	routes.WebhookRoutes(app, d.Config.Webhook.Path, d.Webhook, d.Requests, d.Hub, d.Config.Webhook.BodyLimit)

	auth := middleware.CheckAuth(d.Config.Auth.Secret)
	protected := app.Group("", auth)
	routes.StatusRoutes(protected, d.Status)
	routes.RequestRoutes(protected.Group("/requests"), d.Requests)
	routes.DBRoutes(protected.Group("/db"), d.Events)
	if d.WhatsApp != nil {
		routes.WhatsAppRoutes(protected.Group("/whatsapp"), d.WhatsApp)
	}
	if d.Hub != nil {
		protected.GET("/ws/events", func(c *gin.Context) {
			d.Hub.ServeWS(c.Writer, c.Request)
		})
	}

	app.NoRoute(auth, routes.NotFound(d.Status))
	return app
}

// Server owns the listener so shutdown can be ordered after the tunnel.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func New(appc config.App, handler http.Handler, log zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort(appc.Host, appc.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Listen binds the address synchronously and serves in the background.
// The returned channel yields the terminal serve error, if any.
func (s *Server) Listen() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	errc := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down http server")
	return s.srv.Shutdown(ctx)
}
