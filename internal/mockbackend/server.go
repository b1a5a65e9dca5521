// Package mockbackend serves the storefront backend contract from memory. It is
// used for local runs of the CLI and as the contract peer in tests.
package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/rabbitmq"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	tokenTTL     = 24 * time.Hour
	shutdownWait = 10 * time.Second
)

// NewRouter wires every backend route under /api. publisher may be nil; no
// allowOrigins means any origin.
func NewRouter(state *State, issuer *Issuer, publisher IPublisher, allowOrigins []string, mylog logger.Logger) *gin.Engine {
	h := &handler{state: state, issuer: issuer, publisher: publisher, mylog: mylog}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(mylog))
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/auth/token", h.issueToken)
	api.GET("/products/category/:category", h.productsByCategory)
	api.GET("/products/:id", h.product)
	api.GET("/addons/get-all-addon-items", h.addons)

	authed := api.Group("/", issuer.requireAuth())
	{
		cart := authed.Group("/cart")
		cart.POST("/add-cart-items", h.cartMutation(h.addCartItem))
		cart.POST("/update-cart-items", h.cartMutation(state.UpdateCartItem))
		cart.POST("/remove-cart-items", h.cartMutation(state.RemoveCartItem))
		cart.POST("/clear-cart", h.clearCart)
		cart.POST("/merge-cart-items", h.mergeCart)
		cart.GET("/get-cart-items", h.getCart)

		wishlist := authed.Group("/wishlist")
		wishlist.POST("/add-wishlist-items", h.addWishlistItem)
		wishlist.POST("/remove-wishlist-items", h.removeWishlistItem)
		wishlist.POST("/clear-wishlist", h.clearWishlist)
		wishlist.POST("/sync", h.syncWishlist)
		wishlist.GET("/get-wishlist-items", h.getWishlist)

		authed.GET("/orders/user/:userId", h.userOrders)
		authed.POST("/orders/:id/cancel", h.cancelOrder)
	}
	return r
}

// requestLogger logs every request with the caller's X-Request-ID, or a fresh one.
func requestLogger(mylog logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Next()

		mylog.Action("http_request").Debug("Request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
		)
	}
}

type Server struct {
	cfg     *config.Config
	port    int
	publish bool
	mylog   logger.Logger
	ctx     context.Context

	mu  sync.Mutex
	srv *http.Server
	mb  *rabbitmq.RabbitMQ
}

func NewServer(ctx context.Context, cfg *config.Config, port int, publish bool, mylog logger.Logger) *Server {
	return &Server{
		ctx:     ctx,
		cfg:     cfg,
		port:    port,
		publish: publish,
		mylog:   mylog,
	}
}

// Run starts listening and returns when the server stops or ctx ends.
func (s *Server) Run() error {
	var publisher IPublisher
	if s.publish {
		mb, err := rabbitmq.Connect(s.cfg.RMQ, s.mylog)
		if err != nil {
			// orders still work, only the live updates are missing
			s.mylog.Action("mb_connection_failed").Warn("Order updates will not be published", "reason", err.Error())
		} else {
			s.mylog.Action("mb_connected").Info("Successful message broker connection")
			s.mu.Lock()
			s.mb = mb
			s.mu.Unlock()
			publisher = mb
		}
	}

	state := NewState(time.Now)
	issuer := NewIssuer(s.cfg.MockBackend.JWTSecret, tokenTTL, time.Now)
	router := NewRouter(state, issuer, publisher, s.cfg.MockBackend.AllowOrigins, s.mylog)

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Unlock()

	s.mylog.Action("server_started").WithGroup("details").With("port", s.port, "publish", publisher != nil).Info("server is running")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")
	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownWait)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}
	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		s.mylog.Action("mb_closed").Info("Message broker closed")
	}
	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}
