package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/config"
	"github.com/Suhaibinator/monty/pkg/metrics"
	"github.com/Suhaibinator/monty/pkg/middleware"
	"github.com/Suhaibinator/monty/pkg/route"
	"github.com/Suhaibinator/monty/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo application",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Compile and print the demo routes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		routes := cfg.RouteHandler()
		for _, pattern := range demoPatterns(cfg.Metrics.Path, cfg.Metrics.Enabled) {
			matchers, err := routes.ParseRoute(pattern)
			if err != nil {
				return err
			}
			for _, m := range matchers {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", pattern, m)
			}
		}
		return nil
	},
}

// newHandler wires the configuration into a server.Handler
func newHandler(cfg *config.Config, logger *zap.Logger) (*server.Handler, error) {
	routes := cfg.RouteHandler()

	var recorder metrics.Recorder = metrics.NopRecorder{}
	var metricsHTTP http.Handler
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		prom, err := metrics.NewPrometheusRecorder(metrics.PrometheusConfig{
			Registry:  registry,
			Namespace: cfg.Metrics.Namespace,
		})
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		recorder = prom
		metricsHTTP = prom.Handler()
	}

	// Fail on malformed routes before serving anything
	if err := route.Precompile(routes, demoPatterns(cfg.Metrics.Path, metricsHTTP != nil)...); err != nil {
		return nil, err
	}

	before := []app.Handler{middleware.ClientIP(middleware.DefaultIPConfig())}
	var after []app.Handler
	var preflight app.Handler

	if cfg.Auth.JWTSecret != "" {
		secret := []byte(cfg.Auth.JWTSecret)
		before = append(before, middleware.JWTAuth(middleware.JWTConfig{
			Keyfunc:  func(*jwt.Token) (interface{}, error) { return secret, nil },
			Issuer:   cfg.Auth.Issuer,
			Optional: cfg.Auth.Optional,
		}))
	}

	if cfg.RateLimit.Enabled {
		before = append(before, middleware.RateLimit(&middleware.RateLimitConfig{
			BucketName: "global",
			Limit:      cfg.RateLimit.Limit,
			Window:     cfg.RateLimit.Window.Std(),
			Strategy:   middleware.RateLimitStrategy(cfg.RateLimit.Strategy),
		}, middleware.NewUberRateLimiter(), logger))
		after = append(after, middleware.RateLimitHeaders())
	}

	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowOrigins = cfg.CORS.AllowedOrigins
		preflight = middleware.CORS(cors)
		after = append(after, preflight)
	}
	after = append(after, middleware.Logging(logger))

	return server.NewHandler(server.Config{
		Logger:        logger,
		RouteHandler:  routes,
		Recorder:      recorder,
		MaxBodySize:   cfg.Server.MaxBodySize.Int64(),
		EnableTraceID: cfg.Server.TraceID,
		SlowRequest:   cfg.Server.SlowRequest.Std(),
		Before:        before,
		After:         after,
	}, program(cfg.Metrics.Path, metricsHTTP, preflight)), nil
}

// serve runs the configured transport until ctx is done, then shuts down gracefully
func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.Logging.Build()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	h, err := newHandler(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting server",
		zap.String("addr", cfg.Addr()),
		zap.String("transport", cfg.Server.Transport),
		zap.String("router", cfg.Router.Backend),
		zap.String("max_body_size", cfg.Server.MaxBodySize.String()),
		zap.String("version", version),
	)

	errCh := make(chan error, 1)
	var shutdownTransport func(context.Context) error

	switch cfg.Server.Transport {
	case config.TransportFastHTTP:
		srv := &fasthttp.Server{
			Handler:            h.FastHTTP,
			Name:               "monty",
			ReadTimeout:        cfg.Server.ReadTimeout.Std(),
			WriteTimeout:       cfg.Server.WriteTimeout.Std(),
			MaxRequestBodySize: int(cfg.Server.MaxBodySize),
		}
		go func() { errCh <- srv.ListenAndServe(cfg.Addr()) }()
		shutdownTransport = func(context.Context) error { return srv.Shutdown() }
	default:
		srv := &http.Server{
			Addr:         cfg.Addr(),
			Handler:      h,
			ReadTimeout:  cfg.Server.ReadTimeout.Std(),
			WriteTimeout: cfg.Server.WriteTimeout.Std(),
		}
		go func() { errCh <- srv.ListenAndServe() }()
		shutdownTransport = srv.Shutdown
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, draining exchanges")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Exchanges still running at shutdown", zap.Error(err))
	}
	return shutdownTransport(shutdownCtx)
}
