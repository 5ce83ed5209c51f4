package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

type decisionProcessor interface {
	Process(ctx context.Context, id uint) error
	Ping(ctx context.Context) error
}

type Server struct {
	svc    decisionProcessor
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

func NewServer(svc decisionProcessor, bind string) *Server {
	logger := slog.Default().With("system", "server")
	e := echo.New()

	// httpd
	var (
		// decisions do several database round trips and mail deliveries
		httpTimeout        = 2 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		svc:    svc,
		echo:   e,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("marshal"))
	e.Use(otelecho.Middleware("marshal"))
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.POST("/decisions/:id/process", srv.HandleProcessDecision)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	errc := make(chan error, 1)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for a signal to exit.
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exitSignals:
		srv.logger.Info("received OS exit signal", "signal", sig)
	case err := <-errc:
		srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
		return err
	}

	if err := srv.Shutdown(); err != nil {
		srv.logger.Error("HTTP server shutdown error", "err", err)
		return err
	}
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
