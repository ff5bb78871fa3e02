package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"webtoondl/config"
	"webtoondl/downloader"
	"webtoondl/models"
)

// Downloader is the pipeline the HTTP surface drives. *downloader.Manager
// implements it.
type Downloader interface {
	Download(ctx context.Context, req models.Request) (*downloader.Result, error)
	Gate() *downloader.Gate
	Tracker() *downloader.Tracker
}

// Options tunes the HTTP surface
type Options struct {
	DefaultFormat    models.Format
	ProgressInterval time.Duration
	ProgressIdle     time.Duration
	StaticDir        string
	CORSOrigins      []string
}

// OptionsFromConfig maps the configuration file onto server options
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		DefaultFormat:    models.ParseFormat(cfg.Output.Format, models.FormatPDF),
		ProgressInterval: cfg.Server.ProgressInterval(),
		ProgressIdle:     cfg.Server.ProgressIdle(),
		StaticDir:        cfg.Server.StaticDir,
		CORSOrigins:      cfg.Server.CORSOrigins,
	}
}

// New builds the echo instance with middleware and routes registered
func New(dl Downloader, opts Options) *echo.Echo {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 500 * time.Millisecond
	}
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = models.FormatPDF
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("[HTTP] %s %s %d %v id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			log.Printf("[HTTP] %s %s %d %v id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  opts.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{echo.HeaderXRequestID, echo.HeaderContentDisposition},
	}))

	h := NewHandler(dl, opts)
	e.POST("/download", h.HandleDownload)
	e.GET("/progress", h.HandleProgress)
	e.GET("/status", h.HandleStatus)

	if opts.StaticDir != "" {
		e.Static("/", opts.StaticDir)
	}

	return e
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Server running on http://%s", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Printf("[Server] ✓ Stopped")
	return nil
}
