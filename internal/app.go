package internal

import (
	"clarity/internal/controllers"
	"clarity/internal/persistence/interfaces"
	"clarity/internal/providers"
	"clarity/internal/query"
	"clarity/internal/realtime"
	"clarity/internal/structures"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	WebServer *http.Server
}

func NewApp(
	apiController *controllers.ApiController,
	healthController *controllers.HealthController,
	scheduler interfaces.SchedulerInterface,
	listener *realtime.Listener,
	queries *query.Client,
	conf *structures.Config,
	logger providers.Logger,
	router providers.RouterProviderInterface,
	metrics providers.MetricsProviderInterface,
) (*App, error) {
	apiMux := http.NewServeMux()
	for _, route := range router.GetRoutes() {
		apiMux.Handle(route.Url, route.Handler)
		logger.Debugf(providers.TypeApp, "Route %s %v", route.Url, route.Methods)
	}

	instrumentedAPI := providers.MetricsMiddleware(metrics, apiMux)

	// /health and /metrics stay outside the request metrics.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)

	logger.Infof(providers.TypeApp, "Starting %s", conf.AppName)
	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := scheduler.Restore(restoreCtx)
	restoreCancel()
	if err != nil {
		logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}

	// Request contexts derive from baseCtx so open event streams end on shutdown.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	app := &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			BaseContext:  func(net.Listener) context.Context { return baseCtx },
		},
	}

	scheduler.Init()
	listener.Start(context.Background())

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", conf.WebServer.Host, conf.WebServer.Port)
		if err := app.WebServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		listener.Stop()
		scheduler.Stop()
		return nil, fmt.Errorf("server error: %w", err)
	}

	listener.Stop()
	scheduler.Stop()
	cancelRequests()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = app.WebServer.Shutdown(ctx); err != nil {
		return nil, err
	}
	queries.Close()
	err = scheduler.Persist(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infof(providers.TypeApp, "gracefully stopped")
	return app, nil
}
