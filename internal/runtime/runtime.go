package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurlabs/murmur-core/internal/bus"
	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/engine"
	"github.com/murmurlabs/murmur-core/internal/events"
	"github.com/murmurlabs/murmur-core/internal/natsserver"
	"github.com/murmurlabs/murmur-core/internal/session"
	"github.com/murmurlabs/murmur-core/internal/store"
)

// Runtime wires capture, engine, sessions, persistence and the control API
// into one daemon process.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error

	busClient *bus.Client
	embedded  *natsserver.EmbeddedServer
	engine    engine.Engine
	store     *store.Store
	manager   *session.Manager
	batch     *session.BatchRecorder

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the runtime up and blocks until ctx is cancelled, then shuts
// everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	r.store, err = store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}

	r.engine, err = engine.New(r.cfg.Engine, r.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	sink, err := r.setupSink(ctx)
	if err != nil {
		return err
	}

	opener, err := r.setupOpener()
	if err != nil {
		return err
	}

	r.manager = session.NewManager(r.cfg.Pipeline, opener, r.engine, sink, r.store, r.logger)
	r.batch = session.NewBatchRecorder(r.cfg.Pipeline, opener, r.engine, r.store, r.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	r.registerAPI(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("engine", r.cfg.Engine.Mode),
		slog.String("capture", r.cfg.Capture.Backend))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	r.manager.StopAll()
	if r.batch.Active() {
		if _, err := r.batch.Stop(context.Background()); err != nil {
			r.logger.Warn("failed to finish batch recording", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if err := r.engine.Close(); err != nil {
		r.logger.Error("engine close error", slog.String("error", err.Error()))
	}
	r.busClient.Close()
	r.embedded.Shutdown()
	if err := r.store.Close(); err != nil {
		r.logger.Error("store close error", slog.String("error", err.Error()))
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) setupSink(ctx context.Context) (events.Sink, error) {
	if !r.cfg.Bus.Enabled {
		r.logger.Info("bus disabled, events stay in process")
		return events.NewMemorySink(), nil
	}

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
	}
	r.embedded = embedded

	servers := r.cfg.Bus.Servers
	if r.cfg.Bus.Embedded {
		servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", r.cfg.Bus.Port)}
	}
	busCfg := r.cfg.Bus
	busCfg.Servers = servers
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		r.embedded.Shutdown()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	r.busClient = client
	return events.NewNATSSink(client, r.logger), nil
}

func (r *Runtime) setupOpener() (capture.Opener, error) {
	switch r.cfg.Capture.Backend {
	case "portaudio":
		return capture.NewPortAudioOpener(
			r.cfg.Capture.InputDevice,
			r.cfg.Capture.LoopbackDevice,
			r.cfg.Capture.BlockFrames,
			r.logger,
		), nil
	case "mock":
		return capture.NewMockOpener(r.cfg.Pipeline.TargetSampleRate, 1), nil
	}
	return nil, fmt.Errorf("unknown capture backend %q", r.cfg.Capture.Backend)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !r.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	if r.cfg.Bus.Enabled && !r.busClient.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("bus disconnected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
