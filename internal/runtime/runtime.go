package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boothworks/leadcore/internal/bus"
	"github.com/boothworks/leadcore/internal/config"
	"github.com/boothworks/leadcore/internal/extract"
	"github.com/boothworks/leadcore/internal/leadstore"
	"github.com/boothworks/leadcore/internal/pipeline"
	"github.com/boothworks/leadcore/internal/stage"
	"github.com/boothworks/leadcore/internal/transcribe"
)

// Runtime wires the lead pipeline together and runs the operational HTTP
// surface. Lead intake itself happens through the Assembler, which embedding
// services obtain via Assembler().
type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	store         *leadstore.Store
	busClient     *bus.Client
	assembler     *pipeline.Assembler
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Assembler exposes the wired pipeline once Start has run.
func (r *Runtime) Assembler() *pipeline.Assembler { return r.assembler }

// Store exposes the lead store once Start has run.
func (r *Runtime) Store() *leadstore.Store { return r.store }

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	store, err := leadstore.Open(ctx, r.cfg.LeadStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open lead store: %w", err)
	}
	r.store = store
	defer func() {
		if err := store.Close(); err != nil {
			r.logger.Error("lead store close error", slog.String("error", err.Error()))
		}
	}()

	if r.cfg.Bus.Enabled {
		client, err := bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		r.busClient = client
		defer client.Close()
	}

	assembler, err := r.buildAssembler()
	if err != nil {
		return err
	}
	r.assembler = assembler

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

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
		slog.String("transcriber", r.cfg.Transcriber.Mode),
		slog.String("extractor", r.cfg.Extractor.Mode),
		slog.Bool("bus", r.cfg.Bus.Enabled))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

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

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildAssembler() (*pipeline.Assembler, error) {
	stager := stage.NewStager(r.cfg.Staging.Dir)

	var archive pipeline.Archiver
	if r.cfg.ObjectStore.Bucket != "" {
		archive = stage.NewArchive(r.cfg.ObjectStore, r.logger)
	} else {
		r.logger.Warn("no object store bucket configured, image captures will fail at staging")
	}

	transcriber, err := r.buildTranscriber()
	if err != nil {
		return nil, err
	}
	extractor, err := r.buildExtractor()
	if err != nil {
		return nil, err
	}

	var publisher pipeline.Publisher
	if r.busClient != nil {
		publisher = r.busClient
	}

	return pipeline.New(stager, archive, transcriber, extractor, nil, r.store, publisher, r.logger), nil
}

func (r *Runtime) buildTranscriber() (transcribe.Transcriber, error) {
	switch r.cfg.Transcriber.Mode {
	case "mock":
		return transcribe.NewMockTranscriber(), nil
	case "exec":
		return transcribe.NewExecTranscriber(r.cfg.Transcriber)
	case "openai":
		return transcribe.NewOpenAITranscriber(r.cfg.Transcriber), nil
	default:
		return nil, fmt.Errorf("unknown transcriber mode %q", r.cfg.Transcriber.Mode)
	}
}

func (r *Runtime) buildExtractor() (extract.Extractor, error) {
	switch r.cfg.Extractor.Mode {
	case "mock":
		return extract.NewMockExtractor(), nil
	case "ollama":
		return extract.NewOllamaExtractor(r.cfg.Extractor), nil
	case "exec":
		return extract.NewExecExtractor(r.cfg.Extractor.Command)
	default:
		return nil, fmt.Errorf("unknown extractor mode %q", r.cfg.Extractor.Mode)
	}
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
	if r.busClient != nil && !r.busClient.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("bus disconnected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
