package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/orplan/api/schedule"
	"github.com/kilianp07/orplan/config"
	"github.com/kilianp07/orplan/core/events"
	"github.com/kilianp07/orplan/core/history"
	coremetrics "github.com/kilianp07/orplan/core/metrics"
	coremon "github.com/kilianp07/orplan/core/monitoring"
	"github.com/kilianp07/orplan/core/prediction"
	"github.com/kilianp07/orplan/core/replan"
	"github.com/kilianp07/orplan/core/scheduler"
	"github.com/kilianp07/orplan/infra/logger"
	"github.com/kilianp07/orplan/infra/metrics"
	"github.com/kilianp07/orplan/infra/monitoring"
	"github.com/kilianp07/orplan/infra/mqtt"
	_ "github.com/kilianp07/orplan/infra/prediction"
	"github.com/kilianp07/orplan/internal/eventbus"
)

const busBuffer = 64

// Service wires the re-planner to its storage, transports and exporters.
type Service struct {
	Planner *replan.Planner

	cfg     *config.Config
	bus     *eventbus.Bus[events.Event]
	store   history.Store
	sink    coremetrics.MetricsSink
	monitor coremon.Monitor
	bridge  *mqtt.Bridge
	handler http.Handler
	log     logger.Logger

	closeOnce sync.Once
}

// New creates a Service from the configuration. Nothing is started until
// Run is called.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	pred, err := prediction.New(cfg.Prediction)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	solver := scheduler.New(cfg.Topology, cfg.Scheduler, logger.New("scheduler"))
	planner, err := replan.NewPlanner(cfg.Topology, solver, pred, logger.New("planner"))
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	planner.SetFallback(cfg.Prediction.FallbackMinutes, cfg.Prediction.MinMinutes)
	planner.SetMonitor(mon)

	store, err := history.Open(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	planner.SetHistory(store)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New[events.Event](busBuffer)
	planner.SetBus(bus)

	svc := &Service{
		Planner: planner,
		cfg:     cfg,
		bus:     bus,
		store:   store,
		sink:    sink,
		monitor: mon,
		handler: schedule.NewHandler(planner, store, cfg.HTTP.Token),
		log:     logg,
	}
	if cfg.MQTT.Enabled() {
		bridge, err := mqtt.NewBridge(cfg.MQTT, planner, mon)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt bridge: %w", err)
		}
		svc.bridge = bridge
	}
	return svc, nil
}

// Handler returns the schedule API.
func (s *Service) Handler() http.Handler { return s.handler }

// Seed ingests the roster named by the cases_file setting, if any.
func (s *Service) Seed(ctx context.Context) error {
	if s.cfg.CasesFile == "" {
		return nil
	}
	recs, err := LoadRecords(s.cfg.CasesFile)
	if err != nil {
		return err
	}
	sched, err := s.Planner.Ingest(ctx, recs)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", s.cfg.CasesFile, err)
	}
	s.log.Infof("seeded %d cases from %s (revision %s)", len(sched.Rows), s.cfg.CasesFile, sched.Revision)
	return nil
}

// Run starts the listeners and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	collected := metrics.StartEventCollector(ctx, s.bus, s.sink)
	forwarded := closedChan()
	if s.bridge != nil {
		forwarded = s.bridge.Forward(ctx, s.bus)
	}
	if err := s.Seed(ctx); err != nil {
		s.log.Errorf("seed: %v", err)
		s.monitor.CaptureException(err, map[string]string{"module": "service"})
	}
	if addr := s.cfg.HTTP.MetricsAddress; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Address, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("schedule API listening on %s", s.cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("api shutdown: %v", err)
	}
	s.bus.Close()
	<-collected
	<-forwarded
	return runErr
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.bridge != nil {
			s.bridge.Disconnect()
		}
		s.bus.Close()
		if c, ok := s.sink.(interface{ Close() }); ok {
			c.Close()
		}
		err = s.store.Close()
		s.monitor.Flush(2 * time.Second)
	})
	return err
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
