package machine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"audiomix/logger"
	"audiomix/mixer"
	"audiomix/session"
)

// DefaultStatusInterval is how often the mixer status is logged
const DefaultStatusInterval = 30 * time.Second

// StatusMonitor periodically logs the mixer and session state
type StatusMonitor struct {
	engine      *mixer.Engine
	sessions    *session.Table
	interval    time.Duration
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          *sync.WaitGroup
	stopChannel chan struct{}
	stopOnce    sync.Once
}

// NewStatusMonitor creates a new StatusMonitor instance
func NewStatusMonitor(engine *mixer.Engine, sessions *session.Table, wg *sync.WaitGroup) *StatusMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &StatusMonitor{
		engine:      engine,
		sessions:    sessions,
		interval:    DefaultStatusInterval,
		logger:      logger.WithComponent("status-monitor"),
		ctx:         ctx,
		cancel:      cancel,
		wg:          wg,
		stopChannel: make(chan struct{}),
	}
}

// Start begins periodic status reporting
func (s *StatusMonitor) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Debug("Starting status monitoring", slog.Duration("interval", s.interval))

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Report()
			case <-s.ctx.Done():
				s.logger.Debug("Status monitoring stopped")
				return
			case <-s.stopChannel:
				s.logger.Debug("Status monitoring stopped via stop channel")
				return
			}
		}
	}()
}

// Report logs one snapshot of the mixer state
func (s *StatusMonitor) Report() {
	s.logger.Info("Mixer status",
		slog.Int("master_volume", s.engine.MasterVolume()),
		slog.Bool("muted", s.engine.Muted()),
		slog.Int("active_streams", s.engine.ActiveStreams()),
		slog.Int("pending_streams", s.engine.PendingStreams()),
		slog.Uint64("cycles", s.engine.Cycles()),
		slog.Int("sessions", s.sessions.Len()))

	s.sessions.ForEach(func(c *session.Connection) {
		if dropped := c.Dropped(); dropped > 0 {
			s.logger.Debug("Session dropped notifications",
				slog.String("name", c.Name()),
				slog.Uint64("dropped", dropped))
		}
	})
}

// Stop stops status monitoring
func (s *StatusMonitor) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		close(s.stopChannel)
	})
}

// SetContext updates the context for cancellation
func (s *StatusMonitor) SetContext(ctx context.Context) {
	s.cancel() // Cancel the old context
	s.ctx, s.cancel = context.WithCancel(ctx)
}
