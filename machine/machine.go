package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"audiomix/config"
	"audiomix/logger"
	"audiomix/mixer"
	"audiomix/playback"
	"audiomix/session"
	"audiomix/settings"
	"audiomix/sink"

	"github.com/disgoorg/ffmpeg-audio"
	"github.com/gopxl/beep/v2"
)

// Source is a built-in producer started with the machine: a file when Path
// is set, otherwise a sine tone.
type Source struct {
	Path     string
	Tone     float64
	Duration time.Duration
}

func (s Source) name() string {
	if s.Path != "" {
		return s.Path
	}
	return fmt.Sprintf("tone %.0f Hz", s.Tone)
}

// Machine represents the main application state
type Machine struct {
	config      *config.Config
	sources     []Source
	persistence *settings.Persistence
	sink        sink.Sink
	engine      *mixer.Engine
	sessions    *session.Table
	cache       *playback.Cache
	monitor     *StatusMonitor
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	errorChan   chan error
}

// New creates a new Machine instance
func New(cfg *config.Config, sources ...Source) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Machine{
		config:    cfg,
		sources:   sources,
		logger:    logger.WithComponent("machine"),
		ctx:       ctx,
		cancel:    cancel,
		errorChan: make(chan error, 10),
	}
}

// Initialize loads the persisted master settings, opens the output and
// builds the mixer. An output that cannot be opened is logged and replaced
// by one that fails every write, so the mixer still runs.
func (m *Machine) Initialize() error {
	m.logger.Info("Initializing machine...")

	store, err := settings.NewViperStore(m.config.Settings.File)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	m.persistence = settings.NewPersistence(store, m.config.Settings.SyncInterval)
	volume, muted := settings.LoadMaster(store)

	out, err := sink.Open(m.config.SinkOptions())
	if err != nil {
		m.logger.Error("Failed to open audio output",
			slog.String("driver", m.config.Sink.Driver),
			slog.String("path", m.config.Sink.Path),
			slog.Any("error", err))
		out = sink.NewUnavailable(err)
	}
	m.sink = out

	m.sessions = session.NewTable()
	m.engine = mixer.New(mixer.Options{
		BufferSize:     m.config.Mixer.BufferSize,
		SampleRate:     m.config.Mixer.SampleRate,
		StreamCapacity: m.config.Mixer.StreamCapacity,
		FadeSteps:      m.config.Mixer.FadeSteps,
		VolumePercent:  volume,
		Muted:          muted,
	}, m.sink, m.persistence, m.sessions)

	var decodeOpts []ffmpeg.ConfigOpt
	if m.config.Playback.FFmpeg != "" {
		decodeOpts = append(decodeOpts, ffmpeg.WithExec(m.config.Playback.FFmpeg))
	}
	m.cache = playback.NewCache(beep.SampleRate(m.config.Mixer.SampleRate), decodeOpts...)
	m.monitor = NewStatusMonitor(m.engine, m.sessions, &m.wg)

	m.logger.Info("Machine initialized successfully",
		slog.Int("master_volume", m.engine.MasterVolume()),
		slog.Bool("muted", m.engine.Muted()))
	return nil
}

// Start begins mixing and starts the configured sources
func (m *Machine) Start() error {
	if m.engine == nil {
		return errors.New("machine is not initialized")
	}
	m.logger.Info("Starting machine operations...")

	m.engine.Start()

	m.monitor.SetContext(m.ctx)
	m.monitor.Start()

	for _, src := range m.sources {
		if _, err := m.Play(src); err != nil {
			return fmt.Errorf("failed to start %s: %w", src.name(), err)
		}
	}

	m.logger.Info("Machine started successfully", slog.Int("sources", len(m.sources)))
	return nil
}

// Play opens a connection for src and feeds it to the mixer in the
// background until it ends or the machine stops.
func (m *Machine) Play(src Source) (*playback.Player, error) {
	streamer, format, err := m.open(src)
	if err != nil {
		return nil, err
	}

	conn := m.sessions.Open(src.name())
	stream := m.engine.CreateStream(conn)
	player, err := playback.NewPlayer(src.name(), conn, stream, streamer, format, m.engine.BufferSize())
	if err != nil {
		conn.Close()
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer player.Close()

		err := player.Run(m.ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, playback.ErrDisconnected) {
			m.logger.Error("Playback failed", slog.String("source", src.name()), slog.Any("error", err))
			select {
			case m.errorChan <- err:
			default:
			}
		}
	}()
	return player, nil
}

func (m *Machine) open(src Source) (beep.Streamer, beep.Format, error) {
	rate := beep.SampleRate(m.config.Mixer.SampleRate)

	if src.Path == "" {
		return playback.Tone(src.Tone, src.Duration, rate)
	}

	s, err := m.cache.Streamer(m.ctx, src.Path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if m.config.Playback.Loop {
		return playback.Loop(s), format, nil
	}
	return s, format, nil
}

// Stop gracefully shuts down the machine
func (m *Machine) Stop() error {
	m.logger.Info("Stopping machine...")

	// Cancel context to stop all producers
	m.cancel()

	if m.monitor != nil {
		m.monitor.Stop()
	}

	m.wg.Wait()

	// write out a volume change still waiting for its timer
	if m.persistence != nil {
		m.persistence.Flush()
	}

	var err error
	if m.sink != nil {
		err = m.sink.Close()
	}

	m.logger.Info("Machine stopped")
	return err
}

// Engine returns the mixer, nil before Initialize.
func (m *Machine) Engine() *mixer.Engine {
	return m.engine
}

func (m *Machine) Sessions() *session.Table {
	return m.sessions
}

// Error returns the error channel for monitoring errors
func (m *Machine) Error() <-chan error {
	return m.errorChan
}
