// Package settings persists the master volume and mute, coalescing rapid
// changes into occasional writes.
package settings

import (
	"log/slog"
	"sync"
	"time"

	"audiomix/logger"
)

// DefaultSyncInterval is how long changes are collected before one write.
const DefaultSyncInterval = 2 * time.Second

// Persistence records master setting changes in a Store and writes them out
// at most once per interval.
type Persistence struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	syncs int
}

func NewPersistence(store Store, interval time.Duration) *Persistence {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Persistence{
		store:    store,
		interval: interval,
		logger:   logger.WithComponent("settings"),
	}
}

// SaveVolume stores the master volume in percent and schedules a sync.
func (p *Persistence) SaveVolume(percent int) {
	p.store.Set(KeyMasterVolume, percent)
	p.RequestSync()
}

// SaveMuted stores the master mute flag and schedules a sync.
func (p *Persistence) SaveMuted(muted bool) {
	p.store.Set(KeyMasterMute, muted)
	p.RequestSync()
}

// RequestSync schedules a write after the interval unless one is pending.
func (p *Persistence) RequestSync() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		return
	}
	p.timer = time.AfterFunc(p.interval, p.fire)
}

func (p *Persistence) fire() {
	p.mu.Lock()
	p.timer = nil
	p.mu.Unlock()

	p.sync()
}

func (p *Persistence) sync() {
	p.mu.Lock()
	p.syncs++
	p.mu.Unlock()

	// no retry; the next change schedules another attempt
	if err := p.store.Sync(); err != nil {
		p.logger.Error("Failed to write audio mixer settings", slog.Any("error", err))
		return
	}
	p.logger.Debug("Audio mixer settings written")
}

// Pending reports whether a write is scheduled.
func (p *Persistence) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Flush writes a scheduled change right away.
func (p *Persistence) Flush() {
	p.mu.Lock()
	if p.timer == nil || !p.timer.Stop() {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.mu.Unlock()

	p.sync()
}

// Stop cancels a scheduled write without performing it.
func (p *Persistence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Syncs returns how many writes were attempted.
func (p *Persistence) Syncs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syncs
}
