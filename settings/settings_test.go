package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu      sync.Mutex
	values  map[string]any
	written []map[string]any
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]any{
		KeyMasterVolume: DefaultMasterVolume,
		KeyMasterMute:   DefaultMasterMute,
	}}
}

func (m *memoryStore) GetInt(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, _ := m.values[key].(int)
	return v
}

func (m *memoryStore) GetBool(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, _ := m.values[key].(bool)
	return v
}

func (m *memoryStore) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *memoryStore) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	snapshot := make(map[string]any, len(m.values))
	for k, v := range m.values {
		snapshot[k] = v
	}
	m.written = append(m.written, snapshot)
	return nil
}

func (m *memoryStore) writes() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.written...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPersistence_CoalescesRapidChanges(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	p := NewPersistence(store, 50*time.Millisecond)

	for _, v := range []int{10, 20, 30, 40, 55} {
		p.SaveVolume(v)
	}
	if !p.Pending() {
		t.Fatal("Pending() = false right after a change")
	}

	waitFor(t, func() bool { return len(store.writes()) > 0 })
	time.Sleep(100 * time.Millisecond)

	writes := store.writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want exactly 1", len(writes))
	}
	if got := writes[0][KeyMasterVolume]; got != 55 {
		t.Errorf("persisted volume = %v, want 55", got)
	}
	if p.Pending() {
		t.Error("Pending() = true after the write")
	}
}

func TestPersistence_RearmsAfterWrite(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	p := NewPersistence(store, 10*time.Millisecond)

	p.SaveMuted(true)
	waitFor(t, func() bool { return len(store.writes()) == 1 })

	p.SaveMuted(false)
	waitFor(t, func() bool { return len(store.writes()) == 2 })

	writes := store.writes()
	if writes[0][KeyMasterMute] != true || writes[1][KeyMasterMute] != false {
		t.Errorf("persisted mutes = %v, %v, want true, false", writes[0][KeyMasterMute], writes[1][KeyMasterMute])
	}
}

func TestPersistence_FailureIsNotRetried(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.err = errors.New("disk full")
	p := NewPersistence(store, 10*time.Millisecond)

	p.SaveVolume(80)
	waitFor(t, func() bool { return p.Syncs() == 1 })
	time.Sleep(50 * time.Millisecond)

	if p.Syncs() != 1 {
		t.Errorf("Syncs() = %d, want 1 (no automatic retry)", p.Syncs())
	}
	if p.Pending() {
		t.Error("a failed write left a sync scheduled")
	}
}

func TestPersistence_Flush(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	p := NewPersistence(store, time.Hour)

	p.Flush()
	if len(store.writes()) != 0 {
		t.Fatal("Flush() without pending changes wrote")
	}

	p.SaveVolume(120)
	p.Flush()

	writes := store.writes()
	if len(writes) != 1 || writes[0][KeyMasterVolume] != 120 {
		t.Errorf("writes after Flush = %v, want one with volume 120", writes)
	}
	if p.Pending() {
		t.Error("Pending() = true after Flush")
	}
}

func TestPersistence_Stop(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	p := NewPersistence(store, 20*time.Millisecond)

	p.SaveVolume(5)
	p.Stop()
	time.Sleep(60 * time.Millisecond)

	if len(store.writes()) != 0 {
		t.Error("Stop() did not cancel the scheduled write")
	}
}

func TestViperStore_DefaultsAndRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	store, err := NewViperStore(path)
	if err != nil {
		t.Fatalf("NewViperStore() error = %v", err)
	}
	volume, muted := LoadMaster(store)
	if volume != DefaultMasterVolume || muted != DefaultMasterMute {
		t.Fatalf("LoadMaster() = %d, %v, want defaults", volume, muted)
	}

	store.Set(KeyMasterVolume, 150)
	store.Set(KeyMasterMute, true)
	if err := store.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	reopened, err := NewViperStore(path)
	if err != nil {
		t.Fatalf("NewViperStore() reopen error = %v", err)
	}
	volume, muted = LoadMaster(reopened)
	if volume != 150 || !muted {
		t.Errorf("LoadMaster() after reopen = %d, %v, want 150, true", volume, muted)
	}
}

func TestViperStore_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("master: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewViperStore(path); err == nil {
		t.Error("NewViperStore() accepted a malformed file")
	}
}

func TestViperStore_SyncFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing-dir", "settings.yaml")
	store, err := NewViperStore(path)
	if err != nil {
		t.Fatalf("NewViperStore() error = %v", err)
	}
	if err := store.Sync(); err == nil {
		t.Error("Sync() into a missing directory succeeded")
	}
}
