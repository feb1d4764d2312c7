// Package session models the connection boundary of the mixer: every client
// that produces audio holds a Connection, and the Table fans master volume
// and mute changes out to all of them.
package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"audiomix/logger"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NotificationBuffer is how many undelivered notifications a connection
// holds before new ones are dropped.
const NotificationBuffer = 16

// Kind tells which master setting a Notification reports.
type Kind int

const (
	MainMixVolume Kind = iota
	MainMixMuted
)

func (k Kind) String() string {
	switch k {
	case MainMixVolume:
		return "main_mix_volume"
	case MainMixMuted:
		return "main_mix_muted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Notification is a master setting change pushed to a connection.
type Notification struct {
	Kind   Kind
	Volume int
	Muted  bool
}

// Connection is one client session. It satisfies mixer.Client.
type Connection struct {
	id        snowflake.ID
	name      string
	connected atomic.Bool
	dropped   atomic.Uint64

	// mu orders sends against Close so a send never hits a closed channel
	mu        sync.Mutex
	notify    chan Notification
	closeOnce sync.Once
	onClose   func(snowflake.ID)
}

func (c *Connection) ID() snowflake.ID { return c.id }
func (c *Connection) Name() string     { return c.name }

func (c *Connection) IsConnected() bool {
	return c.connected.Load()
}

// Notifications delivers master setting changes. The channel is closed when
// the connection closes.
func (c *Connection) Notifications() <-chan Notification {
	return c.notify
}

// Dropped returns how many notifications were discarded on a full buffer.
func (c *Connection) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Connection) DidChangeMainMixVolume(percent int) {
	c.send(Notification{Kind: MainMixVolume, Volume: percent})
}

func (c *Connection) DidChangeMainMixMuted(muted bool) {
	c.send(Notification{Kind: MainMixMuted, Muted: muted})
}

func (c *Connection) send(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Load() {
		return
	}
	select {
	case c.notify <- n:
	default:
		c.dropped.Add(1)
	}
}

// Close marks the connection as gone. The mixer stops reading its stream on
// the next cycle.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.connected.Store(false)
		close(c.notify)
		c.mu.Unlock()

		if c.onClose != nil {
			c.onClose(c.id)
		}
	})
}

// Table is the registry of live connections.
type Table struct {
	mu    sync.RWMutex
	conns map[snowflake.ID]*Connection
	order []snowflake.ID

	seq    atomic.Uint32
	logger *slog.Logger
}

func NewTable() *Table {
	return &Table{
		conns:  make(map[snowflake.ID]*Connection),
		logger: logger.WithComponent("session"),
	}
}

// Open registers a new connection under a sanitized form of name.
func (t *Table) Open(name string) *Connection {
	clean, err := SanitizeName(name)
	if err != nil {
		clean = "client"
	}

	c := &Connection{
		id:     t.nextID(),
		name:   clean,
		notify: make(chan Notification, NotificationBuffer),
	}
	c.connected.Store(true)
	c.onClose = t.Remove

	t.mu.Lock()
	t.conns[c.id] = c
	t.order = append(t.order, c.id)
	t.mu.Unlock()

	t.logger.Info("Client connected", slog.String("id", c.id.String()), slog.String("name", c.name))
	return c
}

// the low 12 bits carry a sequence so connections opened in the same
// millisecond get distinct IDs
func (t *Table) nextID() snowflake.ID {
	seq := t.seq.Add(1) & 0xfff
	return snowflake.New(time.Now()) | snowflake.ID(seq)
}

// Remove drops a connection from the table and marks it disconnected.
func (t *Table) Remove(id snowflake.ID) {
	t.mu.Lock()
	c, ok := t.conns[id]
	if ok {
		delete(t.conns, id)
		for i, v := range t.order {
			if v == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	c.connected.Store(false)
	t.logger.Info("Client disconnected", slog.String("id", id.String()), slog.String("name", c.name))
}

// Get looks a connection up by ID.
func (t *Table) Get(id snowflake.ID) (*Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[id]
	return c, ok
}

// ForEach calls fn for every live connection in the order they were opened.
func (t *Table) ForEach(fn func(*Connection)) {
	t.mu.RLock()
	conns := make([]*Connection, 0, len(t.order))
	for _, id := range t.order {
		conns = append(conns, t.conns[id])
	}
	t.mu.RUnlock()

	for _, c := range conns {
		fn(c)
	}
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// NotifyMainMixVolume implements mixer.Notifier.
func (t *Table) NotifyMainMixVolume(percent int) {
	t.ForEach(func(c *Connection) { c.DidChangeMainMixVolume(percent) })
}

// NotifyMainMixMuted implements mixer.Notifier.
func (t *Table) NotifyMainMixMuted(muted bool) {
	t.ForEach(func(c *Connection) { c.DidChangeMainMixMuted(muted) })
}

// SanitizeName reduces a client supplied name to lowercase ASCII letters,
// digits and underscores.
func SanitizeName(name string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", err
	}

	filtered := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' || r == '-' {
			return r
		}
		return -1
	}, normalized)

	filtered = strings.Join(strings.Fields(strings.ToLower(filtered)), "_")
	if filtered == "" {
		return "", fmt.Errorf("name %q is empty after sanitizing", name)
	}
	return filtered, nil
}
