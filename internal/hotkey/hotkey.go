// Package hotkey turns a global key combination into transcription session
// requests. In "hold" mode the session runs while the keys are held; in
// "toggle" mode each press flips it.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// Modes accepted by NewListener.
const (
	ModeHold   = "hold"
	ModeToggle = "toggle"
)

// EventType indicates whether a session should start or stop.
type EventType int

const (
	EventStart EventType = iota
	EventStop
)

func (e EventType) String() string {
	if e == EventStart {
		return "start"
	}
	return "stop"
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Session is the part of the transcriber a hotkey drives.
type Session interface {
	StartSession() error
	StopSession()
}

// ParseKeys splits a combo such as "ctrl+shift+r" into lowercase key names.
func ParseKeys(combo string) ([]string, error) {
	var keys []string
	for _, k := range strings.Split(combo, "+") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return nil, fmt.Errorf("hotkey: empty key in %q", combo)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// trigger maps key presses and releases to session events for one mode.
type trigger struct {
	mode   string
	mu     sync.Mutex
	active bool
}

func (t *trigger) press() (EventType, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == ModeToggle {
		t.active = !t.active
		if t.active {
			return EventStart, true
		}
		return EventStop, true
	}
	// Key repeat delivers KeyDown while held.
	if t.active {
		return 0, false
	}
	t.active = true
	return EventStart, true
}

func (t *trigger) release() (EventType, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == ModeToggle || !t.active {
		return 0, false
	}
	t.active = false
	return EventStop, true
}

// Listener manages a global hotkey and emits start/stop events.
type Listener struct {
	keys []string
	trig *trigger
	ch   chan Event
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

// NewListener creates a Listener for the given key combo and mode.
func NewListener(keys []string, mode string, logger *slog.Logger) (*Listener, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hotkey: no keys configured")
	}
	switch mode {
	case "":
		mode = ModeHold
	case ModeHold, ModeToggle:
	default:
		return nil, fmt.Errorf("hotkey: unknown mode %q (want %q or %q)", mode, ModeHold, ModeToggle)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		keys: keys,
		trig: &trigger{mode: mode},
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
		log:  logger.With("component", "hotkey"),
	}, nil
}

// Events returns the channel that receives hotkey events. It is closed when
// the listener stops.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start registers the hotkey and blocks until Stop is called.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
		if ev, ok := l.trig.press(); ok {
			l.emit(ev)
		}
	})
	hook.Register(hook.KeyUp, l.keys, func(hook.Event) {
		if ev, ok := l.trig.release(); ok {
			l.emit(ev)
		}
	})

	l.log.Info("hotkey registered", "keys", strings.Join(l.keys, "+"), "mode", l.trig.mode)
	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

func (l *Listener) emit(ev EventType) {
	select {
	case l.ch <- Event{Type: ev}:
	default:
		l.log.Warn("hotkey event dropped", "event", ev.String())
	}
}

// Stop terminates the hotkey listener. It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Drive forwards events to s until events is closed or ctx ends.
func Drive(ctx context.Context, events <-chan Event, s Session, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case EventStart:
				if err := s.StartSession(); err != nil {
					logger.Error("start session", "error", err)
				}
			case EventStop:
				s.StopSession()
			}
		}
	}
}
