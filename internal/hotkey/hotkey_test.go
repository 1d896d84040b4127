package hotkey

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		combo   string
		want    []string
		wantErr bool
	}{
		{combo: "ctrl+shift+r", want: []string{"ctrl", "shift", "r"}},
		{combo: " Ctrl + Space ", want: []string{"ctrl", "space"}},
		{combo: "f9", want: []string{"f9"}},
		{combo: "ctrl++r", wantErr: true},
		{combo: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			got, err := ParseKeys(tt.combo)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKeys(%q) error = %v, wantErr %v", tt.combo, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKeys(%q) = %q, want %q", tt.combo, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseKeys(%q)[%d] = %q, want %q", tt.combo, i, got[i], tt.want[i])
				}
			}
		})
	}
}

type step struct {
	press bool
	want  EventType
	emit  bool
}

func TestTriggerModes(t *testing.T) {
	tests := []struct {
		mode  string
		steps []step
	}{
		{
			mode: ModeHold,
			steps: []step{
				{press: true, want: EventStart, emit: true},
				{press: true},
				{press: false, want: EventStop, emit: true},
				{press: false},
			},
		},
		{
			mode: ModeToggle,
			steps: []step{
				{press: true, want: EventStart, emit: true},
				{press: false},
				{press: true, want: EventStop, emit: true},
				{press: true, want: EventStart, emit: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			trig := &trigger{mode: tt.mode}
			for i, s := range tt.steps {
				var (
					got EventType
					ok  bool
				)
				if s.press {
					got, ok = trig.press()
				} else {
					got, ok = trig.release()
				}
				if ok != s.emit || (ok && got != s.want) {
					t.Errorf("step %d = (%v, %v), want (%v, %v)", i, got, ok, s.want, s.emit)
				}
			}
		})
	}
}

func TestNewListenerValidation(t *testing.T) {
	if _, err := NewListener(nil, ModeHold, nil); err == nil {
		t.Error("NewListener() with no keys succeeded")
	}
	if _, err := NewListener([]string{"f9"}, "tap", nil); err == nil {
		t.Error("NewListener() with unknown mode succeeded")
	}
	l, err := NewListener([]string{"f9"}, "", nil)
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if l.trig.mode != ModeHold {
		t.Errorf("default mode = %q, want %q", l.trig.mode, ModeHold)
	}
	l.Stop()
	l.Stop()
}

type fakeSession struct {
	calls    []string
	startErr error
}

func (s *fakeSession) StartSession() error {
	s.calls = append(s.calls, "start")
	return s.startErr
}

func (s *fakeSession) StopSession() { s.calls = append(s.calls, "stop") }

func TestDrive(t *testing.T) {
	events := make(chan Event, 4)
	events <- Event{Type: EventStart}
	events <- Event{Type: EventStop}
	events <- Event{Type: EventStart}
	close(events)

	s := &fakeSession{startErr: errors.New("closed")}
	Drive(context.Background(), events, s, slog.New(slog.NewTextHandler(io.Discard, nil)))

	want := []string{"start", "stop", "start"}
	if len(s.calls) != len(want) {
		t.Fatalf("calls = %q, want %q", s.calls, want)
	}
	for i := range want {
		if s.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, s.calls[i], want[i])
		}
	}
}

func TestDriveStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	Drive(ctx, make(chan Event), &fakeSession{}, nil)
}
