// Package inject types final transcripts into the active application
// using robotgo for keystroke simulation or clipboard paste.
package inject

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// Methods accepted by NewInjector.
const (
	MethodType  = "type"
	MethodPaste = "paste"
)

// TextInjector delivers text to wherever the user is typing.
type TextInjector interface {
	Inject(text string) error
}

// keyboard is the subset of robotgo the injector drives.
type keyboard interface {
	Type(text string)
	ReadAll() (string, error)
	WriteAll(text string) error
	KeyTap(key string, mods ...any) error
}

type robotKeyboard struct{}

func (robotKeyboard) Type(text string)                     { robotgo.Type(text) }
func (robotKeyboard) ReadAll() (string, error)             { return robotgo.ReadAll() }
func (robotKeyboard) WriteAll(text string) error           { return robotgo.WriteAll(text) }
func (robotKeyboard) KeyTap(key string, mods ...any) error { return robotgo.KeyTap(key, mods...) }

// Injector handles typing or pasting text into the active application.
type Injector struct {
	method   string
	modifier string
	kb       keyboard
}

var _ TextInjector = (*Injector)(nil)

// NewInjector creates an Injector with the given method, "type" (keystroke
// simulation) or "paste" (clipboard).
func NewInjector(method string) (*Injector, error) {
	return newInjector(method, robotKeyboard{})
}

func newInjector(method string, kb keyboard) (*Injector, error) {
	switch method {
	case "", MethodType:
		method = MethodType
	case MethodPaste:
	default:
		return nil, fmt.Errorf("inject: unknown method %q (want %q or %q)", method, MethodType, MethodPaste)
	}
	modifier := "ctrl"
	if runtime.GOOS == "darwin" {
		modifier = "cmd"
	}
	return &Injector{method: method, modifier: modifier, kb: kb}, nil
}

// Inject sends text to the active application using the configured method.
func (inj *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}
	if inj.method == MethodPaste {
		return inj.paste(text)
	}
	inj.kb.Type(text)
	return nil
}

// paste copies text to the clipboard and pastes it. Faster for long text;
// the previous clipboard is restored afterwards.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.kb.ReadAll()

	if err := inj.kb.WriteAll(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.kb.KeyTap("v", inj.modifier); err != nil {
		return fmt.Errorf("inject: key tap %s+v: %w", inj.modifier, err)
	}

	// Best effort.
	_ = inj.kb.WriteAll(prev)
	return nil
}
