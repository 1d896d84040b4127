// Package bus publishes transcription results on NATS subjects so other
// processes can follow a session.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chaz8081/gostt-live/internal/dispatch"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty.
const DefaultSubjectPrefix = "gostt.transcript"

// Config describes the NATS connection.
type Config struct {
	URL            string
	SubjectPrefix  string
	Name           string
	ConnectTimeout time.Duration
}

// Publisher is a dispatch.Sink that publishes each result as JSON on
// <prefix>.<kind>, for example gostt.transcript.final.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

// Connect dials the configured server.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("bus: no NATS url configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "gostt-live"
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	conn, err := nats.Connect(cfg.URL, nats.Name(name), nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("bus: connect to nats: %w", err)
	}

	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	log := logger.With("component", "bus")
	log.Info("connected to NATS", "url", cfg.URL, "subject_prefix", prefix)
	return &Publisher{conn: conn, prefix: prefix, log: log}, nil
}

// Subject returns the subject results of kind k are published on.
func (p *Publisher) Subject(k dispatch.Kind) string {
	return p.prefix + "." + k.String()
}

func (p *Publisher) Name() string { return "nats" }

// Publish sends r. Completed results are published too so subscribers can
// close out an utterance that produced no text.
func (p *Publisher) Publish(_ context.Context, r dispatch.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("bus: marshal result: %w", err)
	}
	if err := p.conn.Publish(p.Subject(r.Kind), data); err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}
	return nil
}

// Healthy reports whether the connection is up.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.log.Info("closing NATS connection")
	err := p.conn.Drain()
	p.conn.Close()
	return err
}
