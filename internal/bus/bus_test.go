package bus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chaz8081/gostt-live/internal/dispatch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := StartEmbedded("127.0.0.1", -1, testLogger())
	if err != nil {
		t.Fatalf("StartEmbedded() error = %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestPublishSubjects(t *testing.T) {
	srv := startServer(t)

	pub, err := Connect(Config{URL: srv.URL(), SubjectPrefix: "test.stt."}, testLogger())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer pub.Close()
	if !pub.Healthy() {
		t.Fatal("Healthy() = false after connect")
	}

	sub, err := nats.Connect(srv.URL())
	if err != nil {
		t.Fatalf("nats.Connect() error = %v", err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 8)
	if _, err := sub.ChanSubscribe("test.stt.>", msgs); err != nil {
		t.Fatalf("ChanSubscribe() error = %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	sent := []dispatch.Result{
		{Kind: dispatch.Partial, Text: "hello", Utterance: 1, Session: "s1"},
		{Kind: dispatch.Final, Text: "hello world", Utterance: 1, Session: "s1"},
		{Kind: dispatch.Completed, Utterance: 2, Session: "s1"},
	}
	wantSubjects := []string{"test.stt.partial", "test.stt.final", "test.stt.completed"}
	for _, r := range sent {
		if err := pub.Publish(context.Background(), r); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	for i, want := range wantSubjects {
		select {
		case m := <-msgs:
			if m.Subject != want {
				t.Errorf("message %d subject = %q, want %q", i, m.Subject, want)
			}
			var got dispatch.Result
			if err := json.Unmarshal(m.Data, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got.Text != sent[i].Text || got.Utterance != sent[i].Utterance || got.Kind != sent[i].Kind {
				t.Errorf("message %d = %+v, want %+v", i, got, sent[i])
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestDefaultPrefix(t *testing.T) {
	srv := startServer(t)
	pub, err := Connect(Config{URL: srv.URL()}, testLogger())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer pub.Close()
	if got := pub.Subject(dispatch.Final); got != "gostt.transcript.final" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestConnectErrors(t *testing.T) {
	if _, err := Connect(Config{}, testLogger()); err == nil {
		t.Error("Connect() with no url succeeded")
	}
	if _, err := Connect(Config{URL: "nats://127.0.0.1:1", ConnectTimeout: 100 * time.Millisecond}, testLogger()); err == nil {
		t.Error("Connect() to a closed port succeeded")
	}
}

func TestFanoutToBus(t *testing.T) {
	srv := startServer(t)
	pub, err := Connect(Config{URL: srv.URL()}, testLogger())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer pub.Close()

	sub, err := nats.Connect(srv.URL())
	if err != nil {
		t.Fatalf("nats.Connect() error = %v", err)
	}
	defer sub.Close()
	s, err := sub.SubscribeSync(pub.Subject(dispatch.Final))
	if err != nil {
		t.Fatalf("SubscribeSync() error = %v", err)
	}
	_ = sub.Flush()

	in := make(chan dispatch.Result, 1)
	in <- dispatch.Result{Kind: dispatch.Final, Text: "done", Utterance: 3}
	close(in)
	dispatch.NewFanout(testLogger(), pub).Run(context.Background(), in)

	m, err := s.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg() error = %v", err)
	}
	var got dispatch.Result
	if err := json.Unmarshal(m.Data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Text != "done" {
		t.Errorf("Text = %q, want %q", got.Text, "done")
	}
}
