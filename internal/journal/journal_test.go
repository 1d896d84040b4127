package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaz8081/gostt-live/internal/dispatch"
)

func openTestStore(t *testing.T, retention time.Duration) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	s, err := Open(context.Background(), Config{Path: path, Retention: retention}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPublishStoresFinalsOnly(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	now := time.Now()

	results := []dispatch.Result{
		{Kind: dispatch.Partial, Text: "hel", Utterance: 1, Session: "a", Time: now},
		{Kind: dispatch.Final, Text: "hello", Utterance: 1, Session: "a", Time: now},
		{Kind: dispatch.Completed, Utterance: 2, Session: "a", Time: now},
		{Kind: dispatch.Final, Text: "other", Utterance: 1, Session: "b", Time: now},
	}
	for _, r := range results {
		if err := s.Publish(ctx, r); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	entries, err := s.List(ctx, "a", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].Text != "hello" || entries[0].Empty || entries[0].Utterance != 1 {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Text != "" || !entries[1].Empty || entries[1].Utterance != 2 {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if entries[0].CreatedAt.UnixNano() != now.UnixNano() {
		t.Errorf("CreatedAt = %v, want %v", entries[0].CreatedAt, now)
	}

	all, err := s.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("List(all) error = %v", err)
	}
	if len(all) != 2 || all[1].Session != "b" {
		t.Errorf("List(all) = %+v, want the two most recent entries", all)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t, time.Hour)
	ctx := context.Background()
	now := time.Now()

	old := dispatch.Result{Kind: dispatch.Final, Text: "old", Utterance: 1, Session: "a", Time: now.Add(-2 * time.Hour)}
	fresh := dispatch.Result{Kind: dispatch.Final, Text: "fresh", Utterance: 2, Session: "a", Time: now}
	for _, r := range []dispatch.Result{old, fresh} {
		if err := s.Publish(ctx, r); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	if err := s.Prune(ctx); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	entries, err := s.List(ctx, "a", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "fresh" {
		t.Errorf("entries after Prune() = %+v", entries)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s, err := Open(ctx, Config{Path: path}, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Publish(ctx, dispatch.Result{Kind: dispatch.Final, Text: "kept", Utterance: 1, Session: "a"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	s.Close()

	s, err = Open(ctx, Config{Path: path}, logger)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	entries, err := s.List(ctx, "a", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "kept" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), Config{}, nil); err == nil {
		t.Error("Open() with empty path succeeded")
	}
}
