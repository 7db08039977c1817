package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/openvhal/vhal-go/pkg/log"
)

func TestRunFilterByClient(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ClientID: "client-1", Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityClient, NewState: "REGISTERED"}},
		{Timestamp: ts, ClientID: "client-2", Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityClient, NewState: "REGISTERED"}},
		{Timestamp: ts.Add(time.Second), ClientID: "client-1", Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityClient, OldState: "REGISTERED", NewState: "UNREGISTERED"}},
	}
	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.vlog")

	n, err := RunFilter(path, outPath, Selection{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 filtered events, got %d", n)
	}

	reader, err := log.NewReader(outPath)
	if err != nil {
		t.Fatalf("failed to open filtered log: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		if event.ClientID != "client-1" {
			t.Errorf("unexpected client %q in filtered log", event.ClientID)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 events in filtered log, got %d", count)
	}
}

func TestRunFilterInvalidCategory(t *testing.T) {
	path := createTestLogFile(t, nil)
	if _, err := RunFilter(path, filepath.Join(t.TempDir(), "out.vlog"), Selection{Category: "frames"}); err == nil {
		t.Fatal("expected error for invalid category")
	}
}
