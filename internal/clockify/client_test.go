package clockify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"commitclock/internal/clockify"
)

func newServer(t *testing.T, mux *http.ServeMux) *clockify.Client {
	t.Helper()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id": "user-1", "name": "alice", "activeWorkspace": "ws-1",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return clockify.NewClient(srv.URL, "key-1", nil)
}

func TestCreateEntry(t *testing.T) {
	var gotBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "entry-1"})
	})
	c := newServer(t, mux)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	id, err := c.CreateEntry(context.Background(), start, start.Add(30*time.Minute), "api: 2 commits", "proj-1")
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if id != "entry-1" {
		t.Fatalf("id = %q, want entry-1", id)
	}
	if gotBody["start"] != "2026-03-02T09:00:00Z" || gotBody["end"] != "2026-03-02T09:30:00Z" {
		t.Fatalf("body times = %v / %v", gotBody["start"], gotBody["end"])
	}
	if gotBody["projectId"] != "proj-1" {
		t.Fatalf("projectId = %v", gotBody["projectId"])
	}
}

func TestCreateEntryOmitsEmptyProject(t *testing.T) {
	var gotBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "entry-1"})
	})
	c := newServer(t, mux)

	now := time.Now()
	if _, err := c.CreateEntry(context.Background(), now, now.Add(time.Hour), "d", ""); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if _, present := gotBody["projectId"]; present {
		t.Fatal("projectId should be omitted when empty")
	}
}

func TestUpdateEntry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/time-entries/entry-9", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "entry-9"})
	})
	c := newServer(t, mux)

	now := time.Now()
	id, err := c.UpdateEntry(context.Background(), "entry-9", now, now.Add(time.Hour), "d")
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if id != "entry-9" {
		t.Fatalf("id = %q, want entry-9", id)
	}
}

func TestTimeEntriesSkipsRunning(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/user/user-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":          "e-1",
				"description": "Fixed #1234",
				"timeInterval": map[string]string{
					"start": "2026-03-02T09:00:00Z",
					"end":   "2026-03-02T10:00:00Z",
				},
			},
			{
				"id":          "e-2",
				"description": "still running",
				"timeInterval": map[string]string{
					"start": "2026-03-02T11:00:00Z",
				},
			},
		})
	})
	c := newServer(t, mux)

	entries, err := c.TimeEntries(context.Background(),
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("TimeEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.ID != "e-1" || got.UserName != "alice" || got.Description != "Fixed #1234" {
		t.Fatalf("entry = %+v", got)
	}
	if got.End.Sub(got.Start) != time.Hour {
		t.Fatalf("duration = %v, want 1h", got.End.Sub(got.Start))
	}
}

func TestTimeEntriesWarnsOnMalformedTimestamps(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id": "user-1", "name": "alice", "activeWorkspace": "ws-1",
		})
	})
	mux.HandleFunc("/workspaces/ws-1/user/user-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":          "e-bad",
				"description": "garbled",
				"timeInterval": map[string]string{
					"start": "not-a-timestamp",
					"end":   "2026-03-02T10:00:00Z",
				},
			},
			{
				"id":          "e-ok",
				"description": "fine",
				"timeInterval": map[string]string{
					"start": "2026-03-02T09:00:00Z",
					"end":   "2026-03-02T10:00:00Z",
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.WarnLevel)
	c := clockify.NewClient(srv.URL, "key-1", zap.New(core))

	entries, err := c.TimeEntries(context.Background(),
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("TimeEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e-ok" {
		t.Fatalf("entries = %+v, want only e-ok", entries)
	}
	warned := logs.FilterMessage("skipping entry with malformed start time").All()
	if len(warned) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warned))
	}
	if got := warned[0].ContextMap()["entry_id"]; got != "e-bad" {
		t.Errorf("warned entry_id = %v, want e-bad", got)
	}
}

func TestBadAPIKey(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := clockify.NewClient(srv.URL, "wrong", nil)

	now := time.Now()
	if _, err := c.CreateEntry(context.Background(), now, now, "d", ""); err == nil {
		t.Fatal("expected error for rejected API key")
	}
}
