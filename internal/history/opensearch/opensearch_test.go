package opensearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/launchr/internal/history"
)

func TestSendPostsDocument(t *testing.T) {
	var got history.Event
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := New(srv.URL+"/", "launch-history")
	ev := history.Event{Type: history.EventExit, OccurredAt: time.Now().UTC(), Record: history.Record{Session: "x", Version: "1.20.4", ExitCode: 2}}
	if err := s.Send(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/launch-history/_doc" {
		t.Fatalf("unexpected path %q", path)
	}
	if got.Type != history.EventExit || got.Record.ExitCode != 2 || got.Record.Version != "1.20.4" {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestSendReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := New(srv.URL, "idx").Send(context.Background(), history.Event{Type: history.EventLaunch}); err == nil {
		t.Fatalf("expected error on 400 response")
	}
}
