package daemon

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"beacon/internal/beaconerr"
	"beacon/internal/config"
	"beacon/internal/issuestore/fsstore"
	"beacon/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	projectDir := filepath.Join(root, "project")
	store := fsstore.New(filepath.Join(projectDir, "issues"))
	now := model.NewTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	issue := &model.Issue{Identifier: "proj-1", Title: "Seed issue", CreatedAt: now, UpdatedAt: now}
	if err := store.Write(issue); err != nil {
		t.Fatal(err)
	}
	return NewServer(root, config.Default(), projectDir, nil)
}

func TestHandleRequestPing(t *testing.T) {
	s := newTestServer(t)
	resp, shutdown := s.handleRequest(Request{ProtocolVersion: ProtocolVersion, RequestID: "r1", Action: "ping"})
	if shutdown {
		t.Error("ping must not trigger shutdown")
	}
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %+v", resp)
	}
}

func TestHandleRequestShutdown(t *testing.T) {
	s := newTestServer(t)
	resp, shutdown := s.handleRequest(Request{ProtocolVersion: ProtocolVersion, RequestID: "r2", Action: "shutdown"})
	if !shutdown {
		t.Error("expected shutdown to report true")
	}
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %+v", resp)
	}
}

func TestHandleRequestIndexList(t *testing.T) {
	s := newTestServer(t)
	resp, shutdown := s.handleRequest(Request{ProtocolVersion: ProtocolVersion, RequestID: "r3", Action: "index.list"})
	if shutdown {
		t.Error("index.list must not trigger shutdown")
	}
	issues, ok := resp.Result["issues"].([]*model.Issue)
	if !ok || len(issues) != 1 {
		t.Fatalf("expected one issue in the result, got %+v", resp.Result)
	}
}

func TestHandleRequestUnknownAction(t *testing.T) {
	s := newTestServer(t)
	resp, shutdown := s.handleRequest(Request{ProtocolVersion: ProtocolVersion, RequestID: "r4", Action: "bogus"})
	if shutdown {
		t.Error("an unknown action must not trigger shutdown")
	}
	if resp.Error == nil || resp.Error.Code != string(beaconerr.UnknownAction) {
		t.Fatalf("expected unknown_action, got %+v", resp.Error)
	}
}

func TestHandleRequestRejectsIncompatibleProtocol(t *testing.T) {
	s := newTestServer(t)
	resp, shutdown := s.handleRequest(Request{ProtocolVersion: "2.0", RequestID: "r5", Action: "ping"})
	if shutdown {
		t.Error("a version mismatch must not trigger shutdown")
	}
	if resp.Error == nil || resp.Error.Code != string(beaconerr.ProtocolVersionMismatch) {
		t.Fatalf("expected protocol_version_mismatch, got %+v", resp.Error)
	}
}

func TestHandleLineMalformedJSONYieldsInvalidRequestAndServerContinues(t *testing.T) {
	s := newTestServer(t)

	resp, shutdown := s.handleLine("{not json\n")
	if shutdown {
		t.Error("malformed input must not trigger shutdown")
	}
	if resp.Error == nil || resp.Error.Code != string(beaconerr.InvalidRequest) {
		t.Fatalf("expected invalid_request, got %+v", resp.Error)
	}

	// The server must still serve a well-formed request afterward.
	ok, shutdown := s.handleLine(`{"protocol_version":"1.0","request_id":"r6","action":"ping"}` + "\n")
	if shutdown {
		t.Error("ping must not trigger shutdown")
	}
	if ok.Status != "ok" {
		t.Fatalf("expected the server to keep serving after malformed input, got %+v", ok)
	}
}

func TestHandleConnEmptyConnectionCausesNoStateChange(t *testing.T) {
	s := newTestServer(t)
	before := s.cache

	client, server := net.Pipe()
	go client.Close()

	shutdown := s.handleConn(server)
	if shutdown {
		t.Error("an empty connection must not trigger shutdown")
	}
	if s.cache != before {
		t.Error("an empty connection must not change server state")
	}
}
