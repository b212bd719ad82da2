package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"replenisher/internal/command"
	"replenisher/internal/protocol"
)

type stubExec struct {
	mu    sync.Mutex
	lines []string
}

func (s *stubExec) WorldID() string { return "world_t" }

func (s *stubExec) Exec(ctx context.Context, line string) (command.Reply, error) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
	return command.Reply{OK: true, Messages: []command.Message{{Level: command.LevelSuccess, Text: "done: " + line}}}, nil
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var w protocol.WelcomeMsg
	readJSON(t, conn, &w)
	return w
}

func TestServer_CommandReply(t *testing.T) {
	exec := &stubExec{}
	srv := httptest.NewServer(NewServer(exec, nil, "").Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	w := hello(t, conn)
	if w.Type != protocol.TypeWelcome || w.WorldID != "world_t" || w.SessionID == "" || len(w.Commands) != 3 {
		t.Fatalf("welcome=%+v", w)
	}

	if err := conn.WriteJSON(protocol.CommandMsg{Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, ID: "c1", Text: " /replen pots 3 "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply protocol.ReplyMsg
	readJSON(t, conn, &reply)
	if reply.Type != protocol.TypeReply || reply.ID != "c1" || !reply.OK || len(reply.Messages) != 1 || reply.Messages[0].Level != "success" {
		t.Fatalf("reply=%+v", reply)
	}
	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.lines) != 1 || exec.lines[0] != "/replen pots 3" {
		t.Fatalf("lines=%q", exec.lines)
	}
}

func TestServer_ProtocolErrors(t *testing.T) {
	srv := httptest.NewServer(NewServer(&stubExec{}, nil, "").Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	hello(t, conn)

	cases := []struct {
		frame string
		code  string
	}{
		{`not json`, protocol.ErrProtoBadRequest},
		{`{"type":"PING","protocol_version":"1.0"}`, protocol.ErrProtoBadRequest},
		{`{"type":"COMMAND","protocol_version":"0.1","id":"x","text":"/replenstatus"}`, protocol.ErrProtoBadRequest},
		{`{"type":"COMMAND","protocol_version":"1.0","id":"x","text":"   "}`, protocol.ErrBadRequest},
	}
	for _, c := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(c.frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var e protocol.ErrorMsg
		readJSON(t, conn, &e)
		if e.Type != protocol.TypeError || e.Code != c.code {
			t.Fatalf("frame %s: got %+v", c.frame, e)
		}
	}
}

func TestServer_RejectsMissingHello(t *testing.T) {
	srv := httptest.NewServer(NewServer(&stubExec{}, nil, "").Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	if err := conn.WriteJSON(protocol.CommandMsg{Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, ID: "c1", Text: "/replenstatus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestRateWindow(t *testing.T) {
	var w rateWindowState
	now := time.Unix(100, 0)
	for i := 0; i < rateMax; i++ {
		if !w.allow(now) {
			t.Fatalf("command %d rejected", i)
		}
	}
	if w.allow(now.Add(time.Second)) {
		t.Fatalf("command over the limit allowed")
	}
	if !w.allow(now.Add(rateWindow)) {
		t.Fatalf("new window should allow")
	}
}

func TestServer_RequiresToken(t *testing.T) {
	exec := &stubExec{}
	srv := httptest.NewServer(NewServer(exec, nil, "s3cret").Handler())
	defer srv.Close()

	for _, auth := range []*protocol.HelloAuth{nil, {Token: "wrong"}} {
		conn := dial(t, srv)
		if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test", Auth: auth}); err != nil {
			t.Fatalf("hello: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Fatalf("auth=%+v: expected policy violation close, got %v", auth, err)
		}
		conn.Close()
	}

	conn := dial(t, srv)
	defer conn.Close()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test", Auth: &protocol.HelloAuth{Token: "s3cret"}}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var w protocol.WelcomeMsg
	readJSON(t, conn, &w)
	if w.Type != protocol.TypeWelcome || w.SessionID == "" {
		t.Fatalf("welcome=%+v", w)
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.lines) != 0 {
		t.Fatalf("rejected sessions ran commands: %q", exec.lines)
	}
}

func TestServer_RejectsCrossOrigin(t *testing.T) {
	srv := httptest.NewServer(NewServer(&stubExec{}, nil, "").Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	hdr := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, hdr); err == nil {
		t.Fatalf("cross-origin upgrade accepted")
	}
}
