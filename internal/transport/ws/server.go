package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"replenisher/internal/command"
	"replenisher/internal/protocol"
)

const (
	execTimeout   = 30 * time.Second
	rateWindow    = 10 * time.Second
	rateMax       = 10
	maxCommandLen = 256
)

// Executor runs operator commands; host.Host implements it.
type Executor interface {
	WorldID() string
	Exec(ctx context.Context, line string) (command.Reply, error)
}

type Server struct {
	host  Executor
	log   *log.Logger
	now   func() time.Time
	token string

	upgrader websocket.Upgrader
}

// NewServer returns a console server. A non-empty token must be echoed in
// HELLO.auth.token before any command is accepted.
func NewServer(h Executor, logger *log.Logger, token string) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		host:  h,
		log:   logger,
		now:   time.Now,
		token: strings.TrimSpace(token),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			// nil CheckOrigin rejects cross-origin browser upgrades.
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			s.log.Printf("console handshake rejected from %s", r.RemoteAddr)
			return
		}
		s.log.Printf("console %s connected from %s", sessionID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) bool {
			b, err := json.Marshal(v)
			if err != nil {
				return false
			}
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var window rateWindowState
		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			resp := s.handle(ctx, msg, &window)
			if !send(resp) {
				break
			}
		}
		s.log.Printf("console %s disconnected", sessionID)
	}
}

type rateWindowState struct {
	start time.Time
	count int
}

func (w *rateWindowState) allow(now time.Time) bool {
	if now.Sub(w.start) >= rateWindow {
		w.start = now
		w.count = 0
	}
	if w.count >= rateMax {
		return false
	}
	w.count++
	return true
}

// handle turns one client frame into a REPLY or ERROR message.
func (s *Server) handle(ctx context.Context, msg []byte, window *rateWindowState) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "invalid json")
	}
	if base.Type != protocol.TypeCommand {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "expected COMMAND, got "+base.Type)
	}
	var cmd protocol.CommandMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "invalid COMMAND")
	}
	if cmd.ProtocolVersion != protocol.Version {
		return protocol.NewError(cmd.ID, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" || len(text) > maxCommandLen {
		return protocol.NewError(cmd.ID, protocol.ErrBadRequest, "text must be 1..256 characters")
	}
	if !window.allow(s.now()) {
		return protocol.NewError(cmd.ID, protocol.ErrRateLimit, "too many commands")
	}

	ectx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	reply, err := s.host.Exec(ectx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return protocol.NewError(cmd.ID, protocol.ErrWorldBusy, "host did not answer in time")
		}
		return protocol.NewError(cmd.ID, protocol.ErrInternal, err.Error())
	}
	return toReplyMsg(cmd.ID, reply)
}

func toReplyMsg(id string, r command.Reply) protocol.ReplyMsg {
	lines := make([]protocol.ReplyLine, 0, len(r.Messages))
	for _, m := range r.Messages {
		lines = append(lines, protocol.ReplyLine{Level: string(m.Level), Text: m.Text})
	}
	return protocol.ReplyMsg{
		Type:            protocol.TypeReply,
		ProtocolVersion: protocol.Version,
		ID:              id,
		OK:              r.OK,
		Messages:        lines,
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if !s.authorized(hello.Auth) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	sessionID = uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         s.host.WorldID(),
		Commands:        []string{"/" + command.CmdReplen, "/" + command.CmdReload, "/" + command.CmdStatus},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	return sessionID, out
}

func (s *Server) authorized(auth *protocol.HelloAuth) bool {
	if s.token == "" {
		return true
	}
	if auth == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth.Token)), []byte(s.token)) == 1
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
