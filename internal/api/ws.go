package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BTreeMap/BodyControl/internal/scheduler"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsReadLimit  = 1 << 16
)

// Message types on /ws.
const (
	MsgState  = "state"
	MsgAction = "action"
	MsgKey    = "key"
	MsgKeyUp  = "keyup"
	MsgStart  = "start"
	MsgReset  = "reset"
	MsgResult = "result"
	MsgError  = "error"
)

// ClientMessage is sent by the browser.
type ClientMessage struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Key    string `json:"key,omitempty"`
}

// ServerMessage is pushed to the browser.
type ServerMessage struct {
	Type    string          `json:"type"`
	State   *scheduler.View `json:"state,omitempty"`
	Result  *ActionResult   `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// wsHandler streams state every streamInterval and applies inbound
// messages. gorilla connections allow one writer, so every outbound
// message goes through the send channel.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Server.wsHandler: upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	slog.Info("Server.wsHandler: client connected", "remote", r.RemoteAddr)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	send := make(chan ServerMessage, 16)

	go s.wsReadLoop(ctx, cancel, conn, send)
	s.wsWriteLoop(ctx, conn, send)
	slog.Info("Server.wsHandler: client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) wsWriteLoop(ctx context.Context, conn *websocket.Conn, send <-chan ServerMessage) {
	stream := time.NewTicker(s.streamInterval)
	defer stream.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(msg ServerMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Debug("Server.wsWriteLoop: write failed", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case msg := <-send:
			if !write(msg) {
				return
			}
		case <-stream.C:
			v, err := s.host.View(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Warn("Server.wsWriteLoop: view failed", "error", err)
				}
				return
			}
			if !write(ServerMessage{Type: MsgState, State: &v}) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) wsReadLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, send chan<- ServerMessage) {
	defer cancel()
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Server.wsReadLoop: read failed", "error", err)
			}
			return
		}
		reply := s.handleClientMessage(ctx, msg)
		if reply == nil {
			continue
		}
		select {
		case send <- *reply:
		case <-ctx.Done():
			return
		}
	}
}

// handleClientMessage applies one inbound message and returns the reply,
// if any.
func (s *Server) handleClientMessage(ctx context.Context, msg ClientMessage) *ServerMessage {
	switch msg.Type {
	case MsgAction, MsgKey:
		res, err := s.applyAction(ctx, ActionRequest{Action: msg.Action, Key: msg.Key})
		if err != nil {
			return &ServerMessage{Type: MsgError, Message: err.Error()}
		}
		if res == nil {
			return nil
		}
		return &ServerMessage{Type: MsgResult, Result: res}
	case MsgKeyUp:
		s.keys.KeyUp(msg.Key)
		return nil
	case MsgStart, MsgReset:
		var (
			v   scheduler.View
			err error
		)
		if msg.Type == MsgStart {
			v, err = s.host.Start(ctx)
		} else {
			v, err = s.host.Reset(ctx)
		}
		if err != nil {
			return &ServerMessage{Type: MsgError, Message: err.Error()}
		}
		return &ServerMessage{Type: MsgState, State: &v}
	default:
		slog.Warn("Server.handleClientMessage: unknown message type", "type", msg.Type)
		return &ServerMessage{Type: MsgError, Message: "unknown message type: " + msg.Type}
	}
}
