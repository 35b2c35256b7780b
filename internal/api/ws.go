package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/observe"
	"github.com/cadenza-fm/cadenza/internal/push"
	"github.com/cadenza-fm/cadenza/internal/recerr"
)

// wsEnvelope is the frame format in both directions: a named event with an
// optional payload.
type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsOutbound mirrors wsEnvelope for writing, with an arbitrary payload.
type wsOutbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// wsSession adapts one WebSocket connection to [push.Session].
type wsSession struct {
	id   string
	conn *websocket.Conn
}

func (s *wsSession) ID() string { return s.id }

// Emit writes one event frame. The connection serializes concurrent writes
// internally.
func (s *wsSession) Emit(ctx context.Context, event string, payload any) error {
	return wsjson.Write(ctx, s.conn, wsOutbound{Event: event, Data: payload})
}

// handleWS upgrades the connection, registers the session, and serves client
// events until disconnect. The user ID arrives in the query string because
// browsers cannot set headers on WebSocket handshakes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, r, recerr.New(recerr.KindUnauthorized, "missing userId query parameter"))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.corsOrigins,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}

	sess := &wsSession{id: uuid.NewString(), conn: conn}
	if err := s.registry.Register(userID, sess); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "unregisterable session")
		return
	}
	defer s.registry.Unregister(userID, sess.id)
	defer conn.CloseNow()

	log := observe.Logger(r.Context()).With("user", userID, "session", sess.id)
	log.Info("push session connected")

	ctx := r.Context()
	for {
		var env wsEnvelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				log.Info("push session disconnected")
			} else {
				log.Warn("push session read failed", "err", err)
			}
			return
		}

		switch env.Event {
		case "ping":
			if err := sess.Emit(ctx, push.EventPong, nil); err != nil {
				log.Warn("pong write failed", "err", err)
				return
			}
		case "request-refresh":
			// Detached: the read loop must stay responsive while the
			// pipeline regenerates.
			s.pushEngine.Notify(userID, music.ReasonManualRefresh)
		default:
			log.Debug("ignoring unknown client event", "event", env.Event)
		}
	}
}
