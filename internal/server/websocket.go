package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"bisca/internal/deck"
	"bisca/internal/game"
	"bisca/internal/match"
	"bisca/internal/queue"
	"bisca/internal/room"
	"bisca/internal/session"
)

type joinQueuePayload struct {
	Mode   string `json:"mode"`
	Format string `json:"format"`
}

type playCardPayload struct {
	GameID string    `json:"gameId"`
	Card   deck.Card `json:"card"`
}

type leaveGamePayload struct {
	GameID string `json:"gameId"`
}

type matchCreatedPayload struct {
	GameID    string      `json:"gameSocketId"`
	DBMatchID json.Number `json:"dbMatchId"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // the browser client runs on another origin
	})
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer wsConn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	conn := session.NewConn(uuid.NewString())
	s.registry.Add(conn)

	// Writer: drain the outbound channel until the connection dies. The
	// channel is never closed, so room broadcasts can always enqueue safely.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-conn.Send:
				if err := wsConn.Write(ctx, websocket.MessageText, msg); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := wsConn.Read(ctx)
		if err != nil {
			break
		}
		var msg session.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.SendEvent("game-error", "invalid message")
			continue
		}
		s.handleMessage(conn, msg)
	}

	s.handleDisconnect(conn)
}

func (s *Server) handleMessage(conn *session.Conn, msg session.Message) {
	switch msg.Type {
	case "join":
		var user session.Identity
		if err := json.Unmarshal(msg.Payload, &user); err != nil || user.ID == "" {
			conn.SendEvent("game-error", "invalid join payload")
			return
		}
		s.registry.Identify(conn.ID, user)
		s.log.Info("user joined",
			zap.String("conn_id", conn.ID),
			zap.String("user_id", user.ID),
			zap.String("name", user.Name))

	case "join-queue":
		s.handleJoinQueue(conn, msg.Payload)

	case "leave-queue":
		s.queue.Leave(conn.ID)

	case "play-card":
		var p playCardPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			conn.SendEvent("game-error", "invalid play payload")
			return
		}
		rm, ok := s.activeRoom(conn.ID)
		if !ok {
			conn.SendEvent("game-error", game.ErrNotPlaying.Error())
			return
		}
		if err := rm.PlayCard(conn.User.ID, p.GameID, p.Card); err != nil {
			conn.SendEvent("game-error", err.Error())
		}

	case "leave-game":
		var p leaveGamePayload
		json.Unmarshal(msg.Payload, &p)
		if rm, ok := s.activeRoom(conn.ID); ok {
			rm.HandleLeave(conn.User.ID, game.ReasonForfeit)
		}
		s.registry.UnbindRoom(conn.ID)

	case "match-created-db":
		var p matchCreatedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			conn.SendEvent("game-error", "invalid payload")
			return
		}
		if rm, ok := s.activeRoom(conn.ID); ok {
			rm.SetExternalID(p.DBMatchID.String())
		}

	default:
		conn.SendEvent("game-error", "unknown message type: "+msg.Type)
	}
}

// handleJoinQueue pairs the connection with a waiter for the same
// (mode, format) key, or leaves it queued. Pairing and dequeue are one atomic
// queue step; a waiter whose connection has since vanished falls back to
// queueing the caller.
func (s *Server) handleJoinQueue(conn *session.Conn, payload json.RawMessage) {
	if conn.User.ID == "" {
		conn.SendEvent("game-error", "join first")
		return
	}

	var p joinQueuePayload
	json.Unmarshal(payload, &p)
	if p.Mode == "" {
		p.Mode = "9"
	}
	if p.Format == "" {
		p.Format = "match"
	}
	key := queue.Key{Mode: p.Mode, Format: p.Format}

	for {
		peerConnID, paired := s.queue.Join(key, conn.ID)
		if !paired {
			conn.SendEvent("queue-joined", nil)
			return
		}
		peer, ok := s.registry.Get(peerConnID)
		if !ok || peer.User.ID == "" || peer.User.ID == conn.User.ID {
			// Stale waiter; try the slot again.
			continue
		}

		p1 := match.Player{ID: peer.User.ID, Name: peer.User.Name, Photo: peer.User.Photo}
		p2 := match.Player{ID: conn.User.ID, Name: conn.User.Name, Photo: conn.User.Photo}
		rm := s.hub.Create(p1, p2, p.Mode, p.Format, peer, conn)
		s.registry.BindRoom(peer.ID, rm.ID())
		s.registry.BindRoom(conn.ID, rm.ID())
		rm.Start()
		return
	}
}

// handleDisconnect runs idempotent cleanup for a dead connection: queue slot,
// registry entry and, if a match was active, a forfeit by the departing side.
func (s *Server) handleDisconnect(conn *session.Conn) {
	s.queue.Leave(conn.ID)
	removed, roomID, ok := s.registry.Remove(conn.ID)
	if !ok {
		return
	}
	if roomID != "" {
		if rm, found := s.hub.Get(roomID); found {
			rm.HandleLeave(removed.User.ID, game.ReasonDisconnect)
		}
	}
	s.log.Info("connection closed",
		zap.String("conn_id", conn.ID),
		zap.String("user_id", removed.User.ID))
}

func (s *Server) activeRoom(connID string) (*room.Room, bool) {
	roomID, ok := s.registry.LookupMatch(connID)
	if !ok {
		return nil, false
	}
	return s.hub.Get(roomID)
}
