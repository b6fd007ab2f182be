// Package room runs one logical game-room per match: a lock-guarded actor
// owning the game state machine, the turn timer and the deferred settle and
// next-game tasks. Cross-room state lives in the hub, the queue and the
// session registry, each behind its own lock; a room lock is never nested
// inside any of those.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bisca/internal/match"
	"bisca/internal/persist"
	"bisca/internal/session"
	"bisca/internal/storage"
)

// Config carries the room timing parameters.
type Config struct {
	TurnTimeout   time.Duration
	SettleDelay   time.Duration
	NextGameDelay time.Duration
	DefaultStake  int
}

// Hub owns all live rooms. Lifecycle is tied to the server process: rooms are
// created on pairing and retired when their match reaches a terminal state.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room // match id -> room

	cfg   Config
	store *storage.Store
	api   *persist.Client
	log   *zap.Logger
}

// NewHub creates an empty hub. store and api may be nil/disabled; archiving
// and collaborator calls are then skipped.
func NewHub(cfg Config, store *storage.Store, api *persist.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		store: store,
		api:   api,
		log:   logger,
	}
}

// Create allocates a room for a fresh pairing. The room is registered but
// idle until Start deals the first game.
func (h *Hub) Create(p1, p2 match.Player, mode, format string, c1, c2 *session.Conn) *Room {
	m := match.New(uuid.NewString(), p1, p2, mode, format, h.cfg.DefaultStake)
	r := &Room{
		hub:   h,
		id:    m.ID,
		match: m,
		conns: map[string]*session.Conn{p1.ID: c1, p2.ID: c2},
	}

	h.mu.Lock()
	h.rooms[m.ID] = r
	h.mu.Unlock()

	h.log.Info("room created",
		zap.String("match_id", m.ID),
		zap.String("mode", mode),
		zap.String("format", format),
		zap.String("player1", p1.ID),
		zap.String("player2", p2.ID))
	return r
}

// Get returns a room by id.
func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[id]
	return r, ok
}

// List returns a debug snapshot of every live room.
func (h *Hub) List() []Info {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	return infos
}

// retire forgets a closed room.
func (h *Hub) retire(id string) {
	h.mu.Lock()
	delete(h.rooms, id)
	h.mu.Unlock()
}

// Shutdown closes every room, cancelling outstanding timers. Used on process
// stop.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for _, r := range rooms {
		r.close()
	}
}

// finalizeMatch archives and persists a finished match. Runs outside any
// room lock; every failure is logged and dropped so gameplay (and shutdown)
// never block on the collaborator.
func (h *Hub) finalizeMatch(m match.Match, results []persist.GameResult) {
	if h.store != nil {
		if err := h.store.SaveMatch(&m); err != nil {
			h.log.Warn("archive match", zap.String("match_id", m.ID), zap.Error(err))
		}
	}
	if !h.api.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	externalID := m.ExternalID
	if externalID == "" {
		id, err := h.api.CreateMatch(ctx, persist.CreateMatchRequest{
			Type:       m.Mode,
			Stake:      m.Stake,
			OpponentID: m.Player2.ID,
		})
		if err != nil {
			h.log.Warn("create match record", zap.String("match_id", m.ID), zap.Error(err))
			return
		}
		externalID = id
	}

	var p1Total, p2Total int
	for _, gr := range results {
		p1Total += gr.Player1Points
		p2Total += gr.Player2Points
	}
	changed, err := h.api.FinalizeMatch(ctx, externalID, persist.FinalizeMatchRequest{
		Player1Marks:       m.Player1Marks,
		Player2Marks:       m.Player2Marks,
		Player1PointsTotal: p1Total,
		Player2PointsTotal: p2Total,
		TotalTime:          m.EndedAt.Sub(m.BeganAt).Seconds(),
		Games:              results,
		Custom:             map[string]any{"format": m.Format},
	})
	if err != nil {
		h.log.Warn("finalize match record", zap.String("match_id", m.ID), zap.Error(err))
		return
	}
	if changed {
		if err := h.api.NotifyLeaderboard(ctx); err != nil {
			h.log.Warn("leaderboard notification", zap.String("match_id", m.ID), zap.Error(err))
		}
	}
}
