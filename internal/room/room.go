package room

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bisca/internal/deck"
	"bisca/internal/game"
	"bisca/internal/match"
	"bisca/internal/persist"
	"bisca/internal/session"
)

// Alert is the game-alert payload.
type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Info is the debug view of a room.
type Info struct {
	ID      string         `json:"id"`
	Mode    string         `json:"mode"`
	Format  string         `json:"format"`
	GameID  string         `json:"gameId,omitempty"`
	Status  game.Status    `json:"status,omitempty"`
	Players []string       `json:"players"`
	Marks   map[string]int `json:"marks"`
}

// Room serializes all access to one match and its active game. Deferred work
// (trick settlement, the turn timer, the next-game delay) is scheduled as
// AfterFunc tasks that carry only the game id and a sequence number; on fire
// they re-acquire the lock and validate both, so a task firing into dead or
// moved-on state is absorbed.
type Room struct {
	hub *Hub
	id  string

	mu    sync.Mutex
	match *match.Match
	game  *game.Game
	conns map[string]*session.Conn // player id -> connection
	seq   int                      // bumped on every accepted state transition
	over  bool

	turnTimer   *time.Timer
	settleTimer *time.Timer
	nextTimer   *time.Timer

	results []persist.GameResult // finished games, in order
}

// ID returns the room's (match's) id.
func (r *Room) ID() string { return r.id }

// Start deals the first game and begins play.
func (r *Room) Start() {
	r.mu.Lock()
	r.startGameLocked()
	r.mu.Unlock()
}

func (r *Room) startGameLocked() {
	m := r.match
	g := game.New(uuid.NewString(), m.Mode, m.Format, m.Player1.ID, deck.New())

	starter := m.Player1.ID
	if rand.Intn(2) == 1 {
		starter = m.Player2.ID
	}
	g.AttachSecondPlayer(m.Player2.ID, starter)

	r.game = g
	m.CurrentGameID = g.ID
	r.seq++

	r.hub.log.Info("game started",
		zap.String("match_id", m.ID),
		zap.String("game_id", g.ID),
		zap.String("starter", starter))

	r.broadcastSnapshotLocked("game-start")
	r.armTurnTimerLocked()
}

// PlayCard applies one play for the given game. A rejection is returned to
// the caller (the gateway reports it to the acting connection only); accepted
// plays reset the turn timer, are broadcast, and schedule settlement when
// they complete the trick.
func (r *Room) PlayCard(playerID, gameID string, card deck.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.over || r.game == nil || (gameID != "" && gameID != r.game.ID) {
		return game.ErrNotPlaying
	}
	if err := r.game.PlayCard(playerID, card); err != nil {
		return err
	}
	r.seq++

	r.armTurnTimerLocked()
	r.broadcastSnapshotLocked("game-change")

	if r.game.TrickComplete() {
		r.scheduleSettleLocked()
	}
	return nil
}

// SetExternalID records the collaborator's id for this match and relays it to
// both players.
func (r *Room) SetExternalID(externalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.over {
		return
	}
	r.match.ExternalID = externalID
	r.broadcastEventLocked("update-match-id", externalID)
}

// HandleLeave treats a departing player as forfeiting the active game with
// the given reason ("forfeit" for an explicit leave, "disconnect" for a
// dropped connection). The opponent wins the match outright. A leave on an
// already-terminal room is a no-op.
func (r *Room) HandleLeave(playerID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, playerID)

	if r.over {
		return
	}
	// Nobody left to play or notify: garbage-collect the room.
	if len(r.conns) == 0 {
		r.endMatchLocked()
		return
	}

	if r.game != nil && r.game.Status == game.StatusPlaying {
		r.game.Forfeit(playerID, reason)
		r.seq++
		r.recordFinishedGameLocked()
	}
	r.match.AwardWin(r.match.Opponent(playerID).ID)
	r.match.WinnerID = r.match.Opponent(playerID).ID
	r.broadcastSnapshotLocked("game-change")
	r.broadcastEventLocked("match-over", r.match)
	r.endMatchLocked()
}

// Info snapshots the room for the debug listing.
func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := Info{
		ID:      r.id,
		Mode:    r.match.Mode,
		Format:  r.match.Format,
		Players: []string{r.match.Player1.ID, r.match.Player2.ID},
		Marks:   r.match.Marks(),
	}
	if r.game != nil {
		info.GameID = r.game.ID
		info.Status = r.game.Status
	}
	return info
}

// --- deferred tasks -------------------------------------------------------

func (r *Room) armTurnTimerLocked() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	if r.over || r.game == nil || r.game.Status != game.StatusPlaying {
		return
	}
	gameID, seq := r.game.ID, r.seq
	r.turnTimer = time.AfterFunc(r.hub.cfg.TurnTimeout, func() {
		r.onTurnTimeout(gameID, seq)
	})
}

func (r *Room) onTurnTimeout(gameID string, seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.staleLocked(gameID, seq) || r.game.Status != game.StatusPlaying {
		return
	}
	loser := r.game.CurrentPlayer
	if loser == "" {
		// A completed trick is awaiting settlement; that task owns the next
		// transition.
		return
	}

	r.hub.log.Info("turn timeout",
		zap.String("match_id", r.id),
		zap.String("game_id", gameID),
		zap.String("user_id", loser))

	r.game.Forfeit(loser, game.ReasonTimeout)
	r.seq++
	r.broadcastEventLocked("game-alert", Alert{
		Type:    "error",
		Message: "Time is up! The win goes to your opponent.",
	})
	r.finishGameLocked()
}

func (r *Room) scheduleSettleLocked() {
	if r.settleTimer != nil {
		r.settleTimer.Stop()
	}
	gameID, seq := r.game.ID, r.seq
	r.settleTimer = time.AfterFunc(r.hub.cfg.SettleDelay, func() {
		r.onSettle(gameID, seq)
	})
}

func (r *Room) onSettle(gameID string, seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.staleLocked(gameID, seq) {
		return
	}
	r.game.ResolveTrick()
	r.seq++

	if r.game.Status == game.StatusFinished {
		r.finishGameLocked()
		return
	}
	r.broadcastSnapshotLocked("game-change")
	r.armTurnTimerLocked()
}

func (r *Room) scheduleNextGameLocked() {
	if r.nextTimer != nil {
		r.nextTimer.Stop()
	}
	seq := r.seq
	r.nextTimer = time.AfterFunc(r.hub.cfg.NextGameDelay, func() {
		r.onNextGame(seq)
	})
}

func (r *Room) onNextGame(seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.over || r.seq != seq {
		return
	}
	r.startGameLocked()
}

// staleLocked reports whether a deferred task no longer matches the room's
// current state.
func (r *Room) staleLocked(gameID string, seq int) bool {
	return r.over || r.game == nil || r.game.ID != gameID || r.seq != seq
}

// --- finalization ---------------------------------------------------------

// finishGameLocked runs the shared end-of-game path for natural finishes and
// timeouts: marks, archive, broadcast, then either the next game or match
// over.
func (r *Room) finishGameLocked() {
	m := r.match
	g := r.game

	r.stopGameTimersLocked()
	m.ApplyResult(g.Points[m.Player1.ID], g.Points[m.Player2.ID])
	r.recordFinishedGameLocked()

	r.hub.log.Info("game finished",
		zap.String("match_id", m.ID),
		zap.String("game_id", g.ID),
		zap.String("winner", g.Winner),
		zap.String("reason", g.WinnerReason),
		zap.Int("player1_marks", m.Player1Marks),
		zap.Int("player2_marks", m.Player2Marks))

	r.broadcastSnapshotLocked("game-change")

	if m.Format == "single" || m.Over() {
		if m.WinnerID == "" {
			if m.Format == "single" {
				m.WinnerID = g.Winner
			} else {
				m.WinnerID = m.Leader()
			}
		}
		r.broadcastEventLocked("match-over", m)
		r.endMatchLocked()
		return
	}
	r.scheduleNextGameLocked()
}

// recordFinishedGameLocked archives the finished game and keeps its result
// for the finalize payload.
func (r *Room) recordFinishedGameLocked() {
	m := r.match
	g := r.game
	r.results = append(r.results, persist.GameResult{
		Player1Points: g.Points[m.Player1.ID],
		Player2Points: g.Points[m.Player2.ID],
		WinnerID:      g.Winner,
		Reason:        g.WinnerReason,
		Tricks:        g.TricksHistory,
	})
	if r.hub.store != nil {
		archived := g
		go func() {
			if err := r.hub.store.SaveGame(m.ID, archived); err != nil {
				r.hub.log.Warn("archive game",
					zap.String("game_id", archived.ID), zap.Error(err))
			}
		}()
	}
}

// endMatchLocked marks the room terminal, cancels every outstanding task and
// hands persistence off the lock.
func (r *Room) endMatchLocked() {
	if r.over {
		return
	}
	r.over = true
	r.match.EndedAt = time.Now()
	if r.match.WinnerID == "" {
		r.match.WinnerID = r.match.Leader()
	}
	r.stopAllTimersLocked()

	m := *r.match
	results := r.results
	go func() {
		r.hub.finalizeMatch(m, results)
		r.hub.retire(m.ID)
	}()

	r.hub.log.Info("match over",
		zap.String("match_id", m.ID),
		zap.String("winner", m.WinnerID),
		zap.Int("player1_marks", m.Player1Marks),
		zap.Int("player2_marks", m.Player2Marks))
}

// close is the shutdown path: terminal, no broadcast, no persistence.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.over = true
	r.stopAllTimersLocked()
}

func (r *Room) stopGameTimersLocked() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	if r.settleTimer != nil {
		r.settleTimer.Stop()
		r.settleTimer = nil
	}
}

func (r *Room) stopAllTimersLocked() {
	r.stopGameTimersLocked()
	if r.nextTimer != nil {
		r.nextTimer.Stop()
		r.nextTimer = nil
	}
}

// --- broadcasting ---------------------------------------------------------

// broadcastSnapshotLocked sends each player their own view of the game.
func (r *Room) broadcastSnapshotLocked(event string) {
	if r.game == nil {
		return
	}
	for playerID, conn := range r.conns {
		snap := r.game.Snapshot(playerID)
		snap.Names = r.match.Names()
		snap.Photos = r.match.Photos()
		snap.Marks = r.match.Marks()
		conn.SendEvent(event, snap)
	}
}

func (r *Room) broadcastEventLocked(event string, payload any) {
	for _, conn := range r.conns {
		conn.SendEvent(event, payload)
	}
}
