package room

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bisca/internal/deck"
	"bisca/internal/game"
	"bisca/internal/match"
	"bisca/internal/session"
)

func testConfig() Config {
	return Config{
		TurnTimeout:   200 * time.Millisecond,
		SettleDelay:   10 * time.Millisecond,
		NextGameDelay: 25 * time.Millisecond,
		DefaultStake:  2,
	}
}

func newTestRoom(t *testing.T, mode, format string, cfg Config) (*Hub, *Room, *session.Conn, *session.Conn) {
	t.Helper()
	hub := NewHub(cfg, nil, nil, zap.NewNop())

	c1 := session.NewConn("conn-a")
	c1.User = session.Identity{ID: "a", Name: "Alice"}
	c2 := session.NewConn("conn-b")
	c2.User = session.Identity{ID: "b", Name: "Bruno"}

	r := hub.Create(
		match.Player{ID: "a", Name: "Alice"},
		match.Player{ID: "b", Name: "Bruno"},
		mode, format, c1, c2)
	return hub, r, c1, c2
}

// withRoom runs f under the room lock.
func withRoom(r *Room, f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f()
}

func drainTypes(c *session.Conn) []string {
	var types []string
	for {
		select {
		case raw := <-c.Send:
			var m session.Message
			json.Unmarshal(raw, &m)
			types = append(types, m.Type)
		default:
			return types
		}
	}
}

func contains(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestStartDealsAndBroadcasts(t *testing.T) {
	_, r, c1, c2 := newTestRoom(t, "3", "match", testConfig())
	r.Start()

	withRoom(r, func() {
		require.NotNil(t, r.game)
		assert.Equal(t, game.StatusPlaying, r.game.Status)
		assert.Len(t, r.game.Hands["a"], 3)
		assert.Len(t, r.game.Hands["b"], 3)
		assert.NotNil(t, r.turnTimer)
	})

	assert.True(t, contains(drainTypes(c1), "game-start"))
	assert.True(t, contains(drainTypes(c2), "game-start"))
}

func TestPlayAndSettleTrick(t *testing.T) {
	_, r, c1, _ := newTestRoom(t, "3", "match", testConfig())
	r.Start()

	var leader, follower string
	var lead, follow deck.Card
	withRoom(r, func() {
		leader = r.game.CurrentPlayer
		follower = r.game.Opponent(leader)
		lead = r.game.Hands[leader][0]
		follow = r.game.Hands[follower][0]
	})

	require.NoError(t, r.PlayCard(leader, "", lead))
	require.NoError(t, r.PlayCard(follower, "", follow))

	// A third card is blocked while settlement is pending.
	var extra deck.Card
	withRoom(r, func() { extra = r.game.Hands[leader][0] })
	assert.ErrorIs(t, r.PlayCard(leader, "", extra), game.ErrTrickFull)

	require.Eventually(t, func() bool {
		done := false
		withRoom(r, func() { done = len(r.game.TricksHistory) == 1 })
		return done
	}, time.Second, 5*time.Millisecond, "trick should settle after the delay")

	withRoom(r, func() {
		assert.Empty(t, r.game.CurrentTrick)
		assert.Equal(t, game.StatusPlaying, r.game.Status)
		rec := r.game.TricksHistory[0]
		assert.Equal(t, rec.Points, r.game.Points[rec.Winner])
		// Both players drew back to a full hand.
		assert.Len(t, r.game.Hands["a"], 3)
		assert.Len(t, r.game.Hands["b"], 3)
	})

	assert.True(t, contains(drainTypes(c1), "game-change"))
}

func TestWrongGameIDRejected(t *testing.T) {
	_, r, _, _ := newTestRoom(t, "3", "match", testConfig())
	r.Start()

	var leader string
	var c deck.Card
	withRoom(r, func() {
		leader = r.game.CurrentPlayer
		c = r.game.Hands[leader][0]
	})
	assert.ErrorIs(t, r.PlayCard(leader, "stale-game-id", c), game.ErrNotPlaying)
}

func TestTurnTimeoutForfeits(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimeout = 40 * time.Millisecond
	hub, r, c1, _ := newTestRoom(t, "3", "match", cfg)
	r.Start()

	var slow string
	withRoom(r, func() { slow = r.game.CurrentPlayer })

	require.Eventually(t, func() bool {
		finished := false
		withRoom(r, func() { finished = r.game.Status == game.StatusFinished })
		return finished
	}, time.Second, 5*time.Millisecond, "timer should forfeit the idle player")

	withRoom(r, func() {
		assert.Equal(t, game.ReasonTimeout, r.game.WinnerReason)
		assert.Equal(t, r.game.Opponent(slow), r.game.Winner)
		// All 120 points went to the winner: Bandeira, match over.
		assert.Equal(t, deck.TotalPoints, r.game.Points[r.game.Winner])
		assert.True(t, r.over)
		assert.Equal(t, match.MarksToWin, r.match.Marks()[r.game.Winner])
	})

	types := drainTypes(c1)
	assert.True(t, contains(types, "game-alert"))
	assert.True(t, contains(types, "match-over"))

	// The room retires itself once finalization finishes.
	require.Eventually(t, func() bool {
		_, ok := hub.Get(r.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestLatePlayAfterTimeoutRejected(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimeout = 30 * time.Millisecond
	_, r, _, _ := newTestRoom(t, "3", "match", cfg)
	r.Start()

	var slow string
	var c deck.Card
	withRoom(r, func() {
		slow = r.game.CurrentPlayer
		c = r.game.Hands[slow][0]
	})

	require.Eventually(t, func() bool {
		over := false
		withRoom(r, func() { over = r.over })
		return over
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, r.PlayCard(slow, "", c), game.ErrNotPlaying)
}

func TestPlayBeforeExpiryResetsTimer(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimeout = 150 * time.Millisecond
	_, r, _, _ := newTestRoom(t, "3", "match", cfg)
	r.Start()

	time.Sleep(100 * time.Millisecond)

	var cur string
	var c deck.Card
	withRoom(r, func() {
		cur = r.game.CurrentPlayer
		c = r.game.Hands[cur][0]
	})
	require.NoError(t, r.PlayCard(cur, "", c))

	// 100ms later the original deadline has long passed, but the reset
	// keeps the game alive.
	time.Sleep(100 * time.Millisecond)
	withRoom(r, func() {
		assert.Equal(t, game.StatusPlaying, r.game.Status)
	})
}

func TestLeaveForfeitsMatch(t *testing.T) {
	_, r, _, c2 := newTestRoom(t, "3", "match", testConfig())
	r.Start()

	r.HandleLeave("a", game.ReasonForfeit)

	withRoom(r, func() {
		assert.True(t, r.over)
		assert.Equal(t, game.StatusFinished, r.game.Status)
		assert.Equal(t, "b", r.game.Winner)
		assert.Equal(t, game.ReasonForfeit, r.game.WinnerReason)
		assert.Equal(t, match.MarksToWin, r.match.Player2Marks)
		assert.Equal(t, "b", r.match.WinnerID)
	})
	assert.True(t, contains(drainTypes(c2), "match-over"))

	// A duplicate leave (double disconnect) is absorbed.
	r.HandleLeave("a", game.ReasonDisconnect)
	withRoom(r, func() {
		assert.Equal(t, "b", r.game.Winner)
		assert.Equal(t, game.ReasonForfeit, r.game.WinnerReason)
	})
}

// finishCurrentGame doctors the active game so its next resolution ends it
// with the given point totals, then triggers settlement synchronously.
func finishCurrentGame(t *testing.T, r *Room, p1Points, p2Points int) {
	t.Helper()
	var gameID string
	var seq int
	withRoom(r, func() {
		g := r.game
		p1, p2 := r.match.Player1.ID, r.match.Player2.ID
		g.Points[p1] = p1Points - 2 // the final trick is worth Q+2 = 2
		g.Points[p2] = p2Points
		g.Hands[p1] = nil
		g.Hands[p2] = nil
		g.Deck = nil
		g.CurrentTrick = []game.Play{
			{Player: p1, Card: deck.Card{Suit: deck.Hearts, Rank: deck.Queen}},
			{Player: p2, Card: deck.Card{Suit: deck.Hearts, Rank: deck.Two}},
		}
		g.CurrentPlayer = ""
		r.seq++
		gameID, seq = g.ID, r.seq
	})
	r.onSettle(gameID, seq)
}

func TestNextGameScheduledAndMarksCarryOver(t *testing.T) {
	_, r, _, _ := newTestRoom(t, "3", "match", testConfig())
	r.Start()

	var firstGameID string
	withRoom(r, func() { firstGameID = r.game.ID })

	finishCurrentGame(t, r, 70, 50) // Risca: 1 mark for player1

	withRoom(r, func() {
		assert.Equal(t, 1, r.match.Player1Marks)
		assert.False(t, r.over)
	})

	require.Eventually(t, func() bool {
		next := false
		withRoom(r, func() {
			next = r.game.ID != firstGameID && r.game.Status == game.StatusPlaying
		})
		return next
	}, time.Second, 5*time.Millisecond, "next game should start after the delay")

	withRoom(r, func() {
		assert.Equal(t, 1, r.match.Player1Marks, "marks carry into the next game")
		assert.Zero(t, r.game.Points["a"])
	})
}

func TestSingleFormatEndsAfterOneGame(t *testing.T) {
	_, r, c1, _ := newTestRoom(t, "3", "single", testConfig())
	r.Start()

	finishCurrentGame(t, r, 70, 50)

	withRoom(r, func() {
		assert.True(t, r.over, "a single-format match ends with its only game")
		assert.Equal(t, "a", r.match.WinnerID)
	})
	assert.True(t, contains(drainTypes(c1), "match-over"))
}

func TestMatchOverAtFourMarks(t *testing.T) {
	_, r, c1, _ := newTestRoom(t, "3", "match", testConfig())
	r.Start()

	finishCurrentGame(t, r, 120, 0) // Bandeira: straight to 4 marks

	withRoom(r, func() {
		assert.Equal(t, match.MarksToWin, r.match.Player1Marks)
		assert.True(t, r.over)
		assert.Equal(t, "a", r.match.WinnerID)
	})
	assert.True(t, contains(drainTypes(c1), "match-over"))
}

func TestStaleDeferredTasksAbsorbed(t *testing.T) {
	_, r, _, _ := newTestRoom(t, "3", "match", testConfig())
	r.Start()

	var gameID string
	var staleSeq int
	withRoom(r, func() {
		gameID = r.game.ID
		staleSeq = r.seq - 1
	})

	r.onSettle(gameID, staleSeq)
	r.onTurnTimeout(gameID, staleSeq)
	r.onNextGame(staleSeq)

	withRoom(r, func() {
		assert.Equal(t, gameID, r.game.ID)
		assert.Equal(t, game.StatusPlaying, r.game.Status)
		assert.Empty(t, r.game.TricksHistory)
	})
}

func TestSetExternalIDRelaysToPeers(t *testing.T) {
	_, r, c1, c2 := newTestRoom(t, "3", "match", testConfig())
	r.Start()
	drainTypes(c1)
	drainTypes(c2)

	r.SetExternalID("57")

	withRoom(r, func() { assert.Equal(t, "57", r.match.ExternalID) })
	assert.True(t, contains(drainTypes(c1), "update-match-id"))
	assert.True(t, contains(drainTypes(c2), "update-match-id"))
}

// TestFullMatchGame drives a complete game through the public surface only:
// both players keep playing their first legal card until the deal ends.
func TestFullMatchGame(t *testing.T) {
	cfg := testConfig()
	cfg.SettleDelay = time.Millisecond
	cfg.TurnTimeout = 5 * time.Second
	_, r, c1, c2 := newTestRoom(t, "9", "match", cfg)
	r.Start()

	// Keep the outbound buffers drained.
	stop := make(chan struct{})
	defer close(stop)
	for _, c := range []*session.Conn{c1, c2} {
		go func(c *session.Conn) {
			for {
				select {
				case <-stop:
					return
				case <-c.Send:
				}
			}
		}(c)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("game did not finish")
		default:
		}

		var done bool
		var cur string
		var hand []deck.Card
		withRoom(r, func() {
			done = len(r.results) > 0
			if r.game != nil {
				cur = r.game.CurrentPlayer
				hand = append([]deck.Card(nil), r.game.Hands[cur]...)
			}
		})
		if done {
			break
		}
		if cur == "" {
			time.Sleep(2 * time.Millisecond) // settlement pending
			continue
		}

		played := false
		for _, c := range hand {
			if err := r.PlayCard(cur, "", c); err == nil {
				played = true
				break
			} else if err != game.ErrMustFollowSuit {
				// Settlement may have flipped the turn under us; retry.
				break
			}
		}
		if !played {
			time.Sleep(2 * time.Millisecond)
		}
	}

	withRoom(r, func() {
		require.Len(t, r.results, 1)
		res := r.results[0]
		assert.Equal(t, deck.TotalPoints, res.Player1Points+res.Player2Points)
		assert.Len(t, res.Tricks, 20)

		marks := r.match.Player1Marks + r.match.Player2Marks
		switch {
		case res.Player1Points > res.Player2Points:
			assert.Equal(t, match.MarksFor(res.Player1Points), marks)
		case res.Player2Points > res.Player1Points:
			assert.Equal(t, match.MarksFor(res.Player2Points), marks)
		default:
			assert.Zero(t, marks)
		}
	})
}
