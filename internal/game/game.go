package game

import (
	"errors"
	"time"

	"bisca/internal/deck"
)

// Status represents the game lifecycle.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// Winner reasons recorded when a game finishes.
const (
	ReasonPoints     = "points"
	ReasonForfeit    = "forfeit"
	ReasonTimeout    = "timeout"
	ReasonDisconnect = "disconnect"
)

// Rejection errors for PlayCard. Each is a recoverable, per-action rejection
// reported back to the acting connection only.
var (
	ErrNotPlaying     = errors.New("game is not in progress")
	ErrTrickFull      = errors.New("wait for the trick to resolve")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrCardNotHeld    = errors.New("you do not hold that card")
	ErrMustFollowSuit = errors.New("you must follow the leading suit")
	ErrHasSecond      = errors.New("game already has a second player")
)

// Play is one card placed on the table by one player.
type Play struct {
	Player string    `json:"player"`
	Card   deck.Card `json:"card"`
}

// TrickRecord is the immutable audit entry for one resolved trick.
type TrickRecord struct {
	TrickNumber int    `json:"trickNumber"`
	First       Play   `json:"first"`
	Second      Play   `json:"second"`
	Winner      string `json:"winner"`
	Points      int    `json:"points"`
}

// Game is the authoritative state of a single deal. It carries no locking of
// its own: the owning room serializes all access.
type Game struct {
	ID      string
	Type    string // "3" or "9", the initial hand size
	Format  string // "match" or "single"
	Player1 string
	Player2 string

	// Deck[0] is the trump card. It is displayed separately but stays in the
	// draw pile, so it is the very last card drawn.
	Deck      []deck.Card
	TrumpCard deck.Card
	TrumpSuit deck.Suit

	Hands     map[string][]deck.Card
	Collected map[string][]deck.Card
	Points    map[string]int

	CurrentTrick  []Play
	TricksHistory []TrickRecord

	// CurrentPlayer is empty while a completed trick awaits resolution; that
	// sub-state blocks a third card until ResolveTrick runs.
	CurrentPlayer string
	CurrentLeader string

	Status       Status
	Winner       string // empty until finished; empty with IsDraw on a tie
	WinnerReason string
	IsDraw       bool
	EndedAt      time.Time
}

// New creates a PENDING game from a pre-shuffled deck, draws the trump and
// deals player1's opening hand. The second player's hand is dealt when they
// attach.
func New(id, gameType, format, player1 string, cards []deck.Card) *Game {
	g := &Game{
		ID:            id,
		Type:          gameType,
		Format:        format,
		Player1:       player1,
		Deck:          cards,
		TrumpCard:     cards[0],
		TrumpSuit:     cards[0].Suit,
		Hands:         map[string][]deck.Card{player1: {}},
		Collected:     map[string][]deck.Card{player1: {}},
		Points:        map[string]int{player1: 0},
		CurrentTrick:  []Play{},
		TricksHistory: []TrickRecord{},
		CurrentPlayer: player1,
		CurrentLeader: player1,
		Status:        StatusPending,
	}
	g.deal(player1)
	return g
}

// HandSize returns the opening hand size for the game type.
func (g *Game) HandSize() int {
	if g.Type == "3" {
		return 3
	}
	return 9
}

func (g *Game) deal(playerID string) {
	size := g.HandSize()
	for len(g.Hands[playerID]) < size && len(g.Deck) > 0 {
		c, _ := g.drawCard()
		g.Hands[playerID] = append(g.Hands[playerID], c)
	}
}

// drawCard takes the top card off the draw pile.
func (g *Game) drawCard() (deck.Card, bool) {
	if len(g.Deck) == 0 {
		return deck.Card{}, false
	}
	c := g.Deck[len(g.Deck)-1]
	g.Deck = g.Deck[:len(g.Deck)-1]
	return c, true
}

// AttachSecondPlayer deals the second player's hand and starts play. The
// caller chooses who leads the first trick.
func (g *Game) AttachSecondPlayer(player2, startingPlayer string) error {
	if g.Status != StatusPending {
		return ErrNotPlaying
	}
	if g.Player2 != "" {
		return ErrHasSecond
	}
	g.Player2 = player2
	g.Hands[player2] = []deck.Card{}
	g.Collected[player2] = []deck.Card{}
	g.Points[player2] = 0
	g.deal(player2)
	g.CurrentPlayer = startingPlayer
	g.CurrentLeader = startingPlayer
	g.Status = StatusPlaying
	return nil
}

// Opponent returns the other player's id.
func (g *Game) Opponent(playerID string) string {
	if playerID == g.Player1 {
		return g.Player2
	}
	return g.Player1
}

// TrickComplete reports whether two cards are on the table awaiting
// resolution.
func (g *Game) TrickComplete() bool { return len(g.CurrentTrick) == 2 }

// PlayCard validates and applies one play. On the first play of a trick the
// turn passes to the opponent; on the second the turn is cleared until the
// trick is resolved. Every error is a rejection: state is untouched.
func (g *Game) PlayCard(playerID string, card deck.Card) error {
	if g.Status != StatusPlaying {
		return ErrNotPlaying
	}
	if len(g.CurrentTrick) >= 2 {
		return ErrTrickFull
	}
	if g.CurrentPlayer != playerID {
		return ErrNotYourTurn
	}

	hand := g.Hands[playerID]
	idx := -1
	for i, c := range hand {
		if c == card {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrCardNotHeld
	}

	// Once the draw pile (trump included) is exhausted, the second play must
	// follow the leading suit if the hand can.
	if len(g.Deck) == 0 && len(g.CurrentTrick) > 0 {
		lead := g.CurrentTrick[0].Card
		if card.Suit != lead.Suit {
			for _, c := range hand {
				if c.Suit == lead.Suit {
					return ErrMustFollowSuit
				}
			}
		}
	}

	g.Hands[playerID] = append(hand[:idx], hand[idx+1:]...)
	g.CurrentTrick = append(g.CurrentTrick, Play{Player: playerID, Card: card})

	if len(g.CurrentTrick) < 2 {
		g.CurrentPlayer = g.Opponent(playerID)
	} else {
		g.CurrentPlayer = ""
	}
	return nil
}

// ResolveTrick settles a completed trick: scores it, records it, hands the
// lead to the winner and runs the draw phase. A call without two cards on the
// table is a no-op, so overlapping resolution triggers are absorbed.
func (g *Game) ResolveTrick() {
	if len(g.CurrentTrick) != 2 {
		return
	}

	first, second := g.CurrentTrick[0], g.CurrentTrick[1]
	winner := first.Player
	if deck.TrickWinner(first.Card, second.Card, g.TrumpSuit) == 1 {
		winner = second.Player
	}

	points := first.Card.Value() + second.Card.Value()
	g.Points[winner] += points
	g.Collected[winner] = append(g.Collected[winner], first.Card, second.Card)
	g.TricksHistory = append(g.TricksHistory, TrickRecord{
		TrickNumber: len(g.TricksHistory) + 1,
		First:       first,
		Second:      second,
		Winner:      winner,
		Points:      points,
	})

	g.CurrentTrick = []Play{}
	g.CurrentPlayer = winner
	g.CurrentLeader = winner

	// Draw phase: winner first, then loser. The trump card is Deck[0], so it
	// is the final card to leave the pile.
	if len(g.Deck) > 0 {
		loser := g.Opponent(winner)
		if c, ok := g.drawCard(); ok {
			g.Hands[winner] = append(g.Hands[winner], c)
		}
		if c, ok := g.drawCard(); ok {
			g.Hands[loser] = append(g.Hands[loser], c)
		}
	}

	if len(g.Hands[g.Player1]) == 0 && len(g.Hands[g.Player2]) == 0 {
		g.finishByPoints()
	}
}

func (g *Game) finishByPoints() {
	g.Status = StatusFinished
	g.EndedAt = time.Now()
	g.WinnerReason = ReasonPoints
	switch {
	case g.Points[g.Player1] > g.Points[g.Player2]:
		g.Winner = g.Player1
	case g.Points[g.Player2] > g.Points[g.Player1]:
		g.Winner = g.Player2
	default:
		g.IsDraw = true
	}
}

// Forfeit ends the game against loserID, crediting every unclaimed card value
// to the opponent. Calling it on a game that is not PLAYING is a no-op, so
// duplicate triggers (timer racing a disconnect, a double leave) are absorbed.
func (g *Game) Forfeit(loserID, reason string) {
	if g.Status != StatusPlaying {
		return
	}

	winnerID := g.Opponent(loserID)
	remaining := make([]deck.Card, 0,
		len(g.Hands[g.Player1])+len(g.Hands[g.Player2])+len(g.Deck)+len(g.CurrentTrick))
	remaining = append(remaining, g.Hands[g.Player1]...)
	remaining = append(remaining, g.Hands[g.Player2]...)
	remaining = append(remaining, g.Deck...)
	for _, p := range g.CurrentTrick {
		remaining = append(remaining, p.Card)
	}

	g.Points[winnerID] += deck.SumValues(remaining)
	g.Collected[winnerID] = append(g.Collected[winnerID], remaining...)

	g.Hands[g.Player1] = nil
	g.Hands[g.Player2] = nil
	g.Deck = nil
	g.CurrentTrick = []Play{}

	g.Status = StatusFinished
	g.EndedAt = time.Now()
	g.Winner = winnerID
	g.WinnerReason = reason
}

// UnclaimedValue sums the point value of every card not yet scored: both
// hands, the draw pile and the table. With Points it always totals 120.
func (g *Game) UnclaimedValue() int {
	total := deck.SumValues(g.Hands[g.Player1]) +
		deck.SumValues(g.Hands[g.Player2]) +
		deck.SumValues(g.Deck)
	for _, p := range g.CurrentTrick {
		total += p.Card.Value()
	}
	return total
}
