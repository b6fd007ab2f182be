package game

import "bisca/internal/deck"

// Snapshot is the per-viewer wire view of a game. Only the viewer's own hand
// is included; the opponent's hand and the draw pile appear as counts.
type Snapshot struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Format        string            `json:"format"`
	Player1       string            `json:"player1"`
	Player2       string            `json:"player2"`
	Names         map[string]string `json:"names,omitempty"`
	Photos        map[string]string `json:"photos,omitempty"`
	Hand          []deck.Card       `json:"hand"`
	OpponentCards int               `json:"opponentCards"`
	DeckCount     int               `json:"deckCount"`
	TrumpCard     deck.Card         `json:"trumpCard"`
	TrumpSuit     deck.Suit         `json:"trumpSuit"`
	CurrentTrick  []Play            `json:"currentTrick"`
	CurrentPlayer string            `json:"currentPlayer"`
	CurrentLeader string            `json:"currentLeader"`
	Points        map[string]int    `json:"points"`
	Status        Status            `json:"status"`
	Winner        string            `json:"winner,omitempty"`
	WinnerReason  string            `json:"winnerReason,omitempty"`
	IsDraw        bool              `json:"isDraw,omitempty"`
	Marks         map[string]int    `json:"marks,omitempty"`
}

// Snapshot builds the view for one player. The room decorates it with names,
// photos and the match mark tally before sending.
func (g *Game) Snapshot(viewerID string) Snapshot {
	hand := make([]deck.Card, len(g.Hands[viewerID]))
	copy(hand, g.Hands[viewerID])

	trick := make([]Play, len(g.CurrentTrick))
	copy(trick, g.CurrentTrick)

	points := make(map[string]int, len(g.Points))
	for id, p := range g.Points {
		points[id] = p
	}

	return Snapshot{
		ID:            g.ID,
		Type:          g.Type,
		Format:        g.Format,
		Player1:       g.Player1,
		Player2:       g.Player2,
		Hand:          hand,
		OpponentCards: len(g.Hands[g.Opponent(viewerID)]),
		DeckCount:     len(g.Deck),
		TrumpCard:     g.TrumpCard,
		TrumpSuit:     g.TrumpSuit,
		CurrentTrick:  trick,
		CurrentPlayer: g.CurrentPlayer,
		CurrentLeader: g.CurrentLeader,
		Points:        points,
		Status:        g.Status,
		Winner:        g.Winner,
		WinnerReason:  g.WinnerReason,
		IsDraw:        g.IsDraw,
	}
}
