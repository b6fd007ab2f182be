package match

import "time"

// MarksToWin is the mark tally that ends a match.
const MarksToWin = 4

// Mark thresholds, named after the Bisca achievement tiers.
const (
	bandeiraPoints = 120 // all 120 points: 4 marks
	capotePoints   = 91  // 91-119: 2 marks
	riscaPoints    = 61  // 61-90: 1 mark
)

// MarksFor returns the marks a game's point total earns.
func MarksFor(points int) int {
	switch {
	case points == bandeiraPoints:
		return 4
	case points >= capotePoints:
		return 2
	case points >= riscaPoints:
		return 1
	default:
		return 0
	}
}

// Player identifies one side of a match.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

// Match chains games between the same two players until one side reaches
// MarksToWin. A "single" format match is exactly one game.
type Match struct {
	ID            string `json:"id"`
	ExternalID    string `json:"externalId,omitempty"` // collaborator's db id
	Mode          string `json:"mode"`                 // "3" or "9"
	Format        string `json:"format"`               // "match" or "single"
	Player1       Player `json:"player1"`
	Player2       Player `json:"player2"`
	Player1Marks  int    `json:"player1Marks"`
	Player2Marks  int    `json:"player2Marks"`
	Stake         int    `json:"stake"`
	CurrentGameID string `json:"currentGameId,omitempty"`
	WinnerID      string `json:"winner,omitempty"`

	BeganAt time.Time `json:"beganAt"`
	EndedAt time.Time `json:"endedAt,omitempty"`
}

// New creates a match with a zero mark tally.
func New(id string, p1, p2 Player, mode, format string, stake int) *Match {
	return &Match{
		ID:      id,
		Mode:    mode,
		Format:  format,
		Player1: p1,
		Player2: p2,
		Stake:   stake,
		BeganAt: time.Now(),
	}
}

// ApplyResult awards marks for a finished game's point totals. Only the
// strictly higher-scoring side gains; a tie awards nothing. Tallies cap at
// MarksToWin.
func (m *Match) ApplyResult(p1Points, p2Points int) {
	switch {
	case p1Points > p2Points:
		m.Player1Marks = capMarks(m.Player1Marks + MarksFor(p1Points))
	case p2Points > p1Points:
		m.Player2Marks = capMarks(m.Player2Marks + MarksFor(p2Points))
	}
}

// AwardWin sets a side's marks straight to the win threshold. Used when the
// opponent forfeits or disconnects mid-match.
func (m *Match) AwardWin(winnerID string) {
	switch winnerID {
	case m.Player1.ID:
		m.Player1Marks = MarksToWin
	case m.Player2.ID:
		m.Player2Marks = MarksToWin
	}
}

// Over reports whether the match has reached a terminal mark count.
func (m *Match) Over() bool {
	return m.Player1Marks >= MarksToWin || m.Player2Marks >= MarksToWin
}

// Leader returns the id of the side with more marks, or empty on a tie.
func (m *Match) Leader() string {
	switch {
	case m.Player1Marks > m.Player2Marks:
		return m.Player1.ID
	case m.Player2Marks > m.Player1Marks:
		return m.Player2.ID
	default:
		return ""
	}
}

// Marks returns the tally keyed by player id, in snapshot form.
func (m *Match) Marks() map[string]int {
	return map[string]int{
		m.Player1.ID: m.Player1Marks,
		m.Player2.ID: m.Player2Marks,
	}
}

// Names returns the display-name map keyed by player id.
func (m *Match) Names() map[string]string {
	return map[string]string{
		m.Player1.ID: m.Player1.Name,
		m.Player2.ID: m.Player2.Name,
	}
}

// Photos returns the avatar map keyed by player id.
func (m *Match) Photos() map[string]string {
	return map[string]string{
		m.Player1.ID: m.Player1.Photo,
		m.Player2.ID: m.Player2.Photo,
	}
}

// Opponent returns the other side's player.
func (m *Match) Opponent(playerID string) Player {
	if playerID == m.Player1.ID {
		return m.Player2
	}
	return m.Player1
}

func capMarks(n int) int {
	if n > MarksToWin {
		return MarksToWin
	}
	return n
}
