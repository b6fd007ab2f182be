package deck

import "math/rand"

// Suit is one of the four card suits.
type Suit string

const (
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
	Spades   Suit = "S"
)

// Rank is a card rank. Bisca uses a 40-card deck with no 8, 9 or 10.
type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Queen Rank = "Q"
	Jack  Rank = "J"
	King  Rank = "K"
	Seven Rank = "7"
	Ace   Rank = "A"
)

// Suits and Ranks list every suit and rank in deck order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

var Ranks = []Rank{Two, Three, Four, Five, Six, Queen, Jack, King, Seven, Ace}

// TotalPoints is the sum of all card values in a full deck.
const TotalPoints = 120

var values = map[Rank]int{
	Two: 0, Three: 0, Four: 0, Five: 0, Six: 0,
	Queen: 2, Jack: 3, King: 4, Seven: 10, Ace: 11,
}

// power orders ranks within a suit for trick comparison:
// 2 < 3 < 4 < 5 < 6 < Q < J < K < 7 < A.
var power = map[Rank]int{
	Two: 0, Three: 1, Four: 2, Five: 3, Six: 4,
	Queen: 5, Jack: 6, King: 7, Seven: 8, Ace: 9,
}

// Card is an immutable (suit, rank) pair.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// Value returns the card's point value for scoring.
func (c Card) Value() int { return values[c.Rank] }

// Power returns the card's rank order within its suit.
func (c Card) Power() int { return power[c.Rank] }

func (c Card) String() string { return string(c.Rank) + string(c.Suit) }

// New builds the 40-card deck and applies an unbiased shuffle.
func New() []Card {
	cards := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			cards = append(cards, Card{Suit: s, Rank: r})
		}
	}
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}

// TrickWinner decides a two-card trick. Returns 0 if the leading card wins,
// 1 if the following card wins. Same suit: higher power wins. Off-suit
// follow: only a trump beats the lead. In every other case the lead wins,
// including a trump lead against a higher off-suit follow.
func TrickWinner(first, second Card, trump Suit) int {
	if first.Suit == second.Suit {
		if second.Power() > first.Power() {
			return 1
		}
		return 0
	}
	if second.Suit == trump {
		return 1
	}
	return 0
}

// SumValues returns the combined point value of a pile of cards.
func SumValues(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.Value()
	}
	return total
}
