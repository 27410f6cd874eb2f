package game

import (
	"fmt"
	"math/rand"
)

// Suit is a playing card suit. The joker carries its own suit.
type Suit string

const (
	SuitSpades   Suit = "spades"
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitJoker    Suit = "joker"
)

// Card is one of the 53 deck symbols. Rank is 1 (ace) through 13 (king) for
// suited cards and 0 for the joker.
type Card struct {
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
}

// Value returns the card's strength in daifugo order:
// 3 < 4 < ... < 10 < J < Q < K < A < 2 < joker.
func (c Card) Value() int {
	if c.Suit == SuitJoker {
		return 14
	}
	switch c.Rank {
	case 1:
		return 12
	case 2:
		return 13
	default:
		return c.Rank - 2
	}
}

func (c Card) String() string {
	if c.Suit == SuitJoker {
		return "joker"
	}
	return fmt.Sprintf("%s-%d", c.Suit, c.Rank)
}

// NewDeck returns the 53-card deck: 52 suited cards plus one joker.
func NewDeck() []Card {
	deck := make([]Card, 0, 53)
	for _, s := range []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs} {
		for r := 1; r <= 13; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return append(deck, Card{Suit: SuitJoker})
}

// deal shuffles the deck and distributes it round-robin across n hands.
func deal(rng *rand.Rand, n int) [][]Card {
	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	hands := make([][]Card, n)
	for i, c := range deck {
		hands[i%n] = append(hands[i%n], c)
	}
	return hands
}

// containsCard reports whether c occurs in hand.
func containsCard(hand []Card, c Card) bool {
	for _, v := range hand {
		if v == c {
			return true
		}
	}
	return false
}

// removeCard deletes the first occurrence of c from hand, reporting success.
func removeCard(hand []Card, c Card) ([]Card, bool) {
	for i, v := range hand {
		if v == c {
			return append(hand[:i], hand[i+1:]...), true
		}
	}
	return hand, false
}

// handCounts maps seat id to remaining hand size, for broadcast payloads.
func handCounts(hands map[string][]Card) map[string]int {
	counts := make(map[string]int, len(hands))
	for id, h := range hands {
		counts[id] = len(h)
	}
	return counts
}
