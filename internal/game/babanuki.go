package game

import (
	"fmt"
	"math/rand"

	"github.com/tmhk-chat/game-server-go/internal/turn"
)

// babanuki is the pair-elimination variant: draw from another hand, discard
// pairs, last seat holding the unmatched joker loses.
type babanuki struct {
	seats    []Seat
	hands    map[string][]Card
	order    *turn.Order
	rng      *rand.Rand
	finished bool
	loser    string
}

func newBabanuki(seats []Seat, rng *rand.Rand) *babanuki {
	dealt := deal(rng, len(seats))
	hands := make(map[string][]Card, len(seats))

	active := make([]string, 0, len(seats))
	for i, s := range seats {
		hands[s.ID] = autoPair(dealt[i])
		if len(hands[s.ID]) > 0 {
			active = append(active, s.ID)
		}
	}

	g := &babanuki{
		seats: append([]Seat(nil), seats...),
		hands: hands,
		order: turn.New(active),
		rng:   rng,
	}
	if g.order.Len() <= 1 {
		// Degenerate deal: everyone but the joker holder paired out.
		g.finished = true
		g.loser = g.order.Current()
	}
	return g
}

// autoPair discards every rank held in two or more copies, keeping the
// remainder. The joker never pairs.
func autoPair(hand []Card) []Card {
	byRank := make(map[int]int)
	for _, c := range hand {
		if c.Suit != SuitJoker {
			byRank[c.Rank]++
		}
	}

	kept := make([]Card, 0, len(hand))
	seen := make(map[int]int)
	for _, c := range hand {
		if c.Suit == SuitJoker {
			kept = append(kept, c)
			continue
		}
		seen[c.Rank]++
		// Keep only the odd copy of each rank, if any.
		if byRank[c.Rank]%2 == 1 && seen[c.Rank] == byRank[c.Rank] {
			kept = append(kept, c)
		}
	}
	return kept
}

func (g *babanuki) Kind() Kind     { return KindBabanuki }
func (g *babanuki) Finished() bool { return g.finished }

// Snapshot is broadcast to every seat; card identities stay out of it.
func (g *babanuki) Snapshot() map[string]any {
	data := map[string]any{
		"hand_counts": handCounts(g.hands),
		"current":     g.order.Current(),
		"active":      g.order.IDs(),
	}
	if g.finished {
		data["finished"] = true
		data["loser"] = g.loser
	}
	return data
}

func (g *babanuki) Apply(actorID string, act Action) (*Delta, error) {
	if g.finished {
		return nil, ErrRoomFinished
	}

	switch a := act.(type) {
	case DrawCard:
		if actorID != g.order.Current() {
			return nil, ErrNotYourTurn
		}
		return g.draw(actorID, a.TargetID)
	case SkipTurn:
		current := g.order.Current()
		next := g.order.Advance()
		return &Delta{
			Event: "state_updated",
			Data: map[string]any{
				"actor":       current,
				"skipped":     true,
				"current":     next,
				"hand_counts": handCounts(g.hands),
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported babanuki action %T", ErrInvalidAction, act)
	}
}

func (g *babanuki) draw(actorID, targetID string) (*Delta, error) {
	if targetID == actorID {
		return nil, fmt.Errorf("%w: cannot draw from own hand", ErrInvalidAction)
	}
	target, ok := g.hands[targetID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown draw target %s", ErrInvalidAction, targetID)
	}
	if len(target) == 0 {
		return nil, fmt.Errorf("%w: target %s has no cards", ErrInvalidAction, targetID)
	}

	idx := g.rng.Intn(len(target))
	drawn := target[idx]
	g.hands[targetID] = append(target[:idx], target[idx+1:]...)

	paired := false
	if match, ok := removeRank(g.hands[actorID], drawn.Rank); ok && drawn.Suit != SuitJoker {
		g.hands[actorID] = match
		paired = true
	} else {
		g.hands[actorID] = append(g.hands[actorID], drawn)
	}

	outs := make([]string, 0, 2)
	actorOut := false
	if len(g.hands[targetID]) == 0 && g.order.Contains(targetID) {
		g.order.Remove(targetID)
		outs = append(outs, targetID)
	}
	if len(g.hands[actorID]) == 0 {
		g.order.Remove(actorID)
		outs = append(outs, actorID)
		actorOut = true
	}

	if g.order.Len() <= 1 {
		g.finished = true
		g.loser = g.order.Current()
		return &Delta{
			Event: "game_over",
			Data: map[string]any{
				"loser":       g.loser,
				"outs":        outs,
				"hand_counts": handCounts(g.hands),
			},
			Terminal: true,
			Results:  g.Results(),
		}, nil
	}

	if !actorOut {
		g.order.Advance()
	}
	return &Delta{
		Event: "state_updated",
		Data: map[string]any{
			"actor":       actorID,
			"target":      targetID,
			"paired":      paired,
			"outs":        outs,
			"current":     g.order.Current(),
			"hand_counts": handCounts(g.hands),
		},
	}, nil
}

// Hand returns the seat's private cards, delivered only to that seat.
func (g *babanuki) Hand(seatID string) []Card {
	return append([]Card(nil), g.hands[seatID]...)
}

// Results reports every seat except the loser as a winner.
func (g *babanuki) Results() []Result {
	results := make([]Result, 0, len(g.seats))
	for _, s := range g.seats {
		results = append(results, Result{
			ParticipantID: s.ID,
			Winner:        g.finished && s.ID != g.loser,
		})
	}
	return results
}

// removeRank deletes one non-joker card of the given rank, reporting success.
func removeRank(hand []Card, rank int) ([]Card, bool) {
	for i, v := range hand {
		if v.Rank == rank && v.Suit != SuitJoker {
			return append(hand[:i], hand[i+1:]...), true
		}
	}
	return hand, false
}
