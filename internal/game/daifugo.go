package game

import (
	"fmt"
	"math/rand"

	"github.com/tmhk-chat/game-server-go/internal/turn"
)

// daifugo is the trick-card variant: beat the field card or pass, first empty
// hand wins.
type daifugo struct {
	seats    []Seat
	hands    map[string][]Card
	field    *Card
	order    *turn.Order
	passes   int
	finished bool
	winner   string
}

func newDaifugo(seats []Seat, rng *rand.Rand) *daifugo {
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}

	dealt := deal(rng, len(seats))
	hands := make(map[string][]Card, len(seats))
	for i, id := range ids {
		hands[id] = dealt[i]
	}

	return &daifugo{
		seats: append([]Seat(nil), seats...),
		hands: hands,
		order: turn.New(ids),
	}
}

func (g *daifugo) Kind() Kind     { return KindDaifugo }
func (g *daifugo) Finished() bool { return g.finished }

// Snapshot is broadcast to every seat; card identities stay out of it.
func (g *daifugo) Snapshot() map[string]any {
	data := map[string]any{
		"hand_counts": handCounts(g.hands),
		"current":     g.order.Current(),
		"passes":      g.passes,
	}
	if g.field != nil {
		data["field"] = *g.field
	}
	return data
}

// Hand returns the seat's private cards, delivered only to that seat.
func (g *daifugo) Hand(seatID string) []Card {
	return append([]Card(nil), g.hands[seatID]...)
}

func (g *daifugo) Apply(actorID string, act Action) (*Delta, error) {
	if g.finished {
		return nil, ErrRoomFinished
	}

	switch a := act.(type) {
	case PlayCard:
		if actorID != g.order.Current() {
			return nil, ErrNotYourTurn
		}
		return g.play(actorID, a.Card)
	case PassTurn:
		if actorID != g.order.Current() {
			return nil, ErrNotYourTurn
		}
		return g.pass(g.order.Current()), nil
	case SkipTurn:
		// Host-forced pass of whichever seat is stalling.
		return g.pass(g.order.Current()), nil
	default:
		return nil, fmt.Errorf("%w: unsupported daifugo action %T", ErrInvalidAction, act)
	}
}

func (g *daifugo) play(actorID string, c Card) (*Delta, error) {
	if !containsCard(g.hands[actorID], c) {
		return nil, fmt.Errorf("%w: card %s not in hand", ErrInvalidAction, c)
	}
	if g.field != nil && c.Value() <= g.field.Value() {
		return nil, fmt.Errorf("%w: card %s does not beat field %s", ErrInvalidAction, c, *g.field)
	}

	hand, _ := removeCard(g.hands[actorID], c)
	g.hands[actorID] = hand
	g.field = &c
	g.passes = 0

	if len(hand) == 0 {
		g.finished = true
		g.winner = actorID
		return &Delta{
			Event: "game_over",
			Data: map[string]any{
				"winner": actorID,
				"played": c,
			},
			Terminal: true,
			Results:  g.results(),
		}, nil
	}

	current := g.order.Advance()
	return &Delta{
		Event: "state_updated",
		Data: map[string]any{
			"actor":       actorID,
			"played":      c,
			"field":       c,
			"current":     current,
			"hand_counts": handCounts(g.hands),
		},
	}, nil
}

func (g *daifugo) pass(actorID string) *Delta {
	g.passes++
	current := g.order.Advance()

	data := map[string]any{
		"actor":       actorID,
		"passed":      true,
		"current":     current,
		"hand_counts": handCounts(g.hands),
	}

	// When everyone but the last player to act has passed, the trick resets.
	if g.passes >= len(g.seats)-1 {
		g.field = nil
		g.passes = 0
		data["field_cleared"] = true
	} else if g.field != nil {
		data["field"] = *g.field
	}
	data["passes"] = g.passes

	return &Delta{Event: "state_updated", Data: data}
}

func (g *daifugo) results() []Result {
	results := make([]Result, 0, len(g.seats))
	for _, s := range g.seats {
		results = append(results, Result{
			ParticipantID: s.ID,
			Score:         len(g.hands[s.ID]),
			Winner:        s.ID == g.winner,
		})
	}
	return results
}
