package game

import (
	"fmt"
	"math/rand"
)

// amidakuji is the lottery-assignment variant: the host configures one
// outcome label per seat, then a single trigger permutes the labels across
// seats atomically and ends the game.
type amidakuji struct {
	seats      []Seat
	hostID     string
	labels     []string
	assignment map[string]string
	rng        *rand.Rand
	finished   bool
}

func newAmidakuji(seats []Seat, hostID string, rng *rand.Rand) *amidakuji {
	return &amidakuji{
		seats:  append([]Seat(nil), seats...),
		hostID: hostID,
		rng:    rng,
	}
}

func (g *amidakuji) Kind() Kind     { return KindAmidakuji }
func (g *amidakuji) Finished() bool { return g.finished }

func (g *amidakuji) Snapshot() map[string]any {
	data := map[string]any{
		"configured": len(g.labels) > 0,
	}
	if g.finished {
		data["assignment"] = g.assignment
	}
	return data
}

func (g *amidakuji) Apply(actorID string, act Action) (*Delta, error) {
	if g.finished {
		return nil, ErrRoomFinished
	}

	switch a := act.(type) {
	case ConfigureLabels:
		if actorID != g.hostID {
			return nil, fmt.Errorf("%w: only the host configures labels", ErrNotYourTurn)
		}
		if len(a.Labels) != len(g.seats) {
			return nil, fmt.Errorf("%w: need %d labels, got %d", ErrInvalidAction, len(g.seats), len(a.Labels))
		}
		g.labels = append([]string(nil), a.Labels...)
		return &Delta{
			Event: "state_updated",
			Data: map[string]any{
				"configured": true,
				"labels":     len(g.labels),
			},
		}, nil
	case TriggerLottery:
		if actorID != g.hostID {
			return nil, fmt.Errorf("%w: only the host triggers the lottery", ErrNotYourTurn)
		}
		if len(g.labels) == 0 {
			return nil, fmt.Errorf("%w: labels not configured", ErrInvalidAction)
		}
		return g.trigger(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported amidakuji action %T", ErrInvalidAction, act)
	}
}

func (g *amidakuji) trigger() *Delta {
	perm := g.rng.Perm(len(g.seats))
	g.assignment = make(map[string]string, len(g.seats))
	for i, s := range g.seats {
		g.assignment[s.ID] = g.labels[perm[i]]
	}
	g.finished = true

	results := make([]Result, 0, len(g.seats))
	for _, s := range g.seats {
		results = append(results, Result{ParticipantID: s.ID})
	}

	return &Delta{
		Event: "game_over",
		Data: map[string]any{
			"assignment": g.assignment,
		},
		Terminal: true,
		Results:  results,
	}
}
