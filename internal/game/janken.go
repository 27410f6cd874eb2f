package game

import (
	"fmt"
)

// Choice is a janken hand.
type Choice string

const (
	ChoiceRock     Choice = "rock"
	ChoiceScissors Choice = "scissors"
	ChoicePaper    Choice = "paper"
)

// parseChoice accepts both romaji tokens and the Japanese hand names.
func parseChoice(s string) (Choice, bool) {
	switch s {
	case "rock", "グー", "ぐー":
		return ChoiceRock, true
	case "scissors", "チョキ", "ちょき":
		return ChoiceScissors, true
	case "paper", "パー", "ぱー":
		return ChoicePaper, true
	default:
		return "", false
	}
}

// beats reports whether a defeats b under the cyclic dominance relation.
func (a Choice) beats(b Choice) bool {
	switch a {
	case ChoiceRock:
		return b == ChoiceScissors
	case ChoiceScissors:
		return b == ChoicePaper
	case ChoicePaper:
		return b == ChoiceRock
	default:
		return false
	}
}

// janken is the simultaneous-choice variant for exactly two seats. It has no
// terminal state; rounds repeat until the room is torn down.
type janken struct {
	seats   []Seat
	choices map[string]Choice
	round   int
}

func newJanken(seats []Seat) *janken {
	return &janken{
		seats:   append([]Seat(nil), seats...),
		choices: make(map[string]Choice, 2),
		round:   1,
	}
}

func (g *janken) Kind() Kind     { return KindJanken }
func (g *janken) Finished() bool { return false }

func (g *janken) Snapshot() map[string]any {
	submitted := make([]string, 0, len(g.choices))
	for id := range g.choices {
		submitted = append(submitted, id)
	}
	return map[string]any{
		"round":     g.round,
		"submitted": submitted,
	}
}

func (g *janken) Apply(actorID string, act Action) (*Delta, error) {
	a, ok := act.(SubmitChoice)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported janken action %T", ErrInvalidAction, act)
	}

	if !g.isSeat(actorID) {
		return nil, fmt.Errorf("%w: %s is not seated", ErrInvalidAction, actorID)
	}
	if _, dup := g.choices[actorID]; dup {
		return nil, fmt.Errorf("%w: choice already submitted this round", ErrInvalidAction)
	}
	choice, ok := parseChoice(a.Choice)
	if !ok {
		return nil, fmt.Errorf("%w: unknown choice %q", ErrInvalidAction, a.Choice)
	}

	g.choices[actorID] = choice
	if len(g.choices) < len(g.seats) {
		// Do not reveal the submitted hand before the round resolves.
		return &Delta{
			Event: "choice_recorded",
			Data: map[string]any{
				"actor": actorID,
				"round": g.round,
			},
		}, nil
	}

	return g.resolve(), nil
}

func (g *janken) resolve() *Delta {
	a, b := g.seats[0].ID, g.seats[1].ID
	ca, cb := g.choices[a], g.choices[b]

	winner := ""
	switch {
	case ca.beats(cb):
		winner = a
	case cb.beats(ca):
		winner = b
	}

	data := map[string]any{
		"round":   g.round,
		"choices": map[string]string{a: string(ca), b: string(cb)},
		"tie":     winner == "",
	}
	if winner != "" {
		data["winner"] = winner
	}

	g.round++
	g.choices = make(map[string]Choice, 2)

	return &Delta{Event: "round_result", Data: data}
}

func (g *janken) isSeat(id string) bool {
	for _, s := range g.seats {
		if s.ID == id {
			return true
		}
	}
	return false
}
