package game

import (
	"fmt"
)

// pointsPerCorrect is the fixed score increment for a correct quiz answer.
const pointsPerCorrect = 10

// Question is one timed-trivia prompt with a designated correct option.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// quiz is the timed-trivia variant: the host owns the round flow, every human
// seat answers at most once per question, highest cumulative score wins.
type quiz struct {
	seats     []Seat
	hostID    string
	questions []Question
	current   int
	scores    map[string]int
	answers   map[string]int
	awaiting  bool // round resolved, waiting for the inter-question pause
	finished  bool
	winner    string
}

func newQuiz(seats []Seat, hostID string) *quiz {
	scores := make(map[string]int, len(seats))
	for _, s := range seats {
		scores[s.ID] = 0
	}
	return &quiz{
		seats:   append([]Seat(nil), seats...),
		hostID:  hostID,
		scores:  scores,
		answers: make(map[string]int),
	}
}

func (g *quiz) Kind() Kind     { return KindQuiz }
func (g *quiz) Finished() bool { return g.finished }

func (g *quiz) Snapshot() map[string]any {
	data := map[string]any{
		"scores":    g.scores,
		"questions": len(g.questions),
	}
	if g.active() {
		q := g.questions[g.current]
		data["question"] = map[string]any{
			"index":   g.current,
			"prompt":  q.Prompt,
			"options": q.Options,
		}
	}
	return data
}

func (g *quiz) Apply(actorID string, act Action) (*Delta, error) {
	if g.finished {
		return nil, ErrRoomFinished
	}

	switch a := act.(type) {
	case SetQuestions:
		if actorID != g.hostID {
			return nil, fmt.Errorf("%w: only the host sets questions", ErrNotYourTurn)
		}
		return g.setQuestions(a.Questions)
	case SubmitAnswer:
		return g.answer(actorID, a.Option)
	case AdvanceQuestion:
		return g.advance()
	case SkipTurn:
		// Host forces the round to resolve with the answers received so far.
		if !g.active() {
			return nil, fmt.Errorf("%w: no active question", ErrInvalidAction)
		}
		return g.resolve(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported quiz action %T", ErrInvalidAction, act)
	}
}

// active reports whether a question is open for answers.
func (g *quiz) active() bool {
	return len(g.questions) > 0 && !g.awaiting && !g.finished
}

func (g *quiz) setQuestions(questions []Question) (*Delta, error) {
	if len(g.questions) > 0 {
		return nil, fmt.Errorf("%w: questions already set", ErrInvalidAction)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: empty question list", ErrInvalidAction)
	}
	for i, q := range questions {
		if q.Prompt == "" || len(q.Options) < 2 || q.Answer < 0 || q.Answer >= len(q.Options) {
			return nil, fmt.Errorf("%w: malformed question %d", ErrInvalidAction, i)
		}
	}

	g.questions = append([]Question(nil), questions...)
	g.current = 0
	g.answers = make(map[string]int)
	return g.activated(), nil
}

func (g *quiz) answer(actorID string, option int) (*Delta, error) {
	if !g.active() {
		return nil, fmt.Errorf("%w: no active question", ErrInvalidAction)
	}
	seat := g.seat(actorID)
	if seat == nil {
		return nil, fmt.Errorf("%w: %s is not seated", ErrInvalidAction, actorID)
	}
	if seat.Automated {
		return nil, fmt.Errorf("%w: automated seats do not answer", ErrInvalidAction)
	}
	if _, dup := g.answers[actorID]; dup {
		return nil, fmt.Errorf("%w: already answered this question", ErrInvalidAction)
	}
	if option < 0 || option >= len(g.questions[g.current].Options) {
		return nil, fmt.Errorf("%w: option %d out of range", ErrInvalidAction, option)
	}

	g.answers[actorID] = option

	if len(g.answers) < g.humanSeats() {
		return &Delta{
			Event: "answer_recorded",
			Data: map[string]any{
				"actor":    actorID,
				"question": g.current,
			},
		}, nil
	}
	return g.resolve(), nil
}

// resolve scores the current question. The last question's resolution is
// terminal and declares the winner.
func (g *quiz) resolve() *Delta {
	q := g.questions[g.current]
	for id, opt := range g.answers {
		if opt == q.Answer {
			g.scores[id] += pointsPerCorrect
		}
	}

	data := map[string]any{
		"question": g.current,
		"correct":  q.Answer,
		"scores":   g.scores,
	}

	if g.current == len(g.questions)-1 {
		g.finished = true
		g.winner = g.topScorer()
		data["winner"] = g.winner
		return &Delta{
			Event:    "game_over",
			Data:     data,
			Terminal: true,
			Results:  g.results(),
		}
	}

	g.awaiting = true
	return &Delta{
		Event:           "round_result",
		Data:            data,
		ScheduleAdvance: true,
	}
}

func (g *quiz) advance() (*Delta, error) {
	if !g.awaiting {
		return nil, fmt.Errorf("%w: no pending question advance", ErrInvalidAction)
	}
	g.current++
	g.answers = make(map[string]int)
	g.awaiting = false
	return g.activated(), nil
}

func (g *quiz) activated() *Delta {
	q := g.questions[g.current]
	return &Delta{
		Event: "question_activated",
		Data: map[string]any{
			"index":   g.current,
			"total":   len(g.questions),
			"prompt":  q.Prompt,
			"options": q.Options,
		},
	}
}

// topScorer picks the deterministic winner: the earliest seat in seat order
// holding the maximum score.
func (g *quiz) topScorer() string {
	best := ""
	bestScore := -1
	for _, s := range g.seats {
		if g.scores[s.ID] > bestScore {
			best = s.ID
			bestScore = g.scores[s.ID]
		}
	}
	return best
}

func (g *quiz) results() []Result {
	results := make([]Result, 0, len(g.seats))
	for _, s := range g.seats {
		results = append(results, Result{
			ParticipantID: s.ID,
			Score:         g.scores[s.ID],
			Winner:        s.ID == g.winner,
		})
	}
	return results
}

func (g *quiz) seat(id string) *Seat {
	for i := range g.seats {
		if g.seats[i].ID == id {
			return &g.seats[i]
		}
	}
	return nil
}

func (g *quiz) humanSeats() int {
	n := 0
	for _, s := range g.seats {
		if !s.Automated {
			n++
		}
	}
	return n
}
