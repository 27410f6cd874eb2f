package game

import (
	"errors"
	"fmt"
	"math/rand"
)

// Kind identifies one of the supported game variants.
type Kind string

const (
	KindDaifugo   Kind = "daifugo"
	KindBabanuki  Kind = "babanuki"
	KindShiritori Kind = "shiritori"
	KindJanken    Kind = "janken"
	KindQuiz      Kind = "quiz"
	KindAmidakuji Kind = "amidakuji"
)

// ParseKind validates a wire game kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDaifugo, KindBabanuki, KindShiritori, KindJanken, KindQuiz, KindAmidakuji:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown game kind %q", s)
	}
}

// SeatRange returns the supported seat count range for a variant.
func SeatRange(k Kind) (min, max int) {
	switch k {
	case KindDaifugo, KindBabanuki, KindShiritori:
		return 2, 6
	case KindAmidakuji:
		return 2, 10
	case KindQuiz:
		return 1, 10
	case KindJanken:
		return 2, 2
	default:
		return 0, 0
	}
}

// Action boundary errors. Every rejection leaves game state unchanged.
var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrInvalidAction = errors.New("invalid action")
	ErrRoomFinished  = errors.New("room finished")
)

// Seat describes one player slot as the engine sees it.
type Seat struct {
	ID        string
	Name      string
	Automated bool
}

// Action is the closed set of player inputs an engine can apply.
type Action interface {
	isAction()
}

// PlayCard plays a single card onto the field (daifugo).
type PlayCard struct {
	Card Card
}

// PassTurn passes without playing (daifugo).
type PassTurn struct{}

// DrawCard draws one random card from another seat's hand (babanuki).
type DrawCard struct {
	TargetID string
}

// SubmitWord submits the next chain word (shiritori).
type SubmitWord struct {
	Word string
}

// SubmitChoice submits a hand for the open round (janken).
type SubmitChoice struct {
	Choice string
}

// SubmitAnswer submits an option index for the active question (quiz).
type SubmitAnswer struct {
	Option int
}

// SetQuestions installs the question list before play begins (quiz, host only).
type SetQuestions struct {
	Questions []Question
}

// AdvanceQuestion activates the next question after the inter-round pause.
// It is issued by the dispatcher, never by a player.
type AdvanceQuestion struct{}

// ConfigureLabels sets one outcome label per seat (amidakuji, host only).
type ConfigureLabels struct {
	Labels []string
}

// TriggerLottery resolves the lottery in one atomic step (amidakuji, host only).
type TriggerLottery struct{}

// SkipTurn force-advances a stalled seat. The dispatcher restricts it to the
// room host before it reaches the engine.
type SkipTurn struct{}

func (PlayCard) isAction()        {}
func (PassTurn) isAction()        {}
func (DrawCard) isAction()        {}
func (SubmitWord) isAction()      {}
func (SubmitChoice) isAction()    {}
func (SubmitAnswer) isAction()    {}
func (SetQuestions) isAction()    {}
func (AdvanceQuestion) isAction() {}
func (ConfigureLabels) isAction() {}
func (TriggerLottery) isAction()  {}
func (SkipTurn) isAction()        {}

// Result is one participant's final standing, reported when a game ends.
type Result struct {
	ParticipantID string
	Score         int
	Winner        bool
}

// Delta is the broadcast payload produced by an accepted action. The state it
// describes has already been applied when the delta is returned.
type Delta struct {
	Event    string
	Data     map[string]any
	Terminal bool
	Results  []Result

	// ScheduleAdvance asks the dispatcher to apply AdvanceQuestion after the
	// configured inter-round pause (quiz only).
	ScheduleAdvance bool
}

// Engine is the per-variant state machine contract. Apply either fully
// applies the action and returns its broadcast delta, or rejects it without
// mutating any state.
type Engine interface {
	Kind() Kind
	Apply(actorID string, act Action) (*Delta, error)

	// Finished reports whether a terminal condition has been reached.
	Finished() bool

	// Snapshot returns the full broadcastable state, used for the
	// game_started event.
	Snapshot() map[string]any
}

// New constructs the initial game state for a room transitioning to Playing.
// The variant is selected once here; no string dispatch happens afterwards.
func New(kind Kind, seats []Seat, hostID string, rng *rand.Rand) (Engine, error) {
	if min, max := SeatRange(kind); len(seats) < min || len(seats) > max {
		return nil, fmt.Errorf("%w: %s needs %d-%d seats, got %d", ErrInvalidAction, kind, min, max, len(seats))
	}

	switch kind {
	case KindDaifugo:
		return newDaifugo(seats, rng), nil
	case KindBabanuki:
		return newBabanuki(seats, rng), nil
	case KindShiritori:
		return newShiritori(seats), nil
	case KindJanken:
		return newJanken(seats), nil
	case KindQuiz:
		return newQuiz(seats, hostID), nil
	case KindAmidakuji:
		return newAmidakuji(seats, hostID, rng), nil
	default:
		return nil, fmt.Errorf("unknown game kind %q", kind)
	}
}
