package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tmhk-chat/game-server-go/internal/content"
	"github.com/tmhk-chat/game-server-go/internal/game"
	"github.com/tmhk-chat/game-server-go/internal/presence"
	"github.com/tmhk-chat/game-server-go/internal/room"
)

type capturedEvent struct {
	event string
	data  map[string]any
}

type fakeChannel struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (c *fakeChannel) Send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := data.(map[string]any)
	c.events = append(c.events, capturedEvent{event: event, data: m})
	return nil
}

func (c *fakeChannel) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.event
	}
	return out
}

func (c *fakeChannel) last() capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return capturedEvent{}
	}
	return c.events[len(c.events)-1]
}

func (c *fakeChannel) find(event string) (capturedEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.event == event {
			return e, true
		}
	}
	return capturedEvent{}, false
}

func (c *fakeChannel) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type captureRecorder struct {
	mu      sync.Mutex
	results []game.Result
	roomID  string
	done    chan struct{}
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{done: make(chan struct{})}
}

func (r *captureRecorder) RecordResult(_ context.Context, roomID string, _ game.Kind, results []game.Result) error {
	r.mu.Lock()
	r.roomID = roomID
	r.results = results
	r.mu.Unlock()
	close(r.done)
	return nil
}

type failingProvider struct{}

func (failingProvider) Generate(context.Context, string, int) ([]game.Question, error) {
	return nil, content.ErrGenerationFailed
}

func newTestDispatcher(t *testing.T, scores ScoreRecorder) (*Dispatcher, *presence.Registry) {
	t.Helper()
	logger := zap.NewNop()
	rooms := room.NewRegistry(0, logger)
	pres := presence.NewRegistry(logger)
	if scores == nil {
		scores = NopRecorder{}
	}
	d := New(rooms, pres, content.NewStaticProvider(), scores, 10*time.Millisecond, logger)
	d.SetRandSource(func() *rand.Rand { return rand.New(rand.NewSource(1)) })
	return d, pres
}

func connect(pres *presence.Registry, id string) *fakeChannel {
	ch := &fakeChannel{}
	pres.Connect(id, ch)
	return ch
}

func TestStartGameHostOnly(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")
	guest := connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindJanken, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))

	err = d.StartGame("bob", r.ID)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	assert.Equal(t, room.StatusWaiting, r.Status)

	rej := guest.last()
	assert.Equal(t, "rejected", rej.event)
	assert.Equal(t, "NOT_YOUR_TURN", rej.data["code"])
	assert.Zero(t, host.count("rejected"))
	assert.Zero(t, host.count("game_started"))
}

func TestRejectionGoesOnlyToOrigin(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")
	guest := connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindDaifugo, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))

	hostEvents := len(host.names())

	// Seats play in join order, so bob acting first is out of turn.
	err = d.HandleAction("bob", r.ID, game.PassTurn{})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	rej := guest.last()
	assert.Equal(t, "rejected", rej.event)
	assert.Equal(t, "NOT_YOUR_TURN", rej.data["code"])
	assert.Equal(t, r.ID, rej.data["room_id"])
	assert.Len(t, host.names(), hostEvents, "rejections must not be broadcast")
}

func TestActionAgainstWaitingRoomRejected(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindJanken, 2, true)
	require.NoError(t, err)

	err = d.HandleAction("alice", r.ID, game.SubmitChoice{Choice: "rock"})
	assert.ErrorIs(t, err, room.ErrRoomNotWaiting)
	assert.Equal(t, "ROOM_NOT_WAITING", host.last().data["code"])
}

func TestUnknownRoomRejected(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")

	err := d.HandleAction("alice", "nope", game.PassTurn{})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
	assert.Equal(t, "ROOM_NOT_FOUND", host.last().data["code"])
}

func TestBroadcastOrderMatchesApplicationOrder(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")
	guest := connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindJanken, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))

	require.NoError(t, d.HandleAction("alice", r.ID, game.SubmitChoice{Choice: "rock"}))
	require.NoError(t, d.HandleAction("bob", r.ID, game.SubmitChoice{Choice: "scissors"}))

	assert.Equal(t,
		[]string{"room_created", "member_joined", "game_started", "choice_recorded", "round_result"},
		host.names())
	assert.Equal(t,
		[]string{"member_joined", "game_started", "choice_recorded", "round_result"},
		guest.names())

	result := guest.last()
	assert.Equal(t, "alice", result.data["winner"])
}

func TestChoiceHiddenUntilRoundResolves(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	connect(pres, "alice")
	guest := connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindJanken, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))
	require.NoError(t, d.HandleAction("alice", r.ID, game.SubmitChoice{Choice: "paper"}))

	recorded := guest.last()
	require.Equal(t, "choice_recorded", recorded.event)
	assert.Equal(t, "alice", recorded.data["actor"])
	assert.NotContains(t, recorded.data, "choices")
}

func TestTerminalTransitionRecordsScores(t *testing.T) {
	rec := newCaptureRecorder()
	d, pres := newTestDispatcher(t, rec)
	host := connect(pres, "alice")
	connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindAmidakuji, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))

	require.NoError(t, d.HandleAction("alice", r.ID, game.ConfigureLabels{Labels: []string{"当たり", "ハズレ"}}))
	require.NoError(t, d.HandleAction("alice", r.ID, game.TriggerLottery{}))

	assert.Equal(t, room.StatusFinished, r.Status)
	assert.Equal(t, "game_over", host.last().event)

	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("recorder was not invoked")
	}
	assert.Equal(t, r.ID, rec.roomID)
	assert.Len(t, rec.results, 2)

	// A finished room accepts nothing further.
	err = d.HandleAction("alice", r.ID, game.TriggerLottery{})
	assert.ErrorIs(t, err, game.ErrRoomFinished)
}

func TestFinishedGameFreesPlayersForNewRooms(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	connect(pres, "alice")
	connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindAmidakuji, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))
	require.NoError(t, d.HandleAction("alice", r.ID, game.ConfigureLabels{Labels: []string{"当たり", "ハズレ"}}))
	require.NoError(t, d.HandleAction("alice", r.ID, game.TriggerLottery{}))
	require.Equal(t, room.StatusFinished, r.Status)

	// Both players are released while the finished room lingers for sweep.
	assert.Eventually(t, func() bool {
		_, err := d.CreateRoom(room.Participant{ID: "bob", Name: "Bob"}, game.KindQuiz, 2, false)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestStartGameDeliversHandsPrivately(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")
	guest := connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindDaifugo, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))

	started, ok := host.find("game_started")
	require.True(t, ok)
	assert.NotContains(t, started.data, "hands", "broadcasts must not reveal card identities")
	assert.Contains(t, started.data, "hand_counts")

	for _, ch := range []*fakeChannel{host, guest} {
		ev, ok := ch.find("hand_updated")
		require.True(t, ok)
		hand, ok := ev.data["hand"].([]game.Card)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(hand), 26, "each player sees only their own half of the deck")
		assert.LessOrEqual(t, len(hand), 27)
	}
}

func TestAutomatedSeatsActWithoutInput(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindJanken, 2, true)
	require.NoError(t, err)
	require.NoError(t, d.StartGame("alice", r.ID))

	// The stand-in submits as soon as the round opens.
	assert.Equal(t, 1, host.count("choice_recorded"))

	require.NoError(t, d.HandleAction("alice", r.ID, game.SubmitChoice{Choice: "rock"}))
	assert.Equal(t, 1, host.count("round_result"))
}

func TestSkipTurnHostOnly(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	connect(pres, "alice")
	guest := connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindDaifugo, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))

	err = d.HandleAction("bob", r.ID, game.SkipTurn{})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	assert.Equal(t, "rejected", guest.last().event)

	require.NoError(t, d.HandleAction("alice", r.ID, game.SkipTurn{}))
}

func TestAdvanceQuestionNeverAcceptedFromWire(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	connect(pres, "alice")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindQuiz, 1, false)
	require.NoError(t, err)
	require.NoError(t, d.StartGame("alice", r.ID))

	err = d.HandleAction("alice", r.ID, game.AdvanceQuestion{})
	assert.ErrorIs(t, err, game.ErrInvalidAction)
}

func TestGenerateQuestionsFailureLeavesRoomUntouched(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	d.questions = failingProvider{}
	host := connect(pres, "alice")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindQuiz, 1, false)
	require.NoError(t, err)
	require.NoError(t, d.StartGame("alice", r.ID))

	err = d.GenerateQuestions("alice", r.ID, "general", 3)
	assert.ErrorIs(t, err, content.ErrGenerationFailed)
	assert.Equal(t, "CONTENT_GENERATION_FAILED", host.last().data["code"])
	assert.Equal(t, room.StatusPlaying, r.Status)

	// The failed attempt must not have half-installed anything.
	d.questions = content.NewStaticProvider()
	require.NoError(t, d.GenerateQuestions("alice", r.ID, "general", 2))
	assert.Equal(t, "question_activated", host.last().event)
}

func TestGenerateQuestionsWrongVariant(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	connect(pres, "alice")
	connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindJanken, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))
	require.NoError(t, d.StartGame("alice", r.ID))

	err = d.GenerateQuestions("alice", r.ID, "general", 3)
	assert.ErrorIs(t, err, game.ErrInvalidAction)
}

func TestQuizAdvanceScheduledAfterRound(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	host := connect(pres, "alice")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindQuiz, 1, false)
	require.NoError(t, err)
	require.NoError(t, d.StartGame("alice", r.ID))
	require.NoError(t, d.GenerateQuestions("alice", r.ID, "general", 2))

	require.NoError(t, d.HandleAction("alice", r.ID, game.SubmitAnswer{Option: 1}))
	assert.Equal(t, "round_result", host.last().event)

	assert.Eventually(t, func() bool {
		return host.count("question_activated") == 2
	}, time.Second, 5*time.Millisecond, "next question should activate after the pause")
}

func TestLeaveRoomHostCloses(t *testing.T) {
	d, pres := newTestDispatcher(t, nil)
	connect(pres, "alice")
	guest := connect(pres, "bob")

	r, err := d.CreateRoom(room.Participant{ID: "alice", Name: "Alice"}, game.KindJanken, 2, false)
	require.NoError(t, err)
	require.NoError(t, d.JoinRoom(r.ID, room.Participant{ID: "bob", Name: "Bob"}))

	require.NoError(t, d.LeaveRoom(r.ID, "alice"))
	assert.Equal(t, "room_closed", guest.last().event)

	// The room is gone, so both are free to open a new one.
	_, err = d.CreateRoom(room.Participant{ID: "bob", Name: "Bob"}, game.KindJanken, 2, true)
	assert.NoError(t, err)
}

func TestErrorCodeClassification(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{room.ErrRoomNotFound, "ROOM_NOT_FOUND"},
		{room.ErrRoomFull, "ROOM_FULL"},
		{room.ErrRoomNotWaiting, "ROOM_NOT_WAITING"},
		{room.ErrInvalidConfiguration, "INVALID_CONFIGURATION"},
		{room.ErrAlreadyInRoom, "INVALID_CONFIGURATION"},
		{game.ErrNotYourTurn, "NOT_YOUR_TURN"},
		{game.ErrInvalidAction, "INVALID_ACTION"},
		{game.ErrRoomFinished, "ROOM_FINISHED"},
		{content.ErrGenerationFailed, "CONTENT_GENERATION_FAILED"},
		{errors.New("boom"), "INTERNAL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, errorCode(tt.err), "for %v", tt.err)
	}
}
