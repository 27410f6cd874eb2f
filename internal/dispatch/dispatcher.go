package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tmhk-chat/game-server-go/internal/content"
	"github.com/tmhk-chat/game-server-go/internal/game"
	"github.com/tmhk-chat/game-server-go/internal/presence"
	"github.com/tmhk-chat/game-server-go/internal/room"
)

// cpuDriveLimit bounds the automated-move loop per inbound action so an
// engine bug cannot spin a room forever.
const cpuDriveLimit = 1000

// recordTimeout bounds the score write at the Finished transition.
const recordTimeout = 5 * time.Second

// ScoreRecorder receives final results at the Finished transition.
type ScoreRecorder interface {
	RecordResult(ctx context.Context, roomID string, kind game.Kind, results []game.Result) error
}

// NopRecorder discards results; used when persistence is disabled.
type NopRecorder struct{}

// RecordResult implements ScoreRecorder.
func (NopRecorder) RecordResult(context.Context, string, game.Kind, []game.Result) error {
	return nil
}

// Dispatcher routes inbound participant actions to the owning room's engine
// and fans resulting deltas out to every connected seat. Each room's whole
// validate/apply/broadcast cycle runs under that room's lock, so actions
// against one room serialize while other rooms proceed concurrently.
type Dispatcher struct {
	rooms     *room.Registry
	presence  *presence.Registry
	questions content.Provider
	scores    ScoreRecorder
	policy    *game.Policy
	logger    *zap.Logger

	quizDelay time.Duration
	newRNG    func() *rand.Rand
}

// New creates a dispatcher.
func New(
	rooms *room.Registry,
	pres *presence.Registry,
	questions content.Provider,
	scores ScoreRecorder,
	quizDelay time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	newRNG := func() *rand.Rand {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Dispatcher{
		rooms:     rooms,
		presence:  pres,
		questions: questions,
		scores:    scores,
		policy:    game.NewPolicy(newRNG()),
		logger:    logger,
		quizDelay: quizDelay,
		newRNG:    newRNG,
	}
}

// SetRandSource overrides the per-room rng factory; tests use a fixed seed.
func (d *Dispatcher) SetRandSource(newRNG func() *rand.Rand) {
	d.newRNG = newRNG
	d.policy = game.NewPolicy(newRNG())
}

// CreateRoom opens a room and answers the host with room_created.
func (d *Dispatcher) CreateRoom(host room.Participant, kind game.Kind, maxSeats int, autoFill bool) (*room.Room, error) {
	r, err := d.rooms.Create(host, kind, maxSeats, autoFill)
	if err != nil {
		d.reject(host.ID, "", err)
		return nil, err
	}

	r.Lock()
	d.sendTo(host.ID, "room_created", map[string]any{
		"room_id":   r.ID,
		"game_kind": string(r.Kind),
		"max_seats": r.MaxSeats,
		"members":   r.Members(),
	})
	r.Unlock()
	return r, nil
}

// JoinRoom seats a participant and broadcasts the membership change.
func (d *Dispatcher) JoinRoom(roomID string, p room.Participant) error {
	r, err := d.rooms.Join(roomID, p)
	if err != nil {
		d.reject(p.ID, roomID, err)
		return err
	}

	r.Lock()
	defer r.Unlock()
	d.broadcastLocked(r, "member_joined", map[string]any{
		"participant": p,
		"members":     r.Members(),
	})
	return nil
}

// LeaveRoom removes a participant from a Waiting room.
func (d *Dispatcher) LeaveRoom(roomID, participantID string) error {
	r, closed, err := d.rooms.Leave(roomID, participantID)
	if err != nil {
		d.reject(participantID, roomID, err)
		return err
	}

	r.Lock()
	defer r.Unlock()
	if closed {
		d.broadcastLocked(r, "room_closed", map[string]any{
			"reason": "host left",
		})
		return nil
	}
	d.broadcastLocked(r, "member_left", map[string]any{
		"participant_id": participantID,
		"members":        r.Members(),
	})
	return nil
}

// StartGame transitions a Waiting room to Playing and broadcasts the initial
// state. Host only.
func (d *Dispatcher) StartGame(actorID, roomID string) error {
	r, err := d.rooms.Get(roomID)
	if err != nil {
		d.reject(actorID, roomID, err)
		return err
	}

	r.Lock()
	defer r.Unlock()

	if !r.IsHost(actorID) {
		err := game.ErrNotYourTurn
		d.reject(actorID, roomID, err)
		return err
	}
	switch r.Status {
	case room.StatusPlaying:
		d.reject(actorID, roomID, room.ErrRoomNotWaiting)
		return room.ErrRoomNotWaiting
	case room.StatusFinished:
		d.reject(actorID, roomID, game.ErrRoomFinished)
		return game.ErrRoomFinished
	}

	eng, err := game.New(r.Kind, r.GameSeats(), r.HostID, d.newRNG())
	if err != nil {
		d.reject(actorID, roomID, err)
		return err
	}
	r.SetPlaying(eng)

	d.logger.Info("game started",
		zap.String("room_id", r.ID),
		zap.String("game_kind", string(r.Kind)),
	)
	d.broadcastLocked(r, "game_started", eng.Snapshot())
	d.syncHandsLocked(r)

	// A degenerate deal can finish a game before anyone acts.
	if eng.Finished() {
		results := []game.Result{}
		if rep, ok := eng.(interface{ Results() []game.Result }); ok {
			results = rep.Results()
		}
		d.broadcastLocked(r, "game_over", eng.Snapshot())
		d.finishLocked(r, results)
		return nil
	}

	d.driveAutomatedLocked(r)
	return nil
}

// HandleAction routes a game action from the wire into the room's engine.
func (d *Dispatcher) HandleAction(actorID, roomID string, act game.Action) (err error) {
	r, getErr := d.rooms.Get(roomID)
	if getErr != nil {
		d.reject(actorID, roomID, getErr)
		return getErr
	}

	r.Lock()
	defer r.Unlock()

	// Any unexpected engine fault becomes a rejection to the origin rather
	// than a corrupted room or a dead processing context.
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic in action handling",
				zap.String("room_id", roomID),
				zap.Any("panic", rec),
			)
			err = errors.New("internal error")
			d.reject(actorID, roomID, err)
		}
	}()

	switch r.Status {
	case room.StatusWaiting:
		d.reject(actorID, roomID, room.ErrRoomNotWaiting)
		return room.ErrRoomNotWaiting
	case room.StatusFinished:
		d.reject(actorID, roomID, game.ErrRoomFinished)
		return game.ErrRoomFinished
	}

	switch act.(type) {
	case game.SkipTurn:
		if !r.IsHost(actorID) {
			d.reject(actorID, roomID, game.ErrNotYourTurn)
			return game.ErrNotYourTurn
		}
	case game.AdvanceQuestion:
		// Internal scheduling action; never accepted from the wire.
		d.reject(actorID, roomID, game.ErrInvalidAction)
		return game.ErrInvalidAction
	}

	delta, applyErr := r.Game.Apply(actorID, act)
	if applyErr != nil {
		d.reject(actorID, roomID, applyErr)
		return applyErr
	}

	d.broadcastLocked(r, delta.Event, delta.Data)
	if !delta.Terminal {
		d.syncHandsLocked(r)
	}
	d.afterApplyLocked(r, delta)
	return nil
}

// GenerateQuestions asks the content provider for a themed question list and
// installs it. Host only; provider failure leaves room state untouched.
func (d *Dispatcher) GenerateQuestions(actorID, roomID, theme string, count int) error {
	r, err := d.rooms.Get(roomID)
	if err != nil {
		d.reject(actorID, roomID, err)
		return err
	}

	r.Lock()
	defer r.Unlock()

	switch {
	case r.Status == room.StatusWaiting:
		d.reject(actorID, roomID, room.ErrRoomNotWaiting)
		return room.ErrRoomNotWaiting
	case r.Status == room.StatusFinished:
		d.reject(actorID, roomID, game.ErrRoomFinished)
		return game.ErrRoomFinished
	case !r.IsHost(actorID):
		d.reject(actorID, roomID, game.ErrNotYourTurn)
		return game.ErrNotYourTurn
	case r.Kind != game.KindQuiz:
		d.reject(actorID, roomID, game.ErrInvalidAction)
		return game.ErrInvalidAction
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	questions, err := d.questions.Generate(ctx, theme, count)
	if err != nil {
		d.logger.Warn("question generation failed",
			zap.String("room_id", roomID),
			zap.String("theme", theme),
			zap.Error(err),
		)
		d.reject(actorID, roomID, err)
		return err
	}

	delta, err := r.Game.Apply(actorID, game.SetQuestions{Questions: questions})
	if err != nil {
		d.reject(actorID, roomID, err)
		return err
	}
	d.broadcastLocked(r, delta.Event, delta.Data)
	return nil
}

// ListRooms answers the requester with the current room summaries.
func (d *Dispatcher) ListRooms(actorID string) {
	d.sendTo(actorID, "room_list", map[string]any{
		"rooms": d.rooms.List(),
	})
}

// SetStatus updates the requester's presence status and notifies their room.
func (d *Dispatcher) SetStatus(actorID, status string) error {
	st, err := presence.ParseStatus(status)
	if err != nil {
		d.reject(actorID, "", game.ErrInvalidAction)
		return err
	}
	if err := d.presence.SetStatus(actorID, st); err != nil {
		d.reject(actorID, "", game.ErrInvalidAction)
		return err
	}

	if roomID, ok := d.rooms.RoomOf(actorID); ok {
		if r, err := d.rooms.Get(roomID); err == nil {
			r.Lock()
			d.broadcastLocked(r, "presence_changed", map[string]any{
				"participant_id": actorID,
				"status":         string(st),
			})
			r.Unlock()
		}
	}
	return nil
}

// afterApplyLocked handles terminal transitions, the quiz inter-round pause,
// and automated seats. Call with the room locked.
func (d *Dispatcher) afterApplyLocked(r *room.Room, delta *game.Delta) {
	if delta.Terminal {
		d.finishLocked(r, delta.Results)
		return
	}
	if delta.ScheduleAdvance {
		d.scheduleAdvance(r.ID)
		return
	}
	d.driveAutomatedLocked(r)
}

// driveAutomatedLocked applies CPU moves until the game waits on a human.
func (d *Dispatcher) driveAutomatedLocked(r *room.Room) {
	for i := 0; i < cpuDriveLimit; i++ {
		seatID, act, ok := d.policy.Pending(r.Game)
		if !ok {
			return
		}

		delta, err := r.Game.Apply(seatID, act)
		if err != nil {
			d.logger.Error("automated move rejected",
				zap.String("room_id", r.ID),
				zap.String("seat_id", seatID),
				zap.Error(err),
			)
			return
		}

		d.broadcastLocked(r, delta.Event, delta.Data)
		if delta.Terminal {
			d.finishLocked(r, delta.Results)
			return
		}
		d.syncHandsLocked(r)
		if delta.ScheduleAdvance {
			d.scheduleAdvance(r.ID)
			return
		}
	}
	d.logger.Warn("automated move limit reached", zap.String("room_id", r.ID))
}

// scheduleAdvance re-enters the dispatch path after the quiz pause without
// blocking any room's processing.
func (d *Dispatcher) scheduleAdvance(roomID string) {
	time.AfterFunc(d.quizDelay, func() {
		r, err := d.rooms.Get(roomID)
		if err != nil {
			return
		}

		r.Lock()
		defer r.Unlock()
		if r.Status != room.StatusPlaying {
			return
		}

		delta, err := r.Game.Apply(r.HostID, game.AdvanceQuestion{})
		if err != nil {
			d.logger.Debug("question advance skipped",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
			return
		}
		d.broadcastLocked(r, delta.Event, delta.Data)
	})
}

// finishLocked marks the room Finished and hands results to the recorder.
// Registry removal is left to the janitor so the terminal broadcast flushes.
func (d *Dispatcher) finishLocked(r *room.Room, results []game.Result) {
	r.SetFinished(time.Now())

	d.logger.Info("game finished",
		zap.String("room_id", r.ID),
		zap.String("game_kind", string(r.Kind)),
	)

	// Free the players for new rooms right away; lock ordering (registry
	// before room) forbids taking the registry lock on this goroutine.
	humans := make([]string, 0, len(r.Seats))
	for _, p := range r.Seats {
		if !p.Automated {
			humans = append(humans, p.ID)
		}
	}
	go d.rooms.Release(humans)

	roomID, kind := r.ID, r.Kind
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := d.scores.RecordResult(ctx, roomID, kind, results); err != nil {
			d.logger.Error("failed to record game result",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
		}
	}()
}

// handProvider is implemented by engines whose seats hold private cards.
type handProvider interface {
	Hand(seatID string) []game.Card
}

// syncHandsLocked pushes each seat's private hand to its own channel only.
// Broadcast payloads carry hand counts, never card identities.
func (d *Dispatcher) syncHandsLocked(r *room.Room) {
	hp, ok := r.Game.(handProvider)
	if !ok {
		return
	}
	for _, p := range r.Seats {
		if p.Automated {
			continue
		}
		d.sendTo(p.ID, "hand_updated", map[string]any{
			"room_id": r.ID,
			"hand":    hp.Hand(p.ID),
		})
	}
}

// broadcastLocked fans an event out to every connected human seat, in the
// order actions were applied. Call with the room locked.
func (d *Dispatcher) broadcastLocked(r *room.Room, event string, data map[string]any) {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["room_id"] = r.ID

	for _, p := range r.Seats {
		if p.Automated {
			continue
		}
		ch, ok := d.presence.Channel(p.ID)
		if !ok {
			continue
		}
		if err := ch.Send(event, payload); err != nil {
			d.logger.Debug("broadcast send failed",
				zap.String("room_id", r.ID),
				zap.String("participant_id", p.ID),
				zap.Error(err),
			)
		}
	}
}

// reject answers only the originating participant; rejected actions are never
// broadcast.
func (d *Dispatcher) reject(actorID, roomID string, err error) {
	data := map[string]any{
		"code":    errorCode(err),
		"message": err.Error(),
	}
	if roomID != "" {
		data["room_id"] = roomID
	}
	d.sendTo(actorID, "rejected", data)
}

func (d *Dispatcher) sendTo(participantID, event string, data map[string]any) {
	ch, ok := d.presence.Channel(participantID)
	if !ok {
		return
	}
	if err := ch.Send(event, data); err != nil {
		d.logger.Debug("send failed",
			zap.String("participant_id", participantID),
			zap.Error(err),
		)
	}
}

// errorCode classifies an action-boundary error into its wire rejection code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, room.ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, room.ErrRoomNotWaiting):
		return "ROOM_NOT_WAITING"
	case errors.Is(err, room.ErrInvalidConfiguration), errors.Is(err, room.ErrAlreadyInRoom):
		return "INVALID_CONFIGURATION"
	case errors.Is(err, game.ErrNotYourTurn):
		return "NOT_YOUR_TURN"
	case errors.Is(err, game.ErrInvalidAction):
		return "INVALID_ACTION"
	case errors.Is(err, game.ErrRoomFinished):
		return "ROOM_FINISHED"
	case errors.Is(err, content.ErrGenerationFailed):
		return "CONTENT_GENERATION_FAILED"
	default:
		return "INTERNAL"
	}
}
