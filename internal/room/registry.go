package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmhk-chat/game-server-go/internal/game"
)

// Registry operation errors.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room full")
	ErrRoomNotWaiting       = errors.New("room not waiting")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrAlreadyInRoom        = errors.New("participant already in a room")
)

// Summary is a read-only room listing entry for the hub page.
type Summary struct {
	ID        string    `json:"room_id"`
	Kind      game.Kind `json:"game_kind"`
	HostID    string    `json:"host_id"`
	Seats     int       `json:"seats"`
	MaxSeats  int       `json:"max_seats"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry is the in-memory collection of live rooms. The registry lock only
// guards the maps; per-room state is guarded by each room's own lock.
type Registry struct {
	logger   *zap.Logger
	maxRooms int

	mu            sync.RWMutex
	rooms         map[string]*Room
	byParticipant map[string]string // human participant id -> room id
}

// NewRegistry creates an empty room registry. maxRooms <= 0 means unlimited.
func NewRegistry(maxRooms int, logger *zap.Logger) *Registry {
	return &Registry{
		logger:        logger,
		maxRooms:      maxRooms,
		rooms:         make(map[string]*Room),
		byParticipant: make(map[string]string),
	}
}

// Create opens a new Waiting room hosted by host. When autoFill is set the
// remaining seats are filled with automated stand-ins immediately, matching
// the hub's "play with CPU" option.
func (g *Registry) Create(host Participant, kind game.Kind, maxSeats int, autoFill bool) (*Room, error) {
	min, max := game.SeatRange(kind)
	if min == 0 {
		return nil, fmt.Errorf("%w: unknown game kind %q", ErrInvalidConfiguration, kind)
	}
	if maxSeats < min || maxSeats > max {
		return nil, fmt.Errorf("%w: %s supports %d-%d seats, got %d", ErrInvalidConfiguration, kind, min, max, maxSeats)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.maxRooms > 0 && len(g.rooms) >= g.maxRooms {
		return nil, fmt.Errorf("%w: room limit reached", ErrInvalidConfiguration)
	}
	if _, in := g.byParticipant[host.ID]; in {
		return nil, ErrAlreadyInRoom
	}

	r := &Room{
		ID:        uuid.NewString()[:8],
		Kind:      kind,
		HostID:    host.ID,
		MaxSeats:  maxSeats,
		Seats:     []Participant{host},
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}

	if autoFill {
		for i := 1; i < maxSeats; i++ {
			r.Seats = append(r.Seats, Participant{
				ID:        fmt.Sprintf("cpu-%d", i),
				Name:      fmt.Sprintf("CPU %d", i),
				Automated: true,
			})
		}
	}

	g.rooms[r.ID] = r
	g.byParticipant[host.ID] = r.ID

	g.logger.Info("room created",
		zap.String("room_id", r.ID),
		zap.String("game_kind", string(kind)),
		zap.String("host_id", host.ID),
		zap.Int("max_seats", maxSeats),
		zap.Bool("auto_fill", autoFill),
	)
	return r, nil
}

// Join seats a participant in a Waiting room.
func (g *Registry) Join(roomID string, p Participant) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if _, in := g.byParticipant[p.ID]; in {
		return nil, ErrAlreadyInRoom
	}

	r.Lock()
	defer r.Unlock()

	if r.Status != StatusWaiting {
		return nil, ErrRoomNotWaiting
	}
	if len(r.Seats) >= r.MaxSeats {
		return nil, ErrRoomFull
	}

	r.Seats = append(r.Seats, p)
	g.byParticipant[p.ID] = roomID

	g.logger.Info("participant joined room",
		zap.String("room_id", roomID),
		zap.String("participant_id", p.ID),
	)
	return r, nil
}

// Leave removes a participant from a Waiting room. The host leaving closes
// the room. Returns the room and whether it was closed.
func (g *Registry) Leave(roomID, participantID string) (*Room, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return nil, false, ErrRoomNotFound
	}

	r.Lock()
	defer r.Unlock()

	if r.Status != StatusWaiting {
		return nil, false, ErrRoomNotWaiting
	}
	if !r.Seated(participantID) {
		return nil, false, fmt.Errorf("%w: not seated in room", ErrInvalidConfiguration)
	}

	if r.IsHost(participantID) {
		g.removeLocked(r)
		return r, true, nil
	}

	for i, p := range r.Seats {
		if p.ID == participantID {
			r.Seats = append(r.Seats[:i], r.Seats[i+1:]...)
			break
		}
	}
	delete(g.byParticipant, participantID)
	return r, false, nil
}

// Get looks up a room by id.
func (g *Registry) Get(roomID string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove tears the room down and releases its members for new rooms.
func (g *Registry) Remove(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return
	}
	g.removeLocked(r)
}

func (g *Registry) removeLocked(r *Room) {
	delete(g.rooms, r.ID)
	for _, p := range r.Seats {
		// Members released at the Finished transition may already sit in a
		// new room; only drop index entries that still point here.
		if !p.Automated && g.byParticipant[p.ID] == r.ID {
			delete(g.byParticipant, p.ID)
		}
	}
	g.logger.Info("room removed", zap.String("room_id", r.ID))
}

// Release frees participants to create or join new rooms while their old room
// lingers for the terminal broadcast. A Finished room does not count toward
// the one-active-room limit.
func (g *Registry) Release(participantIDs []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range participantIDs {
		delete(g.byParticipant, id)
	}
}

// RoomOf returns the id of the room the participant is currently seated in.
func (g *Registry) RoomOf(participantID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.byParticipant[participantID]
	return id, ok
}

// List returns summaries of all live rooms.
func (g *Registry) List() []Summary {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Summary, 0, len(g.rooms))
	for _, r := range g.rooms {
		r.Lock()
		out = append(out, Summary{
			ID:        r.ID,
			Kind:      r.Kind,
			HostID:    r.HostID,
			Seats:     len(r.Seats),
			MaxSeats:  r.MaxSeats,
			Status:    r.Status.String(),
			CreatedAt: r.CreatedAt,
		})
		r.Unlock()
	}
	return out
}

// Janitor periodically removes Finished rooms once their terminal broadcast
// has had linger time to flush. Blocks until ctx is done.
func (g *Registry) Janitor(ctx context.Context, linger time.Duration) {
	ticker := time.NewTicker(linger)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.sweep(now, linger)
		}
	}
}

func (g *Registry) sweep(now time.Time, linger time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.rooms {
		r.Lock()
		expired := r.Status == StatusFinished && now.Sub(r.FinishedAt) >= linger
		r.Unlock()
		if expired {
			g.removeLocked(r)
		}
	}
}
