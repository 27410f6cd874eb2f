package room

import (
	"sync"
	"time"

	"github.com/tmhk-chat/game-server-go/internal/game"
)

// Status is the room lifecycle state. Transitions are strictly
// Waiting -> Playing -> Finished.
type Status int

const (
	StatusWaiting Status = iota
	StatusPlaying
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Participant is one seat holder, human or automated stand-in.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Automated bool   `json:"is_cpu"`
}

// Room is an ephemeral game session. All mutation happens with the room lock
// held; the dispatcher holds it for the whole validate/apply/broadcast cycle
// of each action so no interleaved partial state is ever observable.
type Room struct {
	mu sync.Mutex

	ID         string
	Kind       game.Kind
	HostID     string
	MaxSeats   int
	Seats      []Participant
	Status     Status
	CreatedAt  time.Time
	FinishedAt time.Time

	// Game is the live engine; nil until the room transitions to Playing.
	Game game.Engine
}

// Lock acquires the per-room mutex.
func (r *Room) Lock() { r.mu.Lock() }

// Unlock releases the per-room mutex.
func (r *Room) Unlock() { r.mu.Unlock() }

// IsHost reports whether id holds the host's privileged role.
func (r *Room) IsHost(id string) bool {
	return id == r.HostID
}

// Seated reports whether id occupies a seat.
func (r *Room) Seated(id string) bool {
	for _, p := range r.Seats {
		if p.ID == id {
			return true
		}
	}
	return false
}

// GameSeats converts the seat list to the engine's seat representation.
func (r *Room) GameSeats() []game.Seat {
	seats := make([]game.Seat, len(r.Seats))
	for i, p := range r.Seats {
		seats[i] = game.Seat{ID: p.ID, Name: p.Name, Automated: p.Automated}
	}
	return seats
}

// SetPlaying installs the engine and advances the lifecycle. Call with the
// room locked and Status == StatusWaiting.
func (r *Room) SetPlaying(eng game.Engine) {
	r.Game = eng
	r.Status = StatusPlaying
}

// SetFinished advances the lifecycle to its terminal state. Call with the
// room locked.
func (r *Room) SetFinished(now time.Time) {
	r.Status = StatusFinished
	r.FinishedAt = now
}

// Members returns the seat list for membership broadcasts.
func (r *Room) Members() []Participant {
	return append([]Participant(nil), r.Seats...)
}
