package presence

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Status is a participant's coarse availability.
type Status string

const (
	StatusOnline    Status = "online"
	StatusAway      Status = "away"
	StatusBusy      Status = "busy"
	StatusInvisible Status = "invisible"
)

// ParseStatus validates a wire status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOnline, StatusAway, StatusBusy, StatusInvisible:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Channel is the outbound push connection for a single participant.
type Channel interface {
	Send(event string, data any) error
}

type entry struct {
	ch     Channel
	status Status
}

// Registry maps connected participants to their active channel and status.
// Updates are linearized per participant by the registry lock.
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty presence registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Connect registers the channel for a participant, replacing any previous
// connection. Status resets to online.
func (r *Registry) Connect(participantID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[participantID] = &entry{ch: ch, status: StatusOnline}

	r.logger.Debug("participant connected",
		zap.String("participant_id", participantID),
	)
}

// Disconnect removes the participant's channel. Room membership is not
// affected; a disconnected participant keeps its seat.
func (r *Registry) Disconnect(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, participantID)

	r.logger.Debug("participant disconnected",
		zap.String("participant_id", participantID),
	)
}

// SetStatus updates a connected participant's status.
func (r *Registry) SetStatus(participantID string, st Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[participantID]
	if !ok {
		return fmt.Errorf("participant %s not connected", participantID)
	}
	e.status = st
	return nil
}

// StatusOf returns the participant's status, or invisible when disconnected.
func (r *Registry) StatusOf(participantID string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[participantID]; ok {
		return e.status
	}
	return StatusInvisible
}

// Channel returns the participant's channel if connected.
func (r *Registry) Channel(participantID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[participantID]
	if !ok {
		return nil, false
	}
	return e.ch, true
}

// Connected reports whether the participant currently has a channel.
func (r *Registry) Connected(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[participantID]
	return ok
}
