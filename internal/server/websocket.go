package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tmhk-chat/game-server-go/internal/dispatch"
	"github.com/tmhk-chat/game-server-go/internal/game"
	"github.com/tmhk-chat/game-server-go/internal/presence"
	"github.com/tmhk-chat/game-server-go/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
	sendBufferSize = 256
)

// envelope is the inbound wire frame.
type envelope struct {
	Type   string          `json:"type"`
	RoomID string          `json:"room_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// outbound is the event frame pushed to clients.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Gateway upgrades chat clients to websocket connections and translates wire
// frames into dispatcher calls.
type Gateway struct {
	dispatcher *dispatch.Dispatcher
	presence   *presence.Registry
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewGateway creates the websocket gateway.
func NewGateway(d *dispatch.Dispatcher, pres *presence.Registry, logger *zap.Logger) *Gateway {
	return &Gateway{
		dispatcher: d,
		presence:   pres,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The chat app fronts this behind its own session auth.
				return true
			},
		},
	}
}

// Handler returns the gateway's HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run serves until ctx is cancelled, then drains connections.
func (g *Gateway) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: g.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("websocket gateway listening", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// client is one connected participant. Its buffered send channel decouples
// room broadcasts from the socket; a full buffer drops the frame rather than
// stalling a room.
type client struct {
	id     string
	name   string
	conn   *websocket.Conn
	send   chan outbound
	logger *zap.Logger
}

// Send implements presence.Channel.
func (c *client) Send(event string, data any) error {
	select {
	case c.send <- outbound{Event: event, Data: data}:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participant_id")
	name := r.URL.Query().Get("name")
	if participantID == "" {
		http.Error(w, "participant_id required", http.StatusBadRequest)
		return
	}
	if name == "" {
		name = participantID
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:     participantID,
		name:   name,
		conn:   conn,
		send:   make(chan outbound, sendBufferSize),
		logger: g.logger.With(zap.String("participant_id", participantID)),
	}

	g.presence.Connect(participantID, c)
	c.logger.Info("participant connected")

	go c.writePump()
	go g.readPump(c)
}

func (g *Gateway) readPump(c *client) {
	// The send channel is never closed: a broadcast may hold a reference to
	// this client past disconnect, and writePump exits on the failed ping.
	defer func() {
		g.presence.Disconnect(c.id)
		c.conn.Close()
		c.logger.Info("participant disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", zap.Error(err))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.rejectLocal("", "INVALID_ACTION", "malformed frame")
			continue
		}
		g.route(c, env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// route maps one inbound frame to its dispatcher call. Dispatcher errors are
// already answered as rejections over the presence channel, so they are only
// logged here.
func (g *Gateway) route(c *client, env envelope) {
	var err error

	switch env.Type {
	case "create_room":
		var req struct {
			GameKind string `json:"game_kind"`
			MaxSeats int    `json:"max_seats"`
			AutoFill bool   `json:"auto_fill"`
		}
		if !c.decode(env.Data, &req) {
			return
		}
		kind, parseErr := game.ParseKind(req.GameKind)
		if parseErr != nil {
			c.rejectLocal("", "INVALID_CONFIGURATION", parseErr.Error())
			return
		}
		_, err = g.dispatcher.CreateRoom(room.Participant{ID: c.id, Name: c.name}, kind, req.MaxSeats, req.AutoFill)

	case "join_room":
		err = g.dispatcher.JoinRoom(env.RoomID, room.Participant{ID: c.id, Name: c.name})

	case "leave_room":
		err = g.dispatcher.LeaveRoom(env.RoomID, c.id)

	case "start_game":
		err = g.dispatcher.StartGame(c.id, env.RoomID)

	case "list_rooms":
		g.dispatcher.ListRooms(c.id)

	case "set_status":
		var req struct {
			Status string `json:"status"`
		}
		if !c.decode(env.Data, &req) {
			return
		}
		err = g.dispatcher.SetStatus(c.id, req.Status)

	case "generate_questions":
		var req struct {
			Theme string `json:"theme"`
			Count int    `json:"count"`
		}
		if !c.decode(env.Data, &req) {
			return
		}
		err = g.dispatcher.GenerateQuestions(c.id, env.RoomID, req.Theme, req.Count)

	default:
		act, ok := c.decodeAction(env)
		if !ok {
			return
		}
		err = g.dispatcher.HandleAction(c.id, env.RoomID, act)
	}

	if err != nil {
		c.logger.Debug("frame rejected",
			zap.String("type", env.Type),
			zap.String("room_id", env.RoomID),
			zap.Error(err),
		)
	}
}

// decodeAction translates game-action frames into the engine's action types.
func (c *client) decodeAction(env envelope) (game.Action, bool) {
	switch env.Type {
	case "play_card":
		var req struct {
			Card game.Card `json:"card"`
		}
		if !c.decode(env.Data, &req) {
			return nil, false
		}
		return game.PlayCard{Card: req.Card}, true

	case "pass_turn":
		return game.PassTurn{}, true

	case "draw_card":
		var req struct {
			TargetID string `json:"target_id"`
		}
		if !c.decode(env.Data, &req) {
			return nil, false
		}
		return game.DrawCard{TargetID: req.TargetID}, true

	case "submit_word":
		var req struct {
			Word string `json:"word"`
		}
		if !c.decode(env.Data, &req) {
			return nil, false
		}
		return game.SubmitWord{Word: req.Word}, true

	case "submit_choice":
		var req struct {
			Choice string `json:"choice"`
		}
		if !c.decode(env.Data, &req) {
			return nil, false
		}
		return game.SubmitChoice{Choice: req.Choice}, true

	case "submit_answer":
		var req struct {
			Option int `json:"option"`
		}
		if !c.decode(env.Data, &req) {
			return nil, false
		}
		return game.SubmitAnswer{Option: req.Option}, true

	case "set_questions":
		var req struct {
			Questions []game.Question `json:"questions"`
		}
		if !c.decode(env.Data, &req) {
			return nil, false
		}
		return game.SetQuestions{Questions: req.Questions}, true

	case "configure_labels":
		var req struct {
			Labels []string `json:"labels"`
		}
		if !c.decode(env.Data, &req) {
			return nil, false
		}
		return game.ConfigureLabels{Labels: req.Labels}, true

	case "trigger_lottery":
		return game.TriggerLottery{}, true

	case "skip_turn":
		return game.SkipTurn{}, true

	default:
		c.rejectLocal(env.RoomID, "INVALID_ACTION", "unknown frame type "+env.Type)
		return nil, false
	}
}

func (c *client) decode(raw json.RawMessage, into any) bool {
	if len(raw) == 0 {
		c.rejectLocal("", "INVALID_ACTION", "missing frame data")
		return false
	}
	if err := json.Unmarshal(raw, into); err != nil {
		c.rejectLocal("", "INVALID_ACTION", "malformed frame data")
		return false
	}
	return true
}

// rejectLocal answers wire-level faults that never reach the dispatcher.
func (c *client) rejectLocal(roomID, code, message string) {
	data := map[string]any{
		"code":    code,
		"message": message,
	}
	if roomID != "" {
		data["room_id"] = roomID
	}
	c.Send("rejected", data)
}
