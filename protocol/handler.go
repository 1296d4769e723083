package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"avatarworld/avatar"
	"avatarworld/movement"
	"avatarworld/world"
)

// MaxPending bounds the messages held back while waiting for the join reply.
const MaxPending = 256

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrJoinRejected  = errors.New("join rejected")
	ErrPendingFull   = errors.New("pre-join buffer full")
)

// Sender delivers an outbound message to the server.
type Sender interface {
	Send(v any) error
}

// Counters summarize what the handler has seen.
type Counters struct {
	Handled   uint64
	Discarded uint64
	Buffered  int
}

// Handler applies server messages to the store and catalog and sends the
// local player's intents. It is not safe for concurrent use; all calls come
// from the game loop.
type Handler struct {
	store     *world.Store
	catalog   *avatar.Catalog
	predictor *movement.Predictor
	out       Sender
	log       *zap.SugaredLogger
	limiter   *rate.Limiter

	// OnChange is called after a message changed the world.
	OnChange func()

	// Now is the clock used for join timestamps.
	Now func() time.Time

	username string
	joined   bool
	joinedAt time.Time
	pending  [][]byte
	counters Counters
}

// NewHandler returns a handler that has not joined yet. predictor and out
// may be nil.
func NewHandler(store *world.Store, catalog *avatar.Catalog, predictor *movement.Predictor, out Sender, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		store:     store,
		catalog:   catalog,
		predictor: predictor,
		out:       out,
		log:       log,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 5),
		Now:       time.Now,
	}
}

// SetSender attaches the outbound connection once it is established.
func (h *Handler) SetSender(out Sender) { h.out = out }

// Joined reports whether the join reply has been applied.
func (h *Handler) Joined() bool { return h.joined }

// JoinedAt returns when the join completed.
func (h *Handler) JoinedAt() time.Time { return h.joinedAt }

// Offline reports whether the client runs without a server.
func (h *Handler) Offline() bool { return h.store.Offline() }

// Counters returns the message counters.
func (h *Handler) Counters() Counters {
	c := h.counters
	c.Buffered = len(h.pending)
	return c
}

// Handle applies one raw server message. Malformed and unknown messages are
// dropped; the returned error says why and is already logged.
func (h *Handler) Handle(raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return h.discard(fmt.Errorf("decode envelope: %w", err))
	}
	if h.store.Offline() {
		return h.discard(fmt.Errorf("%s while offline", env.Action))
	}
	if env.Action != ActionJoinGame && !h.joined {
		switch env.Action {
		case ActionPlayersMoved, ActionPlayerJoined, ActionPlayerLeft:
		default:
			return h.discard(fmt.Errorf("%w %q", ErrUnknownAction, env.Action))
		}
		if len(h.pending) >= MaxPending {
			return h.discard(ErrPendingFull)
		}
		h.pending = append(h.pending, append([]byte(nil), raw...))
		return nil
	}
	return h.dispatch(env.Action, raw)
}

func (h *Handler) dispatch(action string, raw []byte) error {
	var err error
	switch action {
	case ActionJoinGame:
		err = h.handleJoin(raw)
	case ActionPlayersMoved:
		err = h.handleMoved(raw)
	case ActionPlayerJoined:
		err = h.handlePlayerJoined(raw)
	case ActionPlayerLeft:
		err = h.handlePlayerLeft(raw)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownAction, action)
	}
	if err != nil {
		return h.discard(err)
	}
	h.counters.Handled++
	return nil
}

func (h *Handler) discard(err error) error {
	h.counters.Discarded++
	if h.limiter.Allow() {
		h.log.Debugw("message discarded", "error", err)
	}
	return err
}

func (h *Handler) changed() {
	if h.OnChange != nil {
		h.OnChange()
	}
}

// handleJoin decodes the whole reply before touching any state so a bad
// reply leaves the store as it was.
func (h *Handler) handleJoin(raw []byte) error {
	var msg JoinGame
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode join_game: %w", err)
	}
	if h.joined {
		h.log.Debugw("duplicate join_game ignored", "playerId", msg.PlayerID)
		return nil
	}
	if !msg.Success {
		h.GoOffline(fmt.Sprintf("join rejected: %s", msg.Error))
		return fmt.Errorf("%w: %s", ErrJoinRejected, msg.Error)
	}
	id := string(msg.PlayerID)
	rec, ok := msg.Players[id]
	if !ok {
		h.GoOffline("join reply without local player")
		return fmt.Errorf("%w: player %q missing from reply", ErrJoinRejected, id)
	}

	local := rec.Entity(id)
	if local.Username == "" {
		local.Username = h.username
	}
	defs := make([]*avatar.Definition, 0, len(msg.Avatars))
	for name, d := range msg.Avatars {
		defs = append(defs, d.Definition(name))
	}
	remotes := make([]*world.Entity, 0, len(msg.Players))
	for key, r := range msg.Players {
		if key == id {
			continue
		}
		e := r.Entity(key)
		if e.ID == local.ID {
			continue
		}
		remotes = append(remotes, e)
	}

	for _, d := range defs {
		h.catalog.Put(d)
	}
	h.store.SetLocal(local)
	for _, e := range remotes {
		h.store.Upsert(e)
	}
	h.joined = true
	h.joinedAt = h.Now()
	h.log.Infow("joined", "playerId", local.ID, "players", len(remotes)+1, "avatars", len(defs))
	h.changed()
	h.replay()
	return nil
}

func (h *Handler) replay() {
	pending := h.pending
	h.pending = nil
	for _, raw := range pending {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.discard(err)
			continue
		}
		h.dispatch(env.Action, raw)
	}
}

func (h *Handler) handleMoved(raw []byte) error {
	var msg PlayersMoved
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode players_moved: %w", err)
	}
	changed := false
	local := h.store.Local()
	for id, p := range msg.Players {
		if local != nil && id == local.ID {
			changed = h.applyLocal(local, p) || changed
			continue
		}
		e, ok := h.store.Remote(id)
		if !ok {
			continue
		}
		applyPose(e, p)
		applyPosition(e, p)
		h.store.Clamp(e)
		changed = true
	}
	if changed {
		h.changed()
	}
	return nil
}

// applyLocal always takes the server's facing and frame for the local
// player but keeps the predicted position unless the predictor allows it.
func (h *Handler) applyLocal(e *world.Entity, p PartialPlayerRecord) bool {
	changed := applyPose(e, p)
	if p.HasPosition() && (h.predictor == nil || h.predictor.AcceptServerPosition()) {
		applyPosition(e, p)
		h.store.Clamp(e)
		changed = true
	}
	return changed
}

func applyPose(e *world.Entity, p PartialPlayerRecord) bool {
	changed := false
	if p.Facing != nil {
		if f, ok := world.ParseFacing(*p.Facing); ok {
			e.Facing = f
			changed = true
		}
	}
	if p.AnimationFrame != nil {
		e.SetFrame(*p.AnimationFrame)
		changed = true
	}
	return changed
}

func applyPosition(e *world.Entity, p PartialPlayerRecord) {
	if p.X != nil {
		e.X = *p.X
	}
	if p.Y != nil {
		e.Y = *p.Y
	}
}

func (h *Handler) handlePlayerJoined(raw []byte) error {
	var msg PlayerJoined
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode player_joined: %w", err)
	}
	e := msg.Player.Entity("")
	if e.ID == "" {
		return errors.New("player_joined without id")
	}
	if msg.Avatar != nil {
		h.catalog.Put(msg.Avatar.Definition(msg.Player.Avatar))
	}
	h.store.Upsert(e)
	h.changed()
	return nil
}

func (h *Handler) handlePlayerLeft(raw []byte) error {
	var msg PlayerLeft
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode player_left: %w", err)
	}
	if h.store.Remove(string(msg.PlayerID)) {
		h.changed()
	}
	return nil
}

// GoOffline switches to running without a server. Before join a synthetic
// local player is placed at the world centre; after join the local player
// stays where it is and the remote players are dropped. Later join replies
// are ignored.
func (h *Handler) GoOffline(reason string) {
	if h.store.Offline() {
		return
	}
	h.log.Warnw("running offline", "reason", reason)
	h.pending = nil
	if h.joined {
		h.store.Detach()
	} else {
		name := h.username
		if name == "" {
			name = "guest"
		}
		h.store.SetOffline(name, avatar.DefaultName)
	}
	h.changed()
}

// Join asks the server to add username to the world.
func (h *Handler) Join(username string) error {
	h.username = username
	return h.send(NewJoinRequest(username))
}

// Move announces a newly pressed direction.
func (h *Handler) Move(d movement.Direction) error {
	return h.send(NewMoveRequest(d))
}

// Stop announces that no direction is held.
func (h *Handler) Stop() error {
	return h.send(NewStopRequest())
}

func (h *Handler) send(v any) error {
	if h.out == nil || h.store.Offline() {
		return nil
	}
	if err := h.out.Send(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
