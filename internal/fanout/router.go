// Package fanout routes session events to the right set of live
// connections, both within this process (local map) and across
// processes (Redis pub/sub), per spec.md §4.C's four channel classes:
// state, controller, bigscreen, participants (broadcast) and
// participant:<id> (targeted). Strict ordering is only guaranteed
// within a single channel, never across channels.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

type sessionSub struct {
	cancel  context.CancelFunc
	pubsub  *redis.PubSub
	members map[string]string // connectionID -> participant channel subscribed, "" if not participant-specific
}

// Router tracks local connections per session and mirrors every publish
// through Redis so other server instances' connections receive it too.
type Router struct {
	rdb *redis.Client
	log *zap.Logger

	mu          sync.RWMutex
	connections map[string]map[string]*Connection // sessionID -> connectionID -> conn

	subMu sync.Mutex
	subs  map[string]*sessionSub // sessionID -> subscription state
}

func NewRouter(rdb *redis.Client, log *zap.Logger) *Router {
	return &Router{
		rdb:         rdb,
		log:         log,
		connections: make(map[string]map[string]*Connection),
		subs:        make(map[string]*sessionSub),
	}
}

func channelName(sessionID, class string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, class)
}

func participantChannel(sessionID, participantID string) string {
	return fmt.Sprintf("session:%s:participant:%s", sessionID, participantID)
}

// Register adds a connection to the router, starting the session's
// Redis subscription if this is the first local connection and adding a
// dedicated participant channel subscription for participant roles.
func (r *Router) Register(c *Connection) {
	r.mu.Lock()
	set, ok := r.connections[c.SessionID]
	if !ok {
		set = make(map[string]*Connection)
		r.connections[c.SessionID] = set
	}
	set[c.ID] = c
	r.mu.Unlock()

	r.ensureSubscribed(c.SessionID)

	if c.Role == RoleParticipant && c.ParticipantID != "" {
		r.subMu.Lock()
		sub := r.subs[c.SessionID]
		if sub != nil {
			sub.pubsub.Subscribe(context.Background(), participantChannel(c.SessionID, c.ParticipantID))
			sub.members[c.ID] = c.ParticipantID
		}
		r.subMu.Unlock()
	}
}

// Unregister removes a connection, tearing down the session's
// subscription once no local connections remain.
func (r *Router) Unregister(c *Connection) {
	r.mu.Lock()
	set, ok := r.connections[c.SessionID]
	empty := false
	if ok {
		delete(set, c.ID)
		close(c.Send)
		empty = len(set) == 0
		if empty {
			delete(r.connections, c.SessionID)
		}
	}
	r.mu.Unlock()

	r.subMu.Lock()
	if sub, ok := r.subs[c.SessionID]; ok {
		if pid, tracked := sub.members[c.ID]; tracked {
			sub.pubsub.Unsubscribe(context.Background(), participantChannel(c.SessionID, pid))
			delete(sub.members, c.ID)
		}
		if empty {
			sub.cancel()
			delete(r.subs, c.SessionID)
		}
	}
	r.subMu.Unlock()
}

func (r *Router) ensureSubscribed(sessionID string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subs[sessionID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	classes := []string{"state", "controller", "bigscreen", "participants"}
	pubsub := r.rdb.Subscribe(ctx, classesToChannels(sessionID, classes)...)

	sub := &sessionSub{cancel: cancel, pubsub: pubsub, members: make(map[string]string)}
	r.subs[sessionID] = sub

	go r.consumeSubscription(ctx, pubsub, sessionID)
}

func classesToChannels(sessionID string, classes []string) []string {
	out := make([]string, len(classes))
	for i, cl := range classes {
		out[i] = channelName(sessionID, cl)
	}
	return out
}

func (r *Router) consumeSubscription(ctx context.Context, pubsub *redis.PubSub, sessionID string) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliverLocal(sessionID, msg.Channel, []byte(msg.Payload))
		}
	}
}

// deliverLocal fans a raw published payload out to this process's
// matching local connections.
func (r *Router) deliverLocal(sessionID, channel string, payload []byte) {
	r.mu.RLock()
	set := r.connections[sessionID]
	conns := make([]*Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	isTargeted := hasParticipantPrefix(channel, sessionID)
	var targetParticipant string
	if isTargeted {
		targetParticipant = participantIDFromChannel(channel, sessionID)
	}

	for _, c := range conns {
		switch {
		case isTargeted:
			if c.ParticipantID == targetParticipant {
				r.send(c, payload)
			}
		case channel == channelName(sessionID, "controller"):
			if c.Role == RoleController {
				r.send(c, payload)
			}
		case channel == channelName(sessionID, "bigscreen"):
			if c.Role == RoleBigScreen {
				r.send(c, payload)
			}
		case channel == channelName(sessionID, "participants"):
			if c.Role == RoleParticipant {
				r.send(c, payload)
			}
		case channel == channelName(sessionID, "state"):
			r.send(c, payload)
		}
	}
}

func (r *Router) send(c *Connection, payload []byte) {
	if trySend(c, payload) {
		r.log.Warn("dropping slow connection", zap.String("connectionId", c.ID), zap.String("sessionId", c.SessionID))
		go r.Unregister(c)
	}
}

func hasParticipantPrefix(channel, sessionID string) bool {
	prefix := fmt.Sprintf("session:%s:participant:", sessionID)
	return len(channel) > len(prefix) && channel[:len(prefix)] == prefix
}

func participantIDFromChannel(channel, sessionID string) string {
	prefix := fmt.Sprintf("session:%s:participant:", sessionID)
	return channel[len(prefix):]
}

func (r *Router) publish(ctx context.Context, channel string, event wsproto.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, channel, data).Err()
}

// PublishState sends to every connection attached to the session
// regardless of role (e.g. lobby_state, quiz_ended).
func (r *Router) PublishState(ctx context.Context, sessionID string, event wsproto.Event) error {
	return r.publish(ctx, channelName(sessionID, "state"), event)
}

// PublishController sends only to the host/controller connection.
func (r *Router) PublishController(ctx context.Context, sessionID string, event wsproto.Event) error {
	return r.publish(ctx, channelName(sessionID, "controller"), event)
}

// PublishBigScreen sends only to the projector connection.
func (r *Router) PublishBigScreen(ctx context.Context, sessionID string, event wsproto.Event) error {
	return r.publish(ctx, channelName(sessionID, "bigscreen"), event)
}

// PublishParticipants broadcasts to every participant connection (not
// controller/bigscreen). Per-recipient payload differences (e.g.
// shuffled options) are not possible on this channel by design — use
// PublishParticipant for anything that must vary per recipient.
func (r *Router) PublishParticipants(ctx context.Context, sessionID string, event wsproto.Event) error {
	return r.publish(ctx, channelName(sessionID, "participants"), event)
}

// PublishParticipant sends to exactly one participant's channel,
// necessary for per-participant-shuffled question payloads and private
// acks (answer_accepted, answer_rejected).
func (r *Router) PublishParticipant(ctx context.Context, sessionID, participantID string, event wsproto.Event) error {
	return r.publish(ctx, participantChannel(sessionID, participantID), event)
}

// BroadcastToSession publishes identically to state, controller,
// bigscreen and participants (four deliveries; intentional, per
// spec.md §4.C, to permit selective subscription per role).
func (r *Router) BroadcastToSession(ctx context.Context, sessionID string, event wsproto.Event) error {
	var firstErr error
	for _, class := range []string{"state", "controller", "bigscreen", "participants"} {
		if err := r.publish(ctx, channelName(sessionID, class), event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CloseParticipant force-closes any locally-registered connection for a
// participant (kick/ban). Connections that other server instances hold
// for the same participant are not closed by this call, since Router has
// no cross-process connection registry.
func (r *Router) CloseParticipant(sessionID, participantID string) {
	r.mu.RLock()
	var target *Connection
	for _, c := range r.connections[sessionID] {
		if c.Role == RoleParticipant && c.ParticipantID == participantID {
			target = c
			break
		}
	}
	r.mu.RUnlock()

	if target != nil {
		target.Close()
		r.Unregister(target)
	}
}

// ConnectionCount returns the number of locally-registered connections
// for a session, used by the metrics broadcaster's activeConnections gauge.
func (r *Router) ConnectionCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[sessionID])
}

// AverageLatencyMs returns the mean of the most recent ping/pong round
// trip across a session's locally-registered connections, or 0 if none
// have completed a round trip yet.
func (r *Router) AverageLatencyMs(sessionID string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.connections[sessionID]
	if len(conns) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, c := range conns {
		if l := c.LatencyMs(); l > 0 {
			sum += l
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
