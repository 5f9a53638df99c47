// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package huddle coordinates rooms of browser clients setting up peer to peer calls.
//
// A Huddle tracks connected clients and the room each one is in,
// relays handshake payloads between clients,
// and tells clients when peers join, leave, or raise a gesture.
// It never looks at media; it only carries what clients need to connect to each other directly.
package huddle

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/huddled/pkg/model"
)

// Errors returned by Huddle operations.
var (
	ErrUnknownConnection = errors.New("connection not registered")
	ErrEmptyRoomName     = errors.New("no room specified")
	ErrEmptyGesture      = errors.New("no gesture specified")
)

// Options configures a Huddle.
type Options struct {
	// MOTD is sent to clients when they connect, if not empty.
	MOTD string

	// Scope selects who hears presence and gesture broadcasts.
	Scope Scope

	// Bus connects this instance with other huddled instances.
	// If nil, the Huddle only knows about its own clients.
	Bus Bus

	// InstanceID identifies this instance on the bus.
	// If empty, a random ID is generated.
	InstanceID string
}

// Huddle contains state for a huddled service.
type Huddle struct {
	log        *logrus.Logger
	startedAt  time.Time
	motd       string
	scope      Scope
	bus        Bus
	instanceID string

	mtx       sync.RWMutex // Protects registry and directory
	registry  *registry
	directory *directory

	signalsRelayed  atomic.Uint64
	signalsDropped  atomic.Uint64
	gesturesRelayed atomic.Uint64
}

// New creates a new huddle service.
func New(log *logrus.Logger, opts Options) *Huddle {
	instanceID := opts.InstanceID
	if instanceID == "" {
		instanceID = uuid.Must(uuid.NewRandom()).String()
	}

	return &Huddle{
		log:        log,
		startedAt:  time.Now(),
		motd:       opts.MOTD,
		scope:      opts.Scope,
		bus:        opts.Bus,
		instanceID: instanceID,
		registry:   newRegistry(),
		directory:  newDirectory(),
	}
}

// Register adds a client to the huddle, and returns its new ID.
// Messages for the client will be sent on send, which is never blocked on;
// if it is full, the client is unregistered.
// send will be closed when the client is unregistered.
// The client is first sent a connected message containing its ID.
func (h *Huddle) Register(send chan<- model.Message) ConnectionID {
	c := &Client{
		ID:             newConnectionID(),
		Send:           send,
		ConnectedSince: time.Now(),
	}

	h.mtx.Lock()
	h.registry.add(c)
	full := h.deliver(newConnectedMessage(c.ID, h.motd), []ConnectionID{c.ID})
	h.mtx.Unlock()
	h.evict(full)

	h.log.WithFields(logrus.Fields{
		"client": c.ID,
	}).Debug("Client registered")
	return c.ID
}

// Exists reports whether id belongs to a registered client.
func (h *Huddle) Exists(id ConnectionID) bool {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return h.registry.exists(id)
}

// Unregister removes a client from the huddle, and from the room it was in.
// Everyone in the client's audience is sent a peer-disconnected message.
// Unregister is idempotent; it returns false if the client was already gone.
func (h *Huddle) Unregister(id ConnectionID, reason string) bool {
	h.mtx.Lock()
	c, ok := h.registry.get(id)
	if !ok {
		h.mtx.Unlock()
		return false
	}

	audience, aud, notify := h.audienceOf(id)
	name, _, _ := h.directory.leave(id)
	h.registry.remove(id)
	close(c.Send) // Tell the transport the huddle is done with this client.

	var full []ConnectionID
	var env *Envelope
	if notify {
		msg := newPeerDisconnectedMessage(id, reason)
		full = h.deliver(msg, audience)
		env = h.newEnvelope(msg, aud)
	}
	h.mtx.Unlock()

	h.log.WithFields(logrus.Fields{
		"client": id,
		"room":   name,
		"reason": reason,
	}).Debug("Client unregistered")
	h.publish(env)
	h.evict(full)
	return true
}

// Send sends a message to one client, such as a reply to something it sent.
// It returns false if the client is not registered.
func (h *Huddle) Send(id ConnectionID, msg model.Message) bool {
	h.mtx.RLock()
	if !h.registry.exists(id) {
		h.mtx.RUnlock()
		return false
	}
	full := h.deliver(msg, []ConnectionID{id})
	h.mtx.RUnlock()

	h.evict(full)
	return len(full) == 0
}

// Shutdown unregisters every client.
func (h *Huddle) Shutdown(reason string) {
	h.mtx.RLock()
	ids := h.registry.ids("")
	h.mtx.RUnlock()

	for _, id := range ids {
		h.Unregister(id, reason)
	}
}

// RoomOf returns the name of the room the client is in.
func (h *Huddle) RoomOf(id ConnectionID) (string, bool) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return h.directory.roomOf(id)
}

// Members lists the members of the named room in join order.
func (h *Huddle) Members(room string) []ConnectionID {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return h.directory.members(room, "")
}

// deliver sends msg to each listed client without blocking.
// IDs that are no longer registered are skipped.
// The caller must hold mtx; clients whose send buffers are full are returned, and should be evicted after mtx is released.
func (h *Huddle) deliver(msg model.Message, ids []ConnectionID) (full []ConnectionID) {
	for _, id := range ids {
		c, ok := h.registry.get(id)
		if !ok {
			continue
		}
		select {
		case c.Send <- msg:
		default:
			full = append(full, id)
		}
	}
	return full
}

// evict unregisters clients that could not keep up.
func (h *Huddle) evict(ids []ConnectionID) {
	for _, id := range ids {
		h.log.WithFields(logrus.Fields{
			"client": id,
		}).Warn("Send buffer full; dropping client")
		h.Unregister(id, "Send buffer full")
	}
}
