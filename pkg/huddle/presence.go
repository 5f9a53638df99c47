// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import (
	"github.com/sirupsen/logrus"
)

// JoinRoom adds a client to the named room, creating the room if it doesn't already exist.
// Members already in the room are sent a joined-room message naming the newcomer,
// and are expected to start a handshake with it; the newcomer is not told who is there.
// The members that were in the room before the join are returned, in join order.
//
// Joining the room the client is already in changes nothing, and notifies nobody.
// If the client is in another room, it leaves that room first,
// and that room's members are sent a peer-disconnected message.
//
// When a bus is configured, only members connected to this instance are returned,
// but members on other instances are notified too.
func (h *Huddle) JoinRoom(id ConnectionID, name string) ([]ConnectionID, error) {
	if name == "" {
		return nil, ErrEmptyRoomName
	}

	h.mtx.Lock()
	if !h.registry.exists(id) {
		h.mtx.Unlock()
		return nil, ErrUnknownConnection
	}

	var full []ConnectionID
	var envs []*Envelope
	previous, inRoom := h.directory.roomOf(id)
	if inRoom && previous != name {
		_, remaining, _ := h.directory.leave(id)
		msg := newPeerDisconnectedMessage(id, "Client switched rooms")
		full = append(full, h.deliver(msg, remaining)...)
		envs = append(envs, h.newEnvelope(msg, Audience{Room: previous, Exclude: id}))
	}

	prior, joined := h.directory.join(name, id)
	if joined {
		msg := newJoinedRoomMessage(id)
		full = append(full, h.deliver(msg, prior)...)
		envs = append(envs, h.newEnvelope(msg, Audience{Room: name, Exclude: id}))
	}
	h.mtx.Unlock()

	if joined {
		h.log.WithFields(logrus.Fields{
			"client":   id,
			"room":     name,
			"previous": previous,
			"peers":    len(prior),
		}).Debug("Client joined room")
	}
	for _, env := range envs {
		h.publish(env)
	}
	h.evict(full)
	return prior, nil
}
