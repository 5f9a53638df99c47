// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import (
	"github.com/n0ot/huddled/pkg/model"
)

// Gesture tells the sender's audience that the sender raised a gesture.
// The label is not interpreted; it stays attributed to the sender until it is cleared or replaced.
func (h *Huddle) Gesture(from ConnectionID, label string) error {
	if label == "" {
		return ErrEmptyGesture
	}
	return h.setGesture(from, label, newGestureMessage(from, label))
}

// ClearGesture tells the sender's audience that the sender's gesture is gone.
// It is broadcast even if no gesture was active.
func (h *Huddle) ClearGesture(from ConnectionID) error {
	return h.setGesture(from, "", newClearGestureMessage(from))
}

// ActiveGesture returns the label currently attributed to a client.
func (h *Huddle) ActiveGesture(id ConnectionID) (string, bool) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	c, ok := h.registry.get(id)
	if !ok || c.gesture == "" {
		return "", false
	}
	return c.gesture, true
}

func (h *Huddle) setGesture(from ConnectionID, label string, msg model.Message) error {
	h.mtx.Lock()
	c, ok := h.registry.get(from)
	if !ok {
		h.mtx.Unlock()
		return ErrUnknownConnection
	}
	c.gesture = label

	audience, aud, ok := h.audienceOf(from)
	var full []ConnectionID
	var env *Envelope
	if ok {
		full = h.deliver(msg, audience)
		env = h.newEnvelope(msg, aud)
	}
	h.mtx.Unlock()

	h.gesturesRelayed.Add(1)
	h.publish(env)
	h.evict(full)
	return nil
}

// audienceOf returns who hears a broadcast from id: its local audience,
// and the audience for other instances.
// ok is false if nobody should hear it, because id is in no room and broadcasts are room scoped.
// The caller must hold mtx.
func (h *Huddle) audienceOf(id ConnectionID) ([]ConnectionID, Audience, bool) {
	if h.scope == ScopeGlobal {
		return h.registry.ids(id), Audience{All: true, Exclude: id}, true
	}
	name, ok := h.directory.roomOf(id)
	if !ok {
		return nil, Audience{}, false
	}
	return h.directory.members(name, id), Audience{Room: name, Exclude: id}, true
}
