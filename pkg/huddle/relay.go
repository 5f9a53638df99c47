// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Signal relays a handshake payload from one client to another, whatever room they are in.
// The target receives a signal message naming the sender, with data untouched.
//
// Delivery is best effort: if the target is not connected, the payload is dropped and no error is returned.
// With a bus configured, payloads for clients this instance doesn't know are handed to the bus,
// and dropped by every instance that doesn't know the target either.
// ErrUnknownConnection is only returned if the sender itself is not registered.
func (h *Huddle) Signal(from, to ConnectionID, data json.RawMessage) error {
	msg := newSignalMessage(from, data)

	h.mtx.RLock()
	if !h.registry.exists(from) {
		h.mtx.RUnlock()
		return ErrUnknownConnection
	}

	var full []ConnectionID
	var env *Envelope
	local := h.registry.exists(to)
	if local {
		full = h.deliver(msg, []ConnectionID{to})
	} else {
		env = h.newEnvelope(msg, Audience{Target: to})
	}
	h.mtx.RUnlock()

	switch {
	case local && len(full) == 0:
		h.signalsRelayed.Add(1)
	case env != nil && h.publish(env):
		h.signalsRelayed.Add(1)
	default:
		h.signalsDropped.Add(1)
		h.log.WithFields(logrus.Fields{
			"from": from,
			"to":   to,
		}).Debug("Dropping signal for unknown client")
	}
	h.evict(full)
	return nil
}
