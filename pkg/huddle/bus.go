// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/huddled/pkg/model"
)

const publishTimeout = 2 * time.Second

// A Bus carries messages between huddled instances,
// so clients connected to different instances can share rooms.
// Every instance keeps its own clients and rooms;
// an Envelope names its audience, and each receiving instance delivers it to the matching local clients.
type Bus interface {
	// Publish sends an envelope to every instance, including the sender.
	Publish(ctx context.Context, env Envelope) error
	// Subscribe calls fn for each envelope until ctx is done.
	Subscribe(ctx context.Context, fn func(Envelope)) error
	Close() error
}

// Audience selects the clients an Envelope is for.
// Exactly one of Target, Room, or All is set.
type Audience struct {
	Target  ConnectionID `json:"target,omitempty"`
	Room    string       `json:"room,omitempty"`
	All     bool         `json:"all,omitempty"`
	Exclude ConnectionID `json:"exclude,omitempty"`
}

// An Envelope is an encoded client message, addressed to an audience.
type Envelope struct {
	Origin   string          `json:"origin"`
	Audience Audience        `json:"audience"`
	Type     string          `json:"type"`
	Body     json.RawMessage `json:"body"`
}

// Health reports whether the bus can reach other instances.
// It is nil without a bus, or if the bus has no way to check.
func (h *Huddle) Health(ctx context.Context) error {
	checker, ok := h.bus.(interface {
		Health(context.Context) error
	})
	if !ok {
		return nil
	}
	return errors.Wrap(checker.Health(ctx), "Bus health")
}

// InstanceID returns the ID this instance uses on the bus.
func (h *Huddle) InstanceID() string {
	return h.instanceID
}

// Run receives envelopes from other instances, and delivers them to local clients, until ctx is done.
// Without a bus, Run just waits for ctx.
func (h *Huddle) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}

	h.log.WithFields(logrus.Fields{
		"instance": h.instanceID,
	}).Info("Subscribing to bus")
	if err := h.bus.Subscribe(ctx, h.receive); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "Subscribe to bus")
	}
	return nil
}

// newEnvelope encodes msg for other instances.
// It returns nil if there is no bus.
func (h *Huddle) newEnvelope(msg model.Message, aud Audience) *Envelope {
	if h.bus == nil {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"type":  msg.Message(),
			"error": err,
		}).Error("Cannot encode message for bus")
		return nil
	}
	return &Envelope{
		Origin:   h.instanceID,
		Audience: aud,
		Type:     msg.Message(),
		Body:     body,
	}
}

// publish hands env to the bus, if there is one.
// It reports whether the envelope was published.
func (h *Huddle) publish(env *Envelope) bool {
	if env == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.bus.Publish(ctx, *env); err != nil {
		h.log.WithFields(logrus.Fields{
			"type":  env.Type,
			"error": err,
		}).Warn("Cannot publish to bus")
		return false
	}
	return true
}

// receive delivers an envelope from another instance to the local clients in its audience.
func (h *Huddle) receive(env Envelope) {
	if env.Origin == h.instanceID {
		return
	}

	msg := model.RawMessage{Type: env.Type, Body: env.Body}
	aud := env.Audience

	h.mtx.RLock()
	var ids []ConnectionID
	switch {
	case aud.Target != "":
		if h.registry.exists(aud.Target) {
			ids = []ConnectionID{aud.Target}
		}
	case aud.Room != "":
		ids = h.directory.members(aud.Room, aud.Exclude)
	case aud.All:
		ids = h.registry.ids(aud.Exclude)
	}
	full := h.deliver(msg, ids)
	h.mtx.RUnlock()

	h.evict(full)
}
