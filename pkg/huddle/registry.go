// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import (
	"time"

	"github.com/google/uuid"

	"github.com/n0ot/huddled/pkg/model"
)

// A ConnectionID identifies one live client session.
// IDs are random, so they are never reused while a client is registered.
type ConnectionID string

func newConnectionID() ConnectionID {
	return ConnectionID(uuid.Must(uuid.NewRandom()).String())
}

// A Client identifies a consumer of the huddle service.
type Client struct {
	ID             ConnectionID         `json:"id"`
	Send           chan<- model.Message `json:"-"`
	ConnectedSince time.Time            `json:"connected_since"`
	gesture        string               // Active gesture label, empty when cleared
}

// registry owns every registered client.
// It is not safe for concurrent use; Huddle guards it.
type registry struct {
	clients        map[ConnectionID]*Client
	maxClients     int
	maxClientsTime time.Time
}

func newRegistry() *registry {
	return &registry{
		clients:        make(map[ConnectionID]*Client),
		maxClientsTime: time.Now(),
	}
}

// add stores c, replacing nothing; callers allocate unique IDs.
func (r *registry) add(c *Client) {
	r.clients[c.ID] = c
	if len(r.clients) > r.maxClients {
		r.maxClients = len(r.clients)
		r.maxClientsTime = time.Now()
	}
}

// remove deletes the client with the given ID.
// ok is false if no such client was registered.
func (r *registry) remove(id ConnectionID) (c *Client, ok bool) {
	c, ok = r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	return c, ok
}

func (r *registry) get(id ConnectionID) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

func (r *registry) exists(id ConnectionID) bool {
	_, ok := r.clients[id]
	return ok
}

// ids lists every registered client except those in exclude.
func (r *registry) ids(exclude ConnectionID) []ConnectionID {
	ids := make([]ConnectionID, 0, len(r.clients))
	for id := range r.clients {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *registry) len() int {
	return len(r.clients)
}
