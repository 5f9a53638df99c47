// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import "time"

// Stats contains statistics about a running instance of huddled.
type Stats struct {
	InstanceID      string        `json:"instance_id"`
	BroadcastScope  string        `json:"broadcast_scope"`
	Uptime          time.Duration `json:"uptime"`
	NumRooms        int           `json:"num_rooms"`
	MaxRooms        int           `json:"max_rooms"`
	MaxRoomsAt      time.Time     `json:"max_rooms_at"`
	NumClients      int           `json:"num_clients"`
	MaxClients      int           `json:"max_clients"`
	MaxClientsAt    time.Time     `json:"max_clients_at"`
	ActiveGestures  int           `json:"active_gestures"`
	SignalsRelayed  uint64        `json:"signals_relayed"`
	SignalsDropped  uint64        `json:"signals_dropped"`
	GesturesRelayed uint64        `json:"gestures_relayed"`
}

// Stats gets stats about the running instance of huddled.
func (h *Huddle) Stats() Stats {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	var activeGestures int
	for _, c := range h.registry.clients {
		if c.gesture != "" {
			activeGestures++
		}
	}

	return Stats{
		InstanceID:      h.instanceID,
		BroadcastScope:  h.scope.String(),
		Uptime:          time.Since(h.startedAt),
		NumRooms:        h.directory.len(),
		MaxRooms:        h.directory.maxRooms,
		MaxRoomsAt:      h.directory.maxRoomsTime,
		NumClients:      h.registry.len(),
		MaxClients:      h.registry.maxClients,
		MaxClientsAt:    h.registry.maxClientsTime,
		ActiveGestures:  activeGestures,
		SignalsRelayed:  h.signalsRelayed.Load(),
		SignalsDropped:  h.signalsDropped.Load(),
		GesturesRelayed: h.gesturesRelayed.Load(),
	}
}
