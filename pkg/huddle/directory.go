// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import "time"

// A room groups the clients that want to become one peer mesh.
// Members are kept in join order.
type room struct {
	name    string
	members []ConnectionID
}

func (r *room) others(id ConnectionID) []ConnectionID {
	others := make([]ConnectionID, 0, len(r.members))
	for _, member := range r.members {
		if member != id {
			others = append(others, member)
		}
	}
	return others
}

// directory maps room names to their members, and members back to their room.
// It holds IDs only; the registry owns the clients.
// It is not safe for concurrent use; Huddle guards it.
type directory struct {
	rooms        map[string]*room
	memberOf     map[ConnectionID]string
	maxRooms     int
	maxRoomsTime time.Time
}

func newDirectory() *directory {
	return &directory{
		rooms:        make(map[string]*room),
		memberOf:     make(map[ConnectionID]string),
		maxRoomsTime: time.Now(),
	}
}

// join adds id to the named room, creating it if needed.
// prior holds the members that were already there, in join order.
// If id was already a member, joined is false and nothing changes.
// The caller must have removed id from any other room first.
func (d *directory) join(name string, id ConnectionID) (prior []ConnectionID, joined bool) {
	r, ok := d.rooms[name]
	if !ok {
		r = &room{
			name: name,
			// Assume a new room is being made because at least one client wants to join it.
			members: make([]ConnectionID, 0, 1),
		}
		d.rooms[name] = r
		if len(d.rooms) > d.maxRooms {
			d.maxRooms = len(d.rooms)
			d.maxRoomsTime = time.Now()
		}
	}

	if d.memberOf[id] == name {
		return r.others(id), false
	}

	prior = r.others(id)
	r.members = append(r.members, id)
	d.memberOf[id] = name
	return prior, true
}

// leave removes id from its room, deleting the room if nobody is left.
// ok is false if id was not in a room.
func (d *directory) leave(id ConnectionID) (name string, remaining []ConnectionID, ok bool) {
	name, ok = d.memberOf[id]
	if !ok {
		return "", nil, false
	}
	delete(d.memberOf, id)

	r := d.rooms[name]
	for i := 0; i < len(r.members); i++ {
		if r.members[i] == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if len(r.members) == 0 {
		delete(d.rooms, name)
	}
	return name, r.others(id), true
}

// roomOf returns the name of the room id belongs to.
func (d *directory) roomOf(id ConnectionID) (string, bool) {
	name, ok := d.memberOf[id]
	return name, ok
}

// members lists the named room's members in join order, except exclude.
func (d *directory) members(name string, exclude ConnectionID) []ConnectionID {
	r, ok := d.rooms[name]
	if !ok {
		return nil
	}
	return r.others(exclude)
}

func (d *directory) len() int {
	return len(d.rooms)
}
