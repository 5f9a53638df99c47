// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import (
	"strings"

	"github.com/pkg/errors"
)

// Scope selects who hears presence and gesture broadcasts.
type Scope int

const (
	// ScopeRoom limits broadcasts to the members of the sender's room.
	ScopeRoom Scope = iota
	// ScopeGlobal sends broadcasts to every connected client, whatever room they are in.
	// This suits a server hosting a single room.
	ScopeGlobal
)

// ParseScope parses "room" or "global".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "room":
		return ScopeRoom, nil
	case "global":
		return ScopeGlobal, nil
	}
	return ScopeRoom, errors.Errorf("unknown broadcast scope %q", s)
}

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "room"
}
