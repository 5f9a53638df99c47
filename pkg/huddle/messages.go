// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package huddle

import (
	"encoding/json"

	"github.com/n0ot/huddled/pkg/model"
)

// Types of messages sent to clients.
const (
	TypeConnected        = "connected"
	TypeJoinedRoom       = "joined-room"
	TypeSignal           = "signal"
	TypePeerDisconnected = "peer-disconnected"
	TypeGesture          = "gesture"
	TypeClearGesture     = "clear_gesture"
)

// ConnectedMessage tells a client its own ID.
type ConnectedMessage struct {
	model.DefaultMessage
	ID   ConnectionID `json:"id"`
	MOTD string       `json:"motd,omitempty"`
}

func newConnectedMessage(id ConnectionID, motd string) ConnectedMessage {
	return ConnectedMessage{
		DefaultMessage: model.DefaultMessage{Type: TypeConnected},
		ID:             id,
		MOTD:           motd,
	}
}

// JoinedRoomMessage is sent to existing members of a room when a new client joins.
// Receivers are expected to start a handshake with PeerID.
type JoinedRoomMessage struct {
	model.DefaultMessage
	PeerID ConnectionID `json:"peerId"`
}

func newJoinedRoomMessage(peerID ConnectionID) JoinedRoomMessage {
	return JoinedRoomMessage{
		DefaultMessage: model.DefaultMessage{Type: TypeJoinedRoom},
		PeerID:         peerID,
	}
}

// SignalMessage carries a handshake payload.
// PeerID is the sender, so the receiver knows whom to answer.
type SignalMessage struct {
	model.DefaultMessage
	PeerID ConnectionID    `json:"peerId"`
	Data   json.RawMessage `json:"data"`
}

func newSignalMessage(from ConnectionID, data json.RawMessage) SignalMessage {
	return SignalMessage{
		DefaultMessage: model.DefaultMessage{Type: TypeSignal},
		PeerID:         from,
		Data:           data,
	}
}

// PeerDisconnectedMessage is sent when a peer's session ends, or when it moves to another room.
type PeerDisconnectedMessage struct {
	model.DefaultMessage
	PeerID ConnectionID `json:"peerId"`
	Reason string       `json:"reason,omitempty"`
}

func newPeerDisconnectedMessage(peerID ConnectionID, reason string) PeerDisconnectedMessage {
	return PeerDisconnectedMessage{
		DefaultMessage: model.DefaultMessage{Type: TypePeerDisconnected},
		PeerID:         peerID,
		Reason:         reason,
	}
}

// GestureMessage is sent when a peer raises a gesture.
type GestureMessage struct {
	model.DefaultMessage
	PeerID  ConnectionID `json:"peerId"`
	Gesture string       `json:"gesture"`
}

func newGestureMessage(peerID ConnectionID, label string) GestureMessage {
	return GestureMessage{
		DefaultMessage: model.DefaultMessage{Type: TypeGesture},
		PeerID:         peerID,
		Gesture:        label,
	}
}

// ClearGestureMessage is sent when a peer's gesture is cleared.
type ClearGestureMessage struct {
	model.DefaultMessage
	PeerID ConnectionID `json:"peerId"`
}

func newClearGestureMessage(peerID ConnectionID) ClearGestureMessage {
	return ClearGestureMessage{
		DefaultMessage: model.DefaultMessage{Type: TypeClearGesture},
		PeerID:         peerID,
	}
}
