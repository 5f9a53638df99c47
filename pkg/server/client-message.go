// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package server

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/huddled/pkg/huddle"
	"github.com/n0ot/huddled/pkg/model"
)

// legacyThumbsUp is the gesture a thumbsUp message stands for.
const legacyThumbsUp = "Thumb_Up"

var clientMessages map[string]func() model.Message
var clientMessageHandlers map[string]clientMessageHandlerFunc

type clientMessageHandlerFunc func(*client, model.Message)

// GenericClientMessage holds a message's "type", which is included in every message sent from a client.
type GenericClientMessage struct {
	model.DefaultMessage
}

func init() {
	clientMessages = make(map[string]func() model.Message)
	clientMessageHandlers = make(map[string]clientMessageHandlerFunc)

	clientMessages["join-room"] = func() model.Message {
		return &ClientJoinRoomMessage{}
	}
	clientMessageHandlers["join-room"] = handleClientJoinRoom

	clientMessages["signal"] = func() model.Message {
		return &ClientSignalMessage{}
	}
	clientMessageHandlers["signal"] = handleClientSignal

	clientMessages["gesture"] = func() model.Message {
		return &ClientGestureMessage{}
	}
	clientMessageHandlers["gesture"] = handleClientGesture

	clientMessages["thumbsUp"] = func() model.Message {
		return &GenericClientMessage{}
	}
	clientMessageHandlers["thumbsUp"] = handleClientThumbsUp

	// Browsers have sent both spellings.
	for _, typ := range []string{"clearGesture", "clear_gesture"} {
		clientMessages[typ] = func() model.Message {
			return &GenericClientMessage{}
		}
		clientMessageHandlers[typ] = handleClientClearGesture
	}
}

// handleMessage decodes one message from the client, and passes it to its handler.
// Messages that can't be handled get an error reply; the client stays connected.
func (c *client) handleMessage(data []byte) {
	var generic GenericClientMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		c.sendError("invalid message")
		return
	}
	if generic.Type == "" {
		c.sendError("no type specified")
		return
	}

	newMSG, ok := clientMessages[generic.Type]
	if !ok {
		c.sendError("unknown message type: " + generic.Type)
		return
	}
	msg := newMSG()
	if err := json.Unmarshal(data, msg); err != nil {
		c.sendError("invalid " + generic.Type + " message")
		return
	}

	c.log.WithFields(logrus.Fields{
		"type": generic.Type,
	}).Debug("Received message")
	clientMessageHandlers[generic.Type](c, msg)
}

// handleServiceError reports errors from the huddle to the client.
// ErrUnknownConnection means the client is already being dropped, so nothing is sent.
func (c *client) handleServiceError(err error) {
	if errors.Cause(err) == huddle.ErrUnknownConnection {
		c.log.Debug("Message from unregistered client ignored")
		return
	}
	c.sendError(err.Error())
}

// ClientJoinRoomMessage is received when a client wishes to join a room.
type ClientJoinRoomMessage struct {
	GenericClientMessage
	Room string `json:"room"`
}

func handleClientJoinRoom(c *client, msg model.Message) {
	joinMSG := msg.(*ClientJoinRoomMessage)
	prior, err := c.srv.Huddle.JoinRoom(c.id, joinMSG.Room)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.log.WithFields(logrus.Fields{
		"room":  joinMSG.Room,
		"peers": len(prior),
	}).Info("Client joined room")
}

// ClientSignalMessage carries a handshake payload for another client.
type ClientSignalMessage struct {
	GenericClientMessage
	PeerID huddle.ConnectionID `json:"peerId"`
	Data   json.RawMessage     `json:"data"`
}

func handleClientSignal(c *client, msg model.Message) {
	signalMSG := msg.(*ClientSignalMessage)
	if signalMSG.PeerID == "" {
		c.sendError("no peerId specified")
		return
	}
	if len(signalMSG.Data) == 0 {
		c.sendError("no data specified")
		return
	}
	if err := c.srv.Huddle.Signal(c.id, signalMSG.PeerID, signalMSG.Data); err != nil {
		c.handleServiceError(err)
	}
}

// ClientGestureMessage is received when a client raises a gesture.
type ClientGestureMessage struct {
	GenericClientMessage
	Gesture string `json:"gesture"`
}

func handleClientGesture(c *client, msg model.Message) {
	gestureMSG := msg.(*ClientGestureMessage)
	if err := c.srv.Huddle.Gesture(c.id, gestureMSG.Gesture); err != nil {
		c.handleServiceError(err)
	}
}

func handleClientThumbsUp(c *client, msg model.Message) {
	if err := c.srv.Huddle.Gesture(c.id, legacyThumbsUp); err != nil {
		c.handleServiceError(err)
	}
}

func handleClientClearGesture(c *client, msg model.Message) {
	if err := c.srv.Huddle.ClearGesture(c.id); err != nil {
		c.handleServiceError(err)
	}
}
