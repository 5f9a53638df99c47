// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package model contains the messages passed between huddled and its clients.
package model

import "encoding/json"

// A Message is sent to and from clients.
// All Messages should wrap DefaultMessage, so they have a Type field which marshals to json as "type."
// This interface allows generic messages to be passed.
type Message interface {
	Message() string
}

// DefaultMessage implements Message, and has a type.
type DefaultMessage struct {
	Type string `json:"type"`
}

// Message gets the type of a DefaultMessage.
// This ensures that DefaultMessage implements the Message interface.
func (msg DefaultMessage) Message() string {
	return msg.Type
}

// An ErrorMessage is sent to clients when an error has occured.
type ErrorMessage struct {
	DefaultMessage
	Error string `json:"error"`
}

// NewErrorMessage creates an error message with the specified reason.
func NewErrorMessage(reason string) ErrorMessage {
	return ErrorMessage{
		DefaultMessage: DefaultMessage{"error"},
		Error:          reason,
	}
}

// RawMessage is a message that was already encoded, usually by another huddled instance.
// It is written to clients as is.
type RawMessage struct {
	Type string
	Body json.RawMessage
}

// Message gets the type of a RawMessage.
func (msg RawMessage) Message() string {
	return msg.Type
}

// MarshalJSON returns the encoded body.
func (msg RawMessage) MarshalJSON() ([]byte, error) {
	if len(msg.Body) == 0 {
		return []byte("null"), nil
	}
	return msg.Body, nil
}
