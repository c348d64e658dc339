// Package hub shares a remote.Store with other processes over WebSocket.
//
// The Server exposes a store at /ws?user=<id>: each connection is one
// subscription that receives the user's document on connect and after every
// write, and may send saves that are answered with an ack. The Client
// implements remote.Store on top of that protocol, so an engine can run
// against a hub exactly as it runs against a local store.
package hub

import (
	"encoding/json"
	"time"

	"github.com/mschirtzinger/dayline/internal/schema"
)

// MessageType defines the type of hub message.
type MessageType string

const (
	// MessageTypeSnapshot carries the user's current document (server to client).
	MessageTypeSnapshot MessageType = "snapshot"

	// MessageTypeError reports a failed subscription (server to client).
	MessageTypeError MessageType = "error"

	// MessageTypeSave carries a partial document to merge (client to server).
	MessageTypeSave MessageType = "save"

	// MessageTypeAck answers a save with the same id (server to client).
	MessageTypeAck MessageType = "ack"
)

// Message is the single envelope used in both directions.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`

	// ID correlates a save with its ack.
	ID int64 `json:"id,omitempty"`

	UserID string `json:"userId,omitempty"`

	// Doc is the raw stored document of a snapshot; absent or null for a
	// user without one.
	Doc json.RawMessage `json:"doc,omitempty"`

	Partial *schema.PartialDocument `json:"partial,omitempty"`

	// Error is set on failed acks and error messages.
	Error string `json:"error,omitempty"`
}

func hasDoc(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
