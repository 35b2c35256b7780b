// Package push maintains the registry of live client sessions and fans out
// recommendation refresh events to them over WebSocket.
package push

import "context"

// Event names sent to clients.
const (
	// EventRecommendationsUpdate notifies a client that its recommendation
	// list has been regenerated and carries the fresh list.
	EventRecommendationsUpdate = "recommendations:update"

	// EventPong answers a client ping.
	EventPong = "pong"
)

// Session is a single live client connection that can receive push events.
// Implementations must be safe for concurrent Emit calls.
type Session interface {
	// ID uniquely identifies this session within its user's session set.
	ID() string

	// Emit delivers one event to the client. It must respect ctx deadlines
	// and return an error when the client cannot be reached.
	Emit(ctx context.Context, event string, payload any) error
}
