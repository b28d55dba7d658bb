// Package transport streams live session events between a publishing relay
// and viewers over gRPC.
//
// The service is a single server-streaming method. Requests and events
// travel as google.protobuf.Struct documents carrying the JSON form of
// types.Event, so no generated stubs are needed.
//
// Thread Safety: Server and Client are safe for concurrent use by multiple
// goroutines.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/salahayoub/hotviz/pkg/types"
)

// Error variables for transport operations.
var (
	// ErrTransportClosed is returned when operations are attempted on a closed transport.
	ErrTransportClosed = errors.New("transport is closed")
	// ErrConnectionFailed is returned when a connection to the relay cannot be established.
	ErrConnectionFailed = errors.New("failed to connect to relay")
)

// Publisher fans events out to subscribers.
type Publisher interface {
	// Publish delivers ev to every subscriber of session. Subscribers that
	// asked for no particular session receive every event. A recorded event
	// must carry its Seq so subscribers can drop backlog duplicates.
	Publish(session string, ev types.Event) error

	// Subscribers returns the number of connected subscribers.
	Subscribers() int

	// LocalAddr returns the address on which the publisher listens.
	LocalAddr() string

	// Close stops the publisher and ends every subscription.
	Close() error
}

// SubscribeRequest selects the events a subscriber wants.
type SubscribeRequest struct {
	Session string `json:"session,omitempty"`
	// After skips backlog events with a sequence number <= After.
	After uint64 `json:"after,omitempty"`
}

// BacklogFunc returns recorded events of session after a sequence number,
// oldest first, with Seq set. The server sends them before live events and
// skips live events whose Seq it already sent.
type BacklogFunc func(session string, after uint64) ([]types.Event, error)

// toStruct converts any JSON-encodable value into a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to convert message: %w", err)
	}
	return s, nil
}

// fromStruct decodes a protobuf Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to convert message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

// EncodeEvent converts ev to its wire form.
func EncodeEvent(ev types.Event) (*structpb.Struct, error) {
	return toStruct(ev)
}

// DecodeEvent converts a wire message back to an event.
func DecodeEvent(s *structpb.Struct) (types.Event, error) {
	var ev types.Event
	err := fromStruct(s, &ev)
	return ev, err
}
