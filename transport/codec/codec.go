// Package codec provides wire serialization for envelopes and responder
// replies exchanged by remote buses.
//
// Supported formats:
//   - JSON (default, human-readable)
//   - MessagePack (binary, compact)
//   - Protocol Buffers (binary, google.protobuf.Struct)
package codec

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/botevent"
)

// Codec errors
var (
	ErrEncodeFailure = errors.New("failed to encode message")
	ErrDecodeFailure = errors.New("failed to decode message")
	ErrUnknownCodec  = errors.New("unknown codec")
)

// Request is an envelope on the wire, tagged with the event ID the
// publishing bus assigned.
type Request struct {
	EventID  string             `json:"eventId" msgpack:"event_id"`
	Envelope *botevent.Envelope `json:"envelope" msgpack:"envelope"`
}

// Codec serializes requests and replies.
// Implementations must be safe for concurrent use.
type Codec interface {
	// EncodeRequest serializes a request.
	// Returns ErrEncodeFailure if serialization fails.
	EncodeRequest(req *Request) ([]byte, error)

	// DecodeRequest deserializes a request. Envelope data comes back as
	// generic values (maps, slices, strings, numbers).
	// Returns ErrDecodeFailure if deserialization fails.
	DecodeRequest(data []byte) (*Request, error)

	// EncodeReply serializes a responder reply.
	EncodeReply(resp *botevent.ResponderResponse) ([]byte, error)

	// DecodeReply deserializes a responder reply.
	DecodeReply(data []byte) (*botevent.ResponderResponse, error)

	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Name returns a short identifier for this codec (e.g., "json", "msgpack", "proto").
	Name() string
}

// Default returns the default codec (JSON)
func Default() Codec {
	return JSON{}
}

// ByName returns the codec with the given name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return MsgPack{}, nil
	case "proto":
		return Proto{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// ByContentType returns the codec for a MIME type, defaulting to JSON.
func ByContentType(contentType string) Codec {
	for _, c := range []Codec{JSON{}, MsgPack{}, Proto{}} {
		if c.ContentType() == contentType {
			return c
		}
	}
	return JSON{}
}
