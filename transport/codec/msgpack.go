package codec

import (
	"errors"

	"github.com/rbaliyan/botevent"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack implements Codec using MessagePack serialization.
// MessagePack is a binary format that's more compact than JSON
// while maintaining schema-less flexibility.
//
// Decoded envelope data uses msgpack's generic types: maps decode to
// map[string]any and integers to the smallest fitting Go integer type.
type MsgPack struct{}

// EncodeRequest serializes a request to MessagePack bytes
func (c MsgPack) EncodeRequest(req *Request) ([]byte, error) {
	data, err := msgpack.Marshal(req)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// DecodeRequest deserializes MessagePack bytes to a request
func (c MsgPack) DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := msgpack.Unmarshal(data, &req); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	if req.Envelope == nil {
		return nil, errors.Join(ErrDecodeFailure, errors.New("missing envelope"))
	}
	return &req, nil
}

// EncodeReply serializes a reply to MessagePack bytes
func (c MsgPack) EncodeReply(resp *botevent.ResponderResponse) ([]byte, error) {
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// DecodeReply deserializes MessagePack bytes to a reply
func (c MsgPack) DecodeReply(data []byte) (*botevent.ResponderResponse, error) {
	var resp botevent.ResponderResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	return &resp, nil
}

// ContentType returns the MIME type for MessagePack
func (c MsgPack) ContentType() string {
	return "application/msgpack"
}

// Name returns the codec identifier
func (c MsgPack) Name() string {
	return "msgpack"
}

// Compile-time check
var _ Codec = MsgPack{}
