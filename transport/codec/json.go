package codec

import (
	"encoding/json"
	"errors"

	"github.com/rbaliyan/botevent"
)

// JSON implements Codec using JSON serialization.
// This is the default codec, providing human-readable output.
type JSON struct{}

// EncodeRequest serializes a request to JSON bytes
func (c JSON) EncodeRequest(req *Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// DecodeRequest deserializes JSON bytes to a request
func (c JSON) DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	if req.Envelope == nil {
		return nil, errors.Join(ErrDecodeFailure, errors.New("missing envelope"))
	}
	return &req, nil
}

// EncodeReply serializes a reply to JSON bytes
func (c JSON) EncodeReply(resp *botevent.ResponderResponse) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// DecodeReply deserializes JSON bytes to a reply
func (c JSON) DecodeReply(data []byte) (*botevent.ResponderResponse, error) {
	var resp botevent.ResponderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	return &resp, nil
}

// ContentType returns the MIME type for JSON
func (c JSON) ContentType() string {
	return "application/json"
}

// Name returns the codec identifier
func (c JSON) Name() string {
	return "json"
}

// Compile-time check
var _ Codec = JSON{}
