package codec

import (
	"encoding/json"
	"errors"

	"github.com/rbaliyan/botevent"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Proto implements Codec using Protocol Buffers serialization.
//
// Requests and replies are carried as google.protobuf.Struct, so any
// protobuf runtime can read them without generated types. Values pass
// through their JSON form first; envelope data must therefore be
// JSON-serializable and numbers decode as float64.
type Proto struct{}

// EncodeRequest serializes a request to Protocol Buffer bytes
func (c Proto) EncodeRequest(req *Request) ([]byte, error) {
	return encodeStruct(req)
}

// DecodeRequest deserializes Protocol Buffer bytes to a request
func (c Proto) DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := decodeStruct(data, &req); err != nil {
		return nil, err
	}
	if req.Envelope == nil {
		return nil, errors.Join(ErrDecodeFailure, errors.New("missing envelope"))
	}
	return &req, nil
}

// EncodeReply serializes a reply to Protocol Buffer bytes
func (c Proto) EncodeReply(resp *botevent.ResponderResponse) ([]byte, error) {
	return encodeStruct(resp)
}

// DecodeReply deserializes Protocol Buffer bytes to a reply
func (c Proto) DecodeReply(data []byte) (*botevent.ResponderResponse, error) {
	var resp botevent.ResponderResponse
	if err := decodeStruct(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ContentType returns the MIME type for Protocol Buffers
func (c Proto) ContentType() string {
	return "application/x-protobuf"
}

// Name returns the codec identifier
func (c Proto) Name() string {
	return "proto"
}

func encodeStruct(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

func decodeStruct(data []byte, v any) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return errors.Join(ErrDecodeFailure, err)
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return errors.Join(ErrDecodeFailure, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrDecodeFailure, err)
	}
	return nil
}

// Compile-time check
var _ Codec = Proto{}
