package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/botevent"
	"syreclabs.com/go/faker"
)

func testRequest() *Request {
	return &Request{
		EventID: botevent.NewID(),
		Envelope: &botevent.Envelope{
			Type: "security/alert",
			Data: map[string]any{
				"user":    faker.Internet().UserName(),
				"message": faker.Lorem().Sentence(4),
			},
			Metadata: botevent.Metadata{"priority": "high", "source": "gateway"},
			Progression: botevent.ProgressionState{
				State:       botevent.ProgressionContinue,
				ProcessedBy: []string{},
			},
		},
	}
}

func testReply() *botevent.ResponderResponse {
	return &botevent.ResponderResponse{
		ResponderID: "scanner",
		Response: &botevent.BotEventResponse{
			Progression: botevent.ProgressionBlock,
			Reason:      "Security concern detected",
		},
		Timestamp: time.UnixMilli(time.Now().UnixMilli()).UTC(),
	}
}

func TestCodecs(t *testing.T) {
	for _, c := range []Codec{JSON{}, MsgPack{}, Proto{}} {
		t.Run(c.Name(), func(t *testing.T) {
			req := testRequest()
			data, err := c.EncodeRequest(req)
			if err != nil {
				t.Fatalf("EncodeRequest failed: %v", err)
			}
			got, err := c.DecodeRequest(data)
			if err != nil {
				t.Fatalf("DecodeRequest failed: %v", err)
			}
			if got.EventID != req.EventID || got.Envelope.Type != req.Envelope.Type {
				t.Errorf("request mismatch: %+v", got)
			}
			if p := got.Envelope.Priority(); p != botevent.PriorityHigh {
				t.Errorf("priority lost: %s", p)
			}
			if got.Envelope.Metadata["source"] != "gateway" {
				t.Errorf("metadata lost: %v", got.Envelope.Metadata)
			}
			if got.Envelope.Progression.State != botevent.ProgressionContinue {
				t.Errorf("progression lost: %+v", got.Envelope.Progression)
			}
			data1, _ := got.Envelope.Data.(map[string]any)
			if data1["user"] != req.Envelope.Data.(map[string]any)["user"] {
				t.Errorf("data lost: %v", got.Envelope.Data)
			}

			reply := testReply()
			data, err = c.EncodeReply(reply)
			if err != nil {
				t.Fatalf("EncodeReply failed: %v", err)
			}
			gotReply, err := c.DecodeReply(data)
			if err != nil {
				t.Fatalf("DecodeReply failed: %v", err)
			}
			gotReply.Timestamp = gotReply.Timestamp.UTC()
			if diff := cmp.Diff(reply, gotReply); diff != "" {
				t.Errorf("reply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	for _, c := range []Codec{JSON{}, MsgPack{}, Proto{}} {
		t.Run(c.Name(), func(t *testing.T) {
			if _, err := c.DecodeRequest([]byte{0xc1, 0xff, 0x00}); !errors.Is(err, ErrDecodeFailure) {
				t.Errorf("expected ErrDecodeFailure for garbage, got %v", err)
			}
			if _, err := c.DecodeReply([]byte{0xc1, 0xff, 0x00}); !errors.Is(err, ErrDecodeFailure) {
				t.Errorf("expected ErrDecodeFailure for garbage reply, got %v", err)
			}

			data, err := c.EncodeRequest(&Request{EventID: "x"})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := c.DecodeRequest(data); !errors.Is(err, ErrDecodeFailure) {
				t.Errorf("expected ErrDecodeFailure for missing envelope, got %v", err)
			}
		})
	}
}

func TestEncodeFailure(t *testing.T) {
	req := testRequest()
	req.Envelope.Data = make(chan int)
	for _, c := range []Codec{JSON{}, MsgPack{}, Proto{}} {
		if _, err := c.EncodeRequest(req); !errors.Is(err, ErrEncodeFailure) {
			t.Errorf("%s: expected ErrEncodeFailure, got %v", c.Name(), err)
		}
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "json"},
		{"json", "json"},
		{"msgpack", "msgpack"},
		{"proto", "proto"},
	}
	for _, tt := range tests {
		c, err := ByName(tt.name)
		if err != nil {
			t.Fatalf("ByName(%q) failed: %v", tt.name, err)
		}
		if c.Name() != tt.want {
			t.Errorf("ByName(%q) = %s, want %s", tt.name, c.Name(), tt.want)
		}
		if got := ByContentType(c.ContentType()); got.Name() != tt.want {
			t.Errorf("ByContentType(%q) = %s, want %s", c.ContentType(), got.Name(), tt.want)
		}
	}
	if _, err := ByName("xml"); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
	if ByContentType("text/plain").Name() != "json" {
		t.Error("unknown content type should fall back to json")
	}
	if Default().Name() != "json" {
		t.Error("default codec should be json")
	}
}
