package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/ugorji/go/codec"
)

// Codec serialises envelopes for a byte-oriented boundary.
type Codec interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// Codec names accepted by CodecByName.
const (
	CodecMsgPack = "msgpack"
	CodecJSON    = "json"
)

var (
	// MsgPack encodes envelopes as MessagePack tagged maps. It is the default codec.
	MsgPack Codec = newMsgPackCodec()

	// JSON encodes envelopes as JSON objects, mostly useful when inspecting traffic.
	JSON Codec = jsonCodec{api: sonic.Config{DisallowUnknownFields: true, ValidateString: true}.Froze()}
)

// CodecByName resolves a codec from its configured name. The empty name selects MsgPack.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecMsgPack:
		return MsgPack, nil
	case CodecJSON:
		return JSON, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type msgpackCodec struct {
	handle *codec.MsgpackHandle
}

func newMsgPackCodec() msgpackCodec {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.ErrorIfNoField = true
	return msgpackCodec{handle: h}
}

func (msgpackCodec) Name() string { return CodecMsgPack }

func (c msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, c.handle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (c msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, c.handle)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if n := dec.NumBytesRead(); n != len(data) {
		return fmt.Errorf("%d trailing bytes after envelope", len(data)-n)
	}
	return nil
}

type jsonCodec struct {
	api sonic.API
}

func (jsonCodec) Name() string { return CodecJSON }

func (c jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return c.api.Marshal(v)
}

func (c jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return c.api.Unmarshal(data, v)
}

// Encode serialises an envelope.
func Encode(c Codec, env Envelope) ([]byte, error) {
	data, err := c.Marshal(env)
	if err != nil {
		return nil, Errorf(CodeProtocol, "encode %T: %v", env, err)
	}
	return data, nil
}

// Decode deserialises and validates an envelope. Any failure is a protocol error.
func Decode(c Codec, data []byte, env Envelope) error {
	if len(data) == 0 {
		return Errorf(CodeProtocol, "decode %T: empty envelope", env)
	}
	if err := c.Unmarshal(data, env); err != nil {
		return Errorf(CodeProtocol, "decode %T: %v", env, err)
	}
	if err := env.Validate(); err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.Code == CodeProtocol {
			return Errorf(CodeProtocol, "decode %T: %s", env, perr.Message)
		}
		return Errorf(CodeProtocol, "decode %T: %v", env, err)
	}
	return nil
}
