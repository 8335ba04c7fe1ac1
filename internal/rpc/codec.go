// Package rpc defines the MessagingService gRPC contract: request and
// response types, the service descriptor, a typed client and the JSON codec
// the service is spoken in.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype of the service ("application/grpc+json").
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals the plain Go message types of this package.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

// CallOption selects the JSON codec on a call. Client adds it to every call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
