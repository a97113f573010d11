// Package grpc exposes an internal admin/control-plane surface for
// QueryByScope and GetConnections, carried as plain Go structs over a
// JSON codec instead of generated protobuf bindings (no protoc is
// available to produce those here).
package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is negotiated via the grpc content-subtype; clients must dial
// with grpc.CallContentSubtype(codecName) to select this codec over the
// default proto one.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
