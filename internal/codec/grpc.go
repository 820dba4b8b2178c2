package codec

import "google.golang.org/grpc/encoding"

// Name is the gRPC content subtype for CBOR messages.
const Name = "cbor"

func init() {
	encoding.RegisterCodec(grpcCodec{})
}

// grpcCodec lets gRPC carry plain Go structs encoded as CBOR.
type grpcCodec struct{}

func (grpcCodec) Marshal(v any) ([]byte, error) { return Marshal(v) }

func (grpcCodec) Unmarshal(data []byte, v any) error { return Unmarshal(data, v) }

func (grpcCodec) Name() string { return Name }
