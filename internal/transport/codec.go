package transport

import (
	"realestate/internal/codec"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype the registry service speaks
// ("application/grpc+cbor").
const CodecName = "cbor"

func init() {
	encoding.RegisterCodec(cborCodec{})
}

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

func (cborCodec) Name() string {
	return CodecName
}
