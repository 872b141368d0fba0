// Package stfgrpc carries the runtime connection over gRPC. Messages
// are the plain structs of stf/types and the wire format is cramberry,
// so there is no generated code.
package stfgrpc

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

const codecName = "cramberry"

// CramberryCodec is the gRPC codec for every runtime message. Both
// ends force it with grpc.ForceCodec.
type CramberryCodec struct{}

// Marshal implements encoding.Codec.
func (CramberryCodec) Marshal(msg any) ([]byte, error) {
	data, err := cramberry.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("stfgrpc: encode %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal implements encoding.Codec.
func (CramberryCodec) Unmarshal(data []byte, msg any) error {
	if err := cramberry.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("stfgrpc: decode %T: %w", msg, err)
	}
	return nil
}

// Name implements encoding.Codec.
func (CramberryCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(CramberryCodec{})
}
