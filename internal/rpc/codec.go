// Package rpc defines the Connect procedures, messages, handlers and clients
// for the splitledger.v1 services.
//
// Messages are plain Go structs carried by a JSON codec, so the services can
// be called with any Connect client (or curl) using application/json.
package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
)

// CodecName is the Connect codec name; it maps to the application/json content type.
const CodecName = "json"

// JSONCodec marshals messages with encoding/json.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return CodecName }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// Money renders an amount for responses: rounded to 2 decimals, as a JSON number.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
}
