package ports

import "github.com/mitchellh/mapstructure"

// DecodeBody fills out (a pointer to a wire struct from pkg/domain) from a
// broadcast body. Decoding is weakly typed: transports that round-trip JSON
// deliver every number as float64, and those must land back in int fields.
func DecodeBody(body map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(body)
}
