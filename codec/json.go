package codec

import "encoding/json"

// JSON is the standard-library JSON codec.
//
// Notes:
//   - JSON is stable and portable for typical keys (ints, strings) and for
//     struct/map/slice values.
//   - Time, complex numbers, funcs, channels, etc. may not be supported.
//
// If you need custom encoding, implement Codec and pass it via WithCodec.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
