package codec

import "github.com/vmihailenco/msgpack"

// Msgpack is a codec backed by github.com/vmihailenco/msgpack.
//
// It produces smaller payloads than JSON for numeric-heavy values. Persisted
// bucket files store the codec name in their header, so files written with
// Msgpack are rejected if opened with a table configured for another codec
// family that cannot decode them.
type Msgpack struct{}

// Marshal encodes the value to MessagePack.
func (Msgpack) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal decodes the MessagePack data into v.
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Name returns the unique name of the codec ("msgpack").
func (Msgpack) Name() string { return "msgpack" }
