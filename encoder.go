package shardset

import "encoding/json"

// Example is one raw feature dictionary yielded by a generator.
type Example map[string]any

// Encoder turns examples into the byte records stored inside shards,
// and back. The in-memory tensor encoding of individual feature
// values is the encoder's business, not this package's.
//
// Implementations must be safe for concurrent use.
type Encoder interface {
	Encode(example Example) ([]byte, error)
	Decode(data []byte) (Example, error)
	Name() string
}

// EncoderByName returns a built-in encoder by its stable name.
//
// The manifest records the encoder name, so datasets are
// self-describing and can be decoded by later processes.
func EncoderByName(name string) (Encoder, bool) {
	switch name {
	case "json":
		return JSONEncoder{}, true
	default:
		return nil, false
	}
}

// JSONEncoder is the standard-library JSON encoder. It is the
// default; datasets with binary feature values should inject their
// own Encoder.
type JSONEncoder struct{}

// Encode encodes the example to JSON.
func (JSONEncoder) Encode(example Example) ([]byte, error) {
	return json.Marshal(example)
}

// Decode decodes JSON data into an example.
func (JSONEncoder) Decode(data []byte) (Example, error) {
	var ex Example
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, err
	}
	return ex, nil
}

// Name returns the unique name of the encoder ("json").
func (JSONEncoder) Name() string { return "json" }
