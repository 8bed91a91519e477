package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const serverTimestampMarker = "\x00docstore.serverTimestamp"

type serverTimestamp struct{}

func (serverTimestamp) MarshalJSON() ([]byte, error) { return json.Marshal(serverTimestampMarker) }

// ServerTimestamp is replaced by the store's clock when the document is
// written. It may appear at any depth of a map or struct field typed any.
var ServerTimestamp any = serverTimestamp{}

// encode turns data into the stored JSON text, resolving ServerTimestamp.
func encode(data any, now string) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	if !bytes.Contains(raw, []byte(`\u0000docstore.serverTimestamp`)) {
		return string(raw), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	out, err := json.Marshal(resolve(v, now))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(out), nil
}

func resolve(v any, now string) any {
	switch x := v.(type) {
	case string:
		if x == serverTimestampMarker {
			return now
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = resolve(e, now)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = resolve(e, now)
		}
		return x
	default:
		return v
	}
}

// decodeFields decodes a document body for filtering and ordering.
func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	m := map[string]any{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
