package datasets

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// orderedObject decodes a JSON object keeping its key order. Numbers are
// kept as json.Number so integer labels stay integers.
type orderedObject struct {
	Keys   []string
	Values map[string]any
}

func (o *orderedObject) UnmarshalJSON(raw []byte) error {
	o.Keys = nil
	o.Values = make(map[string]any)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.Errorf("expected object key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return errors.Wrapf(err, "value of %q", key)
		}
		if _, dup := o.Values[key]; !dup {
			o.Keys = append(o.Keys, key)
		}
		o.Values[key] = v
	}
	_, err = dec.Token()
	return err
}

// decodeRecord unmarshals a raw record into a typed struct keeping numbers
// in untyped fields as json.Number.
func decodeRecord(raw []byte, into any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(into); err != nil {
		return errors.Wrap(err, "decode record")
	}
	return nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
