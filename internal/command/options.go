// Package command turns structured option maps into command-line tokens.
//
// Option keys are written with underscores (config languages do not allow hyphens in
// field names) and rendered as flags: "q" -> "-q", "no_deinterlace" -> "--no-deinterlace".
// The emission order is the order in which the options were decoded or added.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Option is a single key/value pair. A nil or boolean value marks a flag without argument.
type Option struct {
	Key   string
	Value any
}

// Options is an order-preserving option map.
type Options []Option

// Get returns the value stored for key.
func (o Options) Get(key string) (any, bool) {
	for _, opt := range o {
		if opt.Key == key {
			return opt.Value, true
		}
	}
	return nil, false
}

// Set replaces the value for key in place, or appends it when absent.
func (o *Options) Set(key string, value any) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Option{Key: key, Value: value})
}

// Keys returns the keys in emission order.
func (o Options) Keys() []string {
	keys := make([]string, len(o))
	for i, opt := range o {
		keys[i] = opt.Key
	}
	return keys
}

// Merge returns a copy of o overlaid with other. Existing keys keep their position.
func (o Options) Merge(other Options) Options {
	merged := make(Options, len(o), len(o)+len(other))
	copy(merged, o)
	for _, opt := range other {
		merged.Set(opt.Key, opt.Value)
	}
	return merged
}

// UnmarshalJSON decodes a JSON object keeping the key order of the document.
func (o *Options) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("options: expected object, got %v", tok)
	}
	opts, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*o = opts
	return nil
}

// MarshalJSON encodes the options as an object in emission order.
func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(opt.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(opt.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeObject reads members until the closing brace; the opening brace is already consumed.
func decodeObject(dec *json.Decoder) (Options, error) {
	opts := Options{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("options: expected key, got %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("options: %s: %w", key, err)
		}
		opts.Set(key, value)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return opts, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			var items []any
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", v)
		}
	default:
		return v, nil
	}
}

// FormatValue renders a scalar option value as a single token.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case Options:
		return joinPairs(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make(Options, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, Option{Key: k, Value: val[k]})
		}
		return joinPairs(pairs)
	default:
		return fmt.Sprint(val)
	}
}

func joinPairs(pairs Options) string {
	var buf bytes.Buffer
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(':')
		}
		buf.WriteString(p.Key)
		buf.WriteByte('=')
		buf.WriteString(FormatValue(p.Value))
	}
	return buf.String()
}
