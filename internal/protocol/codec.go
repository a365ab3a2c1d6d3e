package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// schema describes how one variant is decoded.
type schema[T any] struct {
	required []string
	decode   func([]byte) (T, error)
}

func decodeAs[V any, T any](data []byte) (T, error) {
	var v V
	var zero T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, err
	}
	out, ok := any(v).(T)
	if !ok {
		return zero, fmt.Errorf("%T does not implement %T", v, zero)
	}
	return out, nil
}

func schemaTypes[T any](schemas map[string]schema[T]) []string {
	out := make([]string, 0, len(schemas))
	for tag := range schemas {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func decodeTagged[T any](raw []byte, schemas map[string]schema[T], kind string) (T, error) {
	var zero T

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, &ParseError{Reason: "not a JSON object", Err: err}
	}
	if fields == nil {
		return zero, &ParseError{Reason: "not a JSON object"}
	}

	rawTag, ok := fields["type"]
	if !ok {
		return zero, &ParseError{Reason: "missing type"}
	}
	var tag string
	if err := json.Unmarshal(rawTag, &tag); err != nil {
		return zero, &ParseError{Reason: "type must be a string", Err: err}
	}

	s, ok := schemas[tag]
	if !ok {
		return zero, &ParseError{Type: tag, Reason: "unknown " + kind + " type"}
	}
	for _, name := range s.required {
		v, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return zero, &ParseError{Type: tag, Reason: fmt.Sprintf("missing field %q", name)}
		}
	}

	out, err := s.decode(raw)
	if err != nil {
		return zero, &ParseError{Type: tag, Reason: "invalid fields", Err: err}
	}
	return out, nil
}

// encodeTagged marshals v and prepends the type discriminant.
func encodeTagged(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", tag, err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encoding %s: variant is not an object", tag)
	}
	quoted, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(quoted) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(quoted)
	if inner := body[1 : len(body)-1]; len(bytes.TrimSpace(inner)) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
