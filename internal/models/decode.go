// Package models defines the simulation server's wire entities and the pure
// rules that turn them into display values.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks a payload that is not the expected JSON or number.
	ErrMalformed = errors.New("malformed payload")
	// ErrMissingField marks a payload missing a required key or holding null for it.
	ErrMissingField = errors.New("missing field")
)

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func malformed(err error) error {
	if errors.Is(err, ErrMalformed) || errors.Is(err, ErrMissingField) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// decodeObject walks a JSON object in document order, handing each member to fn.
// Go maps lose key order, which matters for tie-breaking when sorting balances.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return malformed(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected JSON object", ErrMalformed)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return malformed(err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected object key", ErrMalformed)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return malformed(err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return malformed(err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
