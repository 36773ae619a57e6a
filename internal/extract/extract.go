// Package extract pulls a JSON object out of free-form model output.
//
// Models frequently wrap structured replies in prose or code fences. The
// adapter takes the span from the first '{' to the last '}' and decodes it.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoStructureFound indicates the text contains no brace-delimited span.
	ErrNoStructureFound = errors.New("no JSON object found in model output")

	// ErrMalformedStructure indicates a span was found but is not valid JSON.
	ErrMalformedStructure = errors.New("malformed JSON object in model output")
)

// Object returns the substring from the first '{' to the last '}' in text.
func Object(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w (len=%d)", ErrNoStructureFound, len(s))
	}

	sub := s[start : end+1]
	if !json.Valid([]byte(sub)) {
		return nil, fmt.Errorf("%w (len=%d)", ErrMalformedStructure, len(sub))
	}
	return json.RawMessage(sub), nil
}

// Decode extracts the object in text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Object(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		// Valid JSON that does not fit v (e.g. a string where an array is
		// expected) is still a malformed structure from the caller's view.
		return fmt.Errorf("%w: %v", ErrMalformedStructure, err)
	}
	return nil
}
