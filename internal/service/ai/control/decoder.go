// Package control decodes the JSON control blocks that language models emit
// alongside visible text.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mapping is one decoded control block. It is consumed immediately and never stored.
type Mapping map[string]any

// ErrNotObject is reported when the payload parses but its root is not a JSON object.
var ErrNotObject = errors.New("json root must be an object")

// DecodeError describes why a strict payload was rejected.
type DecodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "decode control json: " + e.Reason
	}
	return fmt.Sprintf("decode control json: field %q: %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var objectSpan = regexp.MustCompile(`(?s)\{.*\}`)

// Decode parses a control block leniently. Any failure yields an empty mapping.
func Decode(raw string) Mapping {
	m, err := DecodeStrict(raw)
	if err != nil {
		return Mapping{}
	}
	return m
}

// DecodeStrict parses raw as a JSON object, tolerating markdown fences and
// surrounding prose.
func DecodeStrict(raw string) (Mapping, error) {
	s := stripFences(raw)
	if s == "" {
		return nil, &DecodeError{Reason: "empty payload"}
	}

	var root any
	if err := json.Unmarshal([]byte(s), &root); err != nil {
		span := objectSpan.FindString(s)
		if span == "" {
			return nil, &DecodeError{Reason: fmt.Sprintf("no json object in %q", preview(s)), Err: err}
		}
		if err := json.Unmarshal([]byte(span), &root); err != nil {
			return nil, &DecodeError{Reason: "malformed json object", Err: err}
		}
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, &DecodeError{Reason: ErrNotObject.Error(), Err: ErrNotObject}
	}
	return Mapping(obj), nil
}

// String returns the lower-cased string form of key, or "" when absent.
func (m Mapping) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, err := scalarString(v)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// stripFences removes a leading ``` or ```json line and a trailing ``` fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimRightFunc(s, isSpace)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

func preview(s string) string {
	const limit = 120
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// scalarString renders a decoded JSON scalar the way the model most likely meant it.
func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case nil:
		return "", nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
