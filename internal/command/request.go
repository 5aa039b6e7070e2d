package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformed means the payload is not a JSON object.
	ErrMalformed = errors.New("command: malformed request")
	// ErrNoCommand means the object has no string "command" member.
	ErrNoCommand = errors.New("command: missing or non-string command")
	// ErrUnknownCommand means no handler is registered for the name.
	ErrUnknownCommand = errors.New("command: unknown command")
)

// Request is one decoded command object. Numbers keep their textual form
// so integers round-trip exactly.
type Request struct {
	Name   string
	Raw    []byte
	fields map[string]any
}

// ParseRequest decodes payload into a Request.
func ParseRequest(payload []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	name, ok := obj["command"].(string)
	if !ok {
		return nil, ErrNoCommand
	}
	return &Request{Name: name, Raw: payload, fields: obj}, nil
}

// Has reports whether the field is present, whatever its type.
func (r *Request) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

func (r *Request) LookupString(name string) (string, bool) {
	s, ok := r.fields[name].(string)
	return s, ok
}

func (r *Request) String(name string) string {
	s, _ := r.LookupString(name)
	return s
}

func (r *Request) StringOr(name, def string) string {
	if s, ok := r.LookupString(name); ok {
		return s
	}
	return def
}

// LookupInt returns an integer field. Numbers with a fractional part or
// outside the int range are not integers.
func (r *Request) LookupInt(name string) (int, bool) {
	n, ok := r.fields[name].(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		if i < math.MinInt || i > math.MaxInt {
			return 0, false
		}
		return int(i), true
	}
	// Whole numbers written with an exponent or ".0".
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt || f > math.MaxInt {
		return 0, false
	}
	return int(f), true
}

func (r *Request) Int(name string) int {
	i, _ := r.LookupInt(name)
	return i
}

func (r *Request) IntOr(name string, def int) int {
	if i, ok := r.LookupInt(name); ok {
		return i
	}
	return def
}

func (r *Request) LookupNumber(name string) (float64, bool) {
	n, ok := r.fields[name].(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

func (r *Request) LookupBool(name string) (bool, bool) {
	b, ok := r.fields[name].(bool)
	return b, ok
}

func (r *Request) Bool(name string) bool {
	b, _ := r.LookupBool(name)
	return b
}

func (r *Request) BoolOr(name string, def bool) bool {
	if b, ok := r.LookupBool(name); ok {
		return b
	}
	return def
}

func (r *Request) LookupArray(name string) ([]any, bool) {
	a, ok := r.fields[name].([]any)
	return a, ok
}

func (r *Request) LookupObject(name string) (map[string]any, bool) {
	o, ok := r.fields[name].(map[string]any)
	return o, ok
}

// Strings returns the string elements of an array field, skipping others.
func (r *Request) Strings(name string) ([]string, bool) {
	a, ok := r.LookupArray(name)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(a))
	for _, v := range a {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
