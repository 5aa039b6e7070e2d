package command

import (
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Kind is the JSON type a field must have.
type Kind int

const (
	String Kind = iota
	Number
	Integer
	Boolean
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is a required request member.
type Field struct {
	Name string
	Kind Kind
}

func Str(name string) Field  { return Field{name, String} }
func Int(name string) Field  { return Field{name, Integer} }
func Bool(name string) Field { return Field{name, Boolean} }
func Obj(name string) Field  { return Field{name, Object} }

// compileSchema builds the draft-07 schema requiring fields.
func compileSchema(fields []Field) (*gojsonschema.Schema, error) {
	props := make(map[string]any, len(fields)+1)
	props["command"] = map[string]any{"type": "string"}
	required := []string{"command"}
	for _, f := range fields {
		prop := map[string]any{"type": f.Kind.String()}
		if f.Kind == Integer {
			// Collaborators take 32-bit ints.
			prop["minimum"] = math.MinInt32
			prop["maximum"] = math.MaxInt32
		}
		props[f.Name] = prop
		required = append(required, f.Name)
	}
	doc := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
}

// checkInts rejects required integer fields that req cannot represent,
// so a handler never sees a zero in place of the requested value.
func checkInts(fields []Field, req *Request) error {
	for _, f := range fields {
		if f.Kind != Integer {
			continue
		}
		if _, ok := req.LookupInt(f.Name); !ok {
			return fmt.Errorf("%s: not a representable integer", f.Name)
		}
	}
	return nil
}

// validate checks payload against schema and returns a readable summary of
// every violation, or nil.
func validate(schema *gojsonschema.Schema, payload []byte) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("validating: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
}
