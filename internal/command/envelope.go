package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/codewiresh/h1link/internal/device"
)

// Envelope encodes the reply for command. command and status are always
// present and take precedence over keys of the same name in fields. Keys
// are emitted in sorted order.
func Envelope(command string, status device.Status, fields map[string]any) ([]byte, error) {
	m := make(map[string]any, len(fields)+2)
	maps.Copy(m, fields)
	m["command"] = command
	m["status"] = int(status)
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s reply: %w", command, err)
	}
	return b, nil
}

// ErrorEnvelope is the reply to a request whose command could not be
// identified.
func ErrorEnvelope() []byte {
	b, _ := json.Marshal(map[string]int{"status": int(device.StatusError)})
	return b
}

// toFields flattens a tagged struct into envelope fields. Numbers keep
// their exact encoding.
func toFields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
