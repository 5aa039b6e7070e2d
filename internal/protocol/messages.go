package protocol

import "encoding/json"

// JSONFrame marshals v and wraps it in a JSON frame.
func JSONFrame(v any) (*Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: TypeJSON, Payload: data}, nil
}

// BinaryFrame wraps data in a binary frame. more marks that further frames
// of the same transfer follow.
func BinaryFrame(data []byte, more bool) *Frame {
	return &Frame{Type: TypeBinary, More: more, Payload: data}
}

// EndOfStream is the empty, final binary frame that terminates a transfer.
func EndOfStream() *Frame {
	return &Frame{Type: TypeBinary, More: false, Payload: []byte{}}
}

// IsEndOfStream reports whether f terminates a binary transfer.
func (f *Frame) IsEndOfStream() bool {
	return f.Type == TypeBinary && !f.More && len(f.Payload) == 0
}
