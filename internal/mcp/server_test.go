package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewiresh/h1link/internal/client"
)

type recordedCall struct {
	command string
	fields  map[string]any
}

type fakeCaller struct {
	calls   []recordedCall
	files   map[string][]byte
	callErr error
}

func (f *fakeCaller) Call(_ context.Context, command string, fields map[string]any) (client.Reply, error) {
	f.calls = append(f.calls, recordedCall{command, fields})
	if f.callErr != nil {
		return nil, f.callErr
	}
	return client.Reply{"command": command, "status": json.Number("0")}, nil
}

func (f *fakeCaller) ReadFile(_ context.Context, name string, dst io.Writer) (client.Reply, int64, error) {
	data, ok := f.files[name]
	if !ok {
		return client.Reply{"command": "readfile", "status": json.Number("1")}, 0, nil
	}
	n, err := dst.Write(data)
	return client.Reply{"command": "readfile", "status": json.Number("0")}, int64(n), err
}

// roundTrip feeds requests to Serve and returns the decoded responses.
func roundTrip(t *testing.T, c Caller, requests ...string) []jsonRpcResponse {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	require.NoError(t, Serve(context.Background(), in, &out, c, "test", nil))

	var resps []jsonRpcResponse
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r jsonRpcResponse
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		resps = append(resps, r)
	}
	return resps
}

func text(t *testing.T, r jsonRpcResponse) string {
	t.Helper()
	require.Nil(t, r.Error, "unexpected error response")
	content := r.Result.(map[string]any)["content"].([]any)
	return content[0].(map[string]any)["text"].(string)
}

func TestInitializeAndList(t *testing.T) {
	resps := roundTrip(t, &fakeCaller{},
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
	)
	require.Len(t, resps, 3)

	info := resps[0].Result.(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, "h1", info["name"])

	var names []string
	for _, tl := range resps[1].Result.(map[string]any)["tools"].([]any) {
		names = append(names, tl.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"h1_send", "h1_status", "h1_events", "h1_get_event", "h1_read_file"}, names)

	require.NotNil(t, resps[2].Error)
	assert.Equal(t, -32601, resps[2].Error.Code)
}

func TestToolCalls(t *testing.T) {
	fc := &fakeCaller{}
	resps := roundTrip(t, fc,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"h1_send","arguments":{"command":"record","fields":{"camera":1}}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"h1_events","arguments":{"pending":true}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"h1_get_event","arguments":{"name":"20240309_140506_cam1"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"h1_status","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"h1_send","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"h1_reboot","arguments":{}}}`,
	)
	require.Len(t, resps, 6)

	assert.Contains(t, text(t, resps[0]), `"command": "record"`)
	require.Len(t, fc.calls, 4)
	assert.Equal(t, recordedCall{"record", map[string]any{"camera": float64(1)}}, fc.calls[0])
	assert.Equal(t, "pendingeventlist", fc.calls[1].command)
	assert.Equal(t, recordedCall{"getevent", map[string]any{"eventname": "20240309_140506_cam1"}}, fc.calls[2])
	assert.Equal(t, "status", fc.calls[3].command)

	require.NotNil(t, resps[4].Error)
	assert.Contains(t, resps[4].Error.Message, "command is required")
	require.NotNil(t, resps[5].Error)
	assert.Contains(t, resps[5].Error.Message, "unknown tool")
}

func TestLinkErrorBecomesRPCError(t *testing.T) {
	resps := roundTrip(t, &fakeCaller{callErr: errors.New("device disconnected")},
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"h1_status"}}`,
	)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, -32603, resps[0].Error.Code)
}

func TestReadFileTool(t *testing.T) {
	fc := &fakeCaller{files: map[string][]byte{
		"event.xml": []byte("<event>0123456789</event>"),
		"clip.bin":  {0xff, 0xfe, 0x00},
	}}
	resps := roundTrip(t, fc,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"h1_read_file","arguments":{"filename":"event.xml"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"h1_read_file","arguments":{"filename":"event.xml","max_bytes":7}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"h1_read_file","arguments":{"filename":"clip.bin"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"h1_read_file","arguments":{"filename":"gone.xml"}}}`,
	)
	require.Len(t, resps, 4)

	assert.Equal(t, "<event>0123456789</event>", text(t, resps[0]))
	assert.Equal(t, "<event>\n[truncated: showing 7 of 25 bytes]", text(t, resps[1]))
	assert.Equal(t, "clip.bin is binary (3 bytes)", text(t, resps[2]))
	require.NotNil(t, resps[3].Error)
	assert.Contains(t, resps[3].Error.Message, "device returned")
}
