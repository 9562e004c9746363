package lspserver

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	transport := NewTransport(&buf, &buf)

	require.NoError(t, transport.Notify("goanalyzer/progress", map[string]string{"message": "hi"}))

	req, err := transport.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "goanalyzer/progress", req.Method)

	var params map[string]string
	require.NoError(t, json.Unmarshal(req.Params, &params))
	require.Equal(t, "hi", params["message"])
}

func TestWriteResultIncludesID(t *testing.T) {
	var buf bytes.Buffer
	transport := NewTransport(&buf, &buf)
	id := json.RawMessage(`1`)
	require.NoError(t, transport.WriteResult(id, map[string]string{"ok": "true"}))

	req, err := transport.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, string(id), string(req.ID))
}
