package serve_lsp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCLogger_LogCallbackRequestRaw(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRPCLogger(zerolog.New(&buf), zerolog.InfoLevel)

	logger.LogCallbackRequestRaw(context.Background(), "textDocument/publishDiagnostics", map[string]string{"uri": "file:///a.lua"})

	assert.JSONEq(t, `{
		"level": "info",
		"rpc_method": "textDocument/publishDiagnostics",
		"rpc_params": {"uri": "file:///a.lua"},
		"message": "server notification"
	}`, buf.String())
}

func TestHandler_rpcLog(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "trace.jsonl")
	h := &Handler{traceFile: trace}

	multi, closer, err := h.rpcLog(context.Background())
	require.NoError(t, err)

	multi.LogCallbackRequestRaw(context.Background(), "window/logMessage", "hello")
	require.NoError(t, closer())

	data, err := os.ReadFile(trace)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rpc_method":"window/logMessage"`)
}

func TestHandler_rpcLog_BadTraceFile(t *testing.T) {
	h := &Handler{traceFile: filepath.Join(t.TempDir(), "missing", "trace.jsonl")}

	_, _, err := h.rpcLog(context.Background())
	require.Error(t, err)
}
