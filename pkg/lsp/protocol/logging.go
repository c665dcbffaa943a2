package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/debug"
)

// CallbackRPCLogger is an RPCLogger that also wants to see server to client
// traffic.
type CallbackRPCLogger interface {
	jrpc2.RPCLogger
	LogCallbackRequestRaw(ctx context.Context, method string, params any)
	LogCallbackResponse(ctx context.Context, res *jrpc2.Response)
}

// MultiRPCLogger fans request logging out to several loggers.
type MultiRPCLogger struct {
	mu      sync.Mutex
	loggers []jrpc2.RPCLogger
}

var _ CallbackRPCLogger = (*MultiRPCLogger)(nil)

func (m *MultiRPCLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		logger.LogRequest(ctx, req)
	}
}

func (m *MultiRPCLogger) LogResponse(ctx context.Context, resp *jrpc2.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		logger.LogResponse(ctx, resp)
	}
}

func (m *MultiRPCLogger) LogCallbackRequestRaw(ctx context.Context, method string, params any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		if cb, ok := logger.(CallbackRPCLogger); ok {
			cb.LogCallbackRequestRaw(ctx, method, params)
		}
	}
}

func (m *MultiRPCLogger) LogCallbackResponse(ctx context.Context, res *jrpc2.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		if cb, ok := logger.(CallbackRPCLogger); ok {
			cb.LogCallbackResponse(ctx, res)
		}
	}
}

func (m *MultiRPCLogger) AddLogger(logger jrpc2.RPCLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loggers = append(m.loggers, logger)
}

// loggerID tags every line this process emits so the client can tell our
// logs apart from those of processes we spawn.
var loggerID = uuid.NewString()

// ApplyServerInstanceToZerolog returns a context whose logger writes to the
// client as window/logMessage instead of the local console. The level of the
// logger already on ctx is kept.
func ApplyServerInstanceToZerolog(ctx context.Context, client Client) context.Context {
	writer := &logWriter{
		client: client,
		ctx:    ctx,
	}

	level := zerolog.Ctx(ctx).GetLevel()

	return zerolog.New(writer).With().
		Str("id", loggerID).
		Str("lsp_role", "server").
		Logger().
		Level(level).
		Hook(debug.CustomTimeHook{WithColor: false}).
		Hook(debug.CustomCallerHook{WithColor: false}).
		WithContext(ctx)
}

func ApplyRequestToZerolog(ctx context.Context, req *jrpc2.Request) context.Context {
	return zerolog.Ctx(ctx).With().
		Str("rpc_method", req.Method()).
		Str("rpc_id", req.ID()).
		Logger().
		WithContext(ctx)
}

type logWriter struct {
	client Client
	mu     sync.Mutex
	ctx    context.Context
}

// Write turns one zerolog JSON line into a window/logMessage notification.
func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	params := &LogMessageParams{
		Type:    ParseMessageTypeFromZerolog(extractField(entry, "level", "info")),
		Message: extractField(entry, "message", ""),
		Source:  extractField(entry, "caller", ""),
		Extra:   entry,
	}

	if w.client == nil {
		return len(p), nil
	}
	return len(p), w.client.LogMessage(w.ctx, params)
}

// extractField removes key from entry and returns its string value.
func extractField(entry map[string]any, key, defaultValue string) string {
	if v, ok := entry[key].(string); ok {
		delete(entry, key)
		return v
	}
	return defaultValue
}

// ParseMessageTypeFromZerolog converts a zerolog level name to an LSP
// MessageType.
func ParseMessageTypeFromZerolog(level string) MessageType {
	switch level {
	case "error", "fatal", "panic":
		return Error
	case "warn":
		return Warning
	case "info":
		return Info
	case "debug", "trace":
		return Debug
	default:
		return Log
	}
}
