// Package protocol is the Language Server Protocol transport: the message
// types the server understands, the method table, and the callback client
// used to push notifications back to the editor.
package protocol

import (
	"context"
	"io"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
)

var (
	RequestCancelledError = &jrpc2.Error{Code: -32800, Message: "request cancelled"}
)

// Callbacker sends requests and notifications from the server to the client.
type Callbacker interface {
	Callback(ctx context.Context, method string, params any) (*jrpc2.Response, error)
	Notify(ctx context.Context, method string, params any) error
}

// CallbackClient is the Client half of a running server.
type CallbackClient struct {
	serverOpts *jrpc2.ServerOptions
	client     *jrpc2.Server
}

var _ Client = (*CallbackClient)(nil)
var _ Callbacker = (*CallbackClient)(nil)

func NewCallbackClient(server *jrpc2.Server, serverOpts *jrpc2.ServerOptions) *CallbackClient {
	return &CallbackClient{client: server, serverOpts: serverOpts}
}

func (c *CallbackClient) Notify(ctx context.Context, method string, params any) error {
	if rl, ok := c.serverOpts.RPCLog.(CallbackRPCLogger); ok {
		rl.LogCallbackRequestRaw(ctx, method, params)
	}
	return c.client.Notify(ctx, method, params)
}

func (c *CallbackClient) Callback(ctx context.Context, method string, params any) (*jrpc2.Response, error) {
	if rl, ok := c.serverOpts.RPCLog.(CallbackRPCLogger); ok {
		rl.LogCallbackRequestRaw(ctx, method, params)
	}

	res, err := c.client.Callback(ctx, method, params)
	if err != nil {
		return nil, err
	}

	if rl, ok := c.serverOpts.RPCLog.(CallbackRPCLogger); ok {
		rl.LogCallbackResponse(ctx, res)
	}
	return res, nil
}

func (c *CallbackClient) PublishDiagnostics(ctx context.Context, params *PublishDiagnosticsParams) error {
	return createNotify(ctx, c, "textDocument/publishDiagnostics", params)
}

func (c *CallbackClient) LogMessage(ctx context.Context, params *LogMessageParams) error {
	return createNotify(ctx, c, "window/logMessage", params)
}

// ServerInstance is a Server bound to a jrpc2 server.
type ServerInstance struct {
	server *jrpc2.Server
	client *CallbackClient
}

// NewServerInstance wires server into a jrpc2 server. Handler contexts carry
// a logger that forwards to the client as window/logMessage.
func NewServerInstance(ctx context.Context, server Server, opts *jrpc2.ServerOptions) *ServerInstance {
	if opts == nil {
		opts = &jrpc2.ServerOptions{}
	}
	opts.AllowPush = true

	me := &ServerInstance{}

	methods := buildServerDispatchMap(server)
	exit := methods["exit"]
	methods["exit"] = handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		res, err := exit(ctx, r)
		go me.server.Stop()
		return res, err
	})

	opts.NewContext = func() context.Context {
		if me.client == nil {
			return ctx
		}
		return ApplyServerInstanceToZerolog(ctx, me.client)
	}

	me.server = jrpc2.NewServer(methods, opts)
	me.client = NewCallbackClient(me.server, opts)
	return me
}

// Client returns the callback client for pushing to the editor.
func (me *ServerInstance) Client() *CallbackClient {
	return me.client
}

// Start serves requests on ch without blocking.
func (me *ServerInstance) Start(ch channel.Channel) {
	me.server.Start(ch)
}

// StartAndWait serves the LSP header framed stream on r and w until the
// connection closes or the client sends exit.
func (me *ServerInstance) StartAndWait(r io.Reader, w io.WriteCloser) error {
	me.server.Start(channel.LSP(r, w))
	return me.server.Wait()
}

func (me *ServerInstance) Wait() error {
	return me.server.Wait()
}

func (me *ServerInstance) Stop() {
	me.server.Stop()
}

func newParseError(err error) *jrpc2.Error {
	return &jrpc2.Error{
		Code:    -32700,
		Message: err.Error(),
	}
}

// NonNilSlice keeps empty arrays from encoding as null.
func NonNilSlice[T any](x []T) []T {
	if x == nil {
		return []T{}
	}
	return x
}

func createHandler[T any, O any](method func(ctx context.Context, params *T) (O, error)) handler.Func {
	return handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		ctx = ApplyRequestToZerolog(ctx, r)
		var params T
		if err := r.UnmarshalParams(&params); err != nil {
			return nil, newParseError(err)
		}
		result, err := method(ctx, &params)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

func createEmptyResultHandler[T any](method func(ctx context.Context, params *T) error) handler.Func {
	return handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		ctx = ApplyRequestToZerolog(ctx, r)
		var params T
		if err := r.UnmarshalParams(&params); err != nil {
			return nil, newParseError(err)
		}
		return nil, method(ctx, &params)
	})
}

func createEmptyHandler(method func(ctx context.Context) error) handler.Func {
	return handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		ctx = ApplyRequestToZerolog(ctx, r)
		return nil, method(ctx)
	})
}

func createIgnoredHandler() handler.Func {
	return handler.New(func(ctx context.Context, r *jrpc2.Request) (any, error) {
		return nil, nil
	})
}

func createNotify[I any](ctx context.Context, client Callbacker, method string, params *I) error {
	return client.Notify(ctx, method, params)
}
