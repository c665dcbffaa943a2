package serve_lsp

import (
	"context"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/lsp"
	"github.com/walteh/luals/pkg/lsp/protocol"
)

type Handler struct {
	version   string
	debug     bool
	noWatch   bool
	traceFile string
}

func NewServeLSPCommand(version string) *cobra.Command {
	me := &Handler{version: version}

	cmd := &cobra.Command{
		Use:   "serve-lsp",
		Short: "start the language server on stdin/stdout",
	}

	cmd.Flags().BoolVar(&me.debug, "debug", false, "log every request and response")
	cmd.Flags().BoolVar(&me.noWatch, "no-watch", false, "do not watch the workspace for changes made outside the editor")
	cmd.Flags().StringVar(&me.traceFile, "trace-file", "", "also write the rpc traffic as json lines to this file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

// RPCLogger writes the rpc traffic in both directions to a fixed logger.
// Handler contexts log to the client, so the logger is captured up front.
type RPCLogger struct {
	logger zerolog.Logger
	level  zerolog.Level
}

var _ protocol.CallbackRPCLogger = (*RPCLogger)(nil)

func NewRPCLogger(logger zerolog.Logger, level zerolog.Level) *RPCLogger {
	return &RPCLogger{logger: logger, level: level}
}

func (me *RPCLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	me.logger.WithLevel(me.level).Str("rpc_params", req.ParamString()).Str("rpc_id", req.ID()).Str("rpc_method", req.Method()).Msg("client request")
}

func (me *RPCLogger) LogResponse(ctx context.Context, res *jrpc2.Response) {
	ev := me.logger.WithLevel(me.level).Str("rpc_id", res.ID())
	if err := res.Error(); err != nil {
		ev = ev.Err(err)
	} else {
		ev = ev.Str("rpc_result", res.ResultString())
	}
	ev.Msg("server response")
}

func (me *RPCLogger) LogCallbackRequestRaw(ctx context.Context, method string, params any) {
	me.logger.WithLevel(me.level).Str("rpc_method", method).Interface("rpc_params", params).Msg("server notification")
}

func (me *RPCLogger) LogCallbackResponse(ctx context.Context, res *jrpc2.Response) {
	me.logger.WithLevel(me.level).Str("rpc_id", res.ID()).Str("rpc_result", res.ResultString()).Msg("client response")
}

// rpcLog builds the request loggers for the flags in effect. The returned
// closer releases the trace file, if any.
func (me *Handler) rpcLog(ctx context.Context) (*protocol.MultiRPCLogger, func() error, error) {
	multi := &protocol.MultiRPCLogger{}
	closer := func() error { return nil }

	level := zerolog.TraceLevel
	if me.debug {
		level = zerolog.InfoLevel
	}
	multi.AddLogger(NewRPCLogger(*zerolog.Ctx(ctx), level))

	if me.traceFile != "" {
		f, err := os.OpenFile(me.traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Errorf("opening trace file: %w", err)
		}
		multi.AddLogger(NewRPCLogger(zerolog.New(f).With().Timestamp().Logger(), zerolog.InfoLevel))
		closer = f.Close
	}

	return multi, closer, nil
}

func (me *Handler) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	opts := []lsp.Option{lsp.WithVersion(me.version)}
	if !me.noWatch {
		opts = append(opts, lsp.WithFileWatcher())
	}
	server := lsp.NewServer(ctx, afero.NewOsFs(), opts...)

	rpcLog, closeTrace, err := me.rpcLog(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTrace(); err != nil {
			logger.Warn().Err(err).Msg("closing trace file")
		}
	}()

	instance := server.BuildServerInstance(ctx, &jrpc2.ServerOptions{
		RPCLog: rpcLog,
	})

	logger.Info().Str("server_id", server.ID()).Str("version", me.version).Msg("starting language server")

	if err := instance.StartAndWait(os.Stdin, os.Stdout); err != nil {
		return errors.Errorf("error running language server: %w", err)
	}

	return nil
}
