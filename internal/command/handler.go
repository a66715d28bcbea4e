// Package command implements the local control plane: a JSON-RPC handler
// and its Unix socket transport.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/observe"
	"firestige.xyz/pulse/internal/tap"
)

// Version is reported by daemon_status.
var Version = "0.1.0"

// Method names.
const (
	MethodComponentsList  = "components_list"
	MethodMetricsSnapshot = "metrics_snapshot"
	MethodComponentTotal  = "component_total"
	MethodSubscribe       = "subscribe"
	MethodTap             = "tap"
	MethodConfigReload    = "config_reload"
	MethodDaemonStatus    = "daemon_status"
	MethodDaemonShutdown  = "daemon_shutdown"
)

// ConfigReloader is the interface for reloading the component configuration.
type ConfigReloader interface {
	Reload() error
}

// TapControl is where tap streams register their sinks.
type TapControl interface {
	Control() chan<- tap.ControlMessage
	Taps() int
}

// Options configures a CommandHandler.
type Options struct {
	Subscriptions   *observe.Subscriptions
	Registry        *component.Registry
	Taps            TapControl
	Reloader        ConfigReloader
	DefaultInterval int // milliseconds, for subscribe without interval
	TapBufferSize   int
}

// CommandHandler handles control plane commands.
type CommandHandler struct {
	opts         Options
	shutdownFunc func() // Called by daemon_shutdown to trigger graceful stop
	startTime    time.Time
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(opts Options) *CommandHandler {
	if opts.DefaultInterval == 0 {
		opts.DefaultInterval = observe.DefaultInterval
	}
	return &CommandHandler{opts: opts, startTime: time.Now()}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"` // e.g., "components_list", "subscribe"
	Params json.RawMessage `json:"params"` // command-specific parameters
	ID     string          `json:"id"`     // request ID for tracking
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`               // matches request ID
	Result interface{} `json:"result,omitempty"` // success result
	Error  *ErrorInfo  `json:"error,omitempty"`  // error info if failed
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal error
)

func errorResponse(id string, code int, format string, args ...any) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// codeFor maps caller mistakes to invalid params and the rest to internal.
func codeFor(err error) int {
	switch {
	case errors.Is(err, core.ErrIntervalOutOfRange),
		errors.Is(err, core.ErrUnknownQuery),
		errors.Is(err, core.ErrComponentNotFound),
		errors.Is(err, core.ErrNoInputs):
		return ErrCodeInvalidParams
	default:
		return ErrCodeInternalError
	}
}

func decodeParams(cmd Command, out any) *ErrorInfo {
	if len(cmd.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Params, out); err != nil {
		return &ErrorInfo{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

// IsStreaming reports whether method answers with a stream of responses.
func IsStreaming(method string) bool {
	return method == MethodSubscribe || method == MethodTap
}

// Handle processes a unary command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	slog.Debug("handling command", "method", cmd.Method, "id", cmd.ID)

	switch cmd.Method {
	case MethodComponentsList:
		return h.handleComponentsList(ctx, cmd)
	case MethodMetricsSnapshot:
		return h.handleMetricsSnapshot(ctx, cmd)
	case MethodComponentTotal:
		return h.handleComponentTotal(ctx, cmd)
	case MethodConfigReload:
		return h.handleConfigReload(ctx, cmd)
	case MethodDaemonStatus:
		return h.handleDaemonStatus(ctx, cmd)
	case MethodDaemonShutdown:
		return h.handleDaemonShutdown(ctx, cmd)
	case MethodSubscribe, MethodTap:
		return errorResponse(cmd.ID, ErrCodeInvalidRequest, "method %q is streaming", cmd.Method)
	default:
		return errorResponse(cmd.ID, ErrCodeMethodNotFound, "method %q not found", cmd.Method)
	}
}

// ComponentInfo is one entry of components_list.
type ComponentInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Role string `json:"role"`
}

func (h *CommandHandler) handleComponentsList(_ context.Context, cmd Command) Response {
	list := h.opts.Registry.List()
	out := make([]ComponentInfo, len(list))
	for i, c := range list {
		out[i] = ComponentInfo{Name: c.Name, Type: c.Type, Role: c.Role.String()}
	}
	return Response{ID: cmd.ID, Result: out}
}

func (h *CommandHandler) handleMetricsSnapshot(_ context.Context, cmd Command) Response {
	totals, err := h.opts.Subscriptions.Snapshot()
	if err != nil {
		return errorResponse(cmd.ID, codeFor(err), "snapshot failed: %v", err)
	}
	return Response{ID: cmd.ID, Result: totals}
}

// ComponentTotalParams represents parameters for component_total.
type ComponentTotalParams struct {
	Component string `json:"component"`
	Metric    string `json:"metric"` // "events" (default) or "bytes"
}

func (h *CommandHandler) handleComponentTotal(_ context.Context, cmd Command) Response {
	var params ComponentTotalParams
	if e := decodeParams(cmd, &params); e != nil {
		return Response{ID: cmd.ID, Error: e}
	}
	if params.Component == "" {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, "component is required")
	}

	var (
		total observe.Total
		err   error
	)
	switch params.Metric {
	case "", "events":
		total, err = h.opts.Subscriptions.ComponentEventsProcessedTotal(params.Component)
	case "bytes":
		total, err = h.opts.Subscriptions.ComponentBytesProcessedTotal(params.Component)
	default:
		return errorResponse(cmd.ID, ErrCodeInvalidParams, "unknown metric %q (must be events/bytes)", params.Metric)
	}
	if err != nil {
		return errorResponse(cmd.ID, codeFor(err), "%v", err)
	}
	return Response{ID: cmd.ID, Result: total}
}

func (h *CommandHandler) handleConfigReload(_ context.Context, cmd Command) Response {
	if h.opts.Reloader == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "config reloader not available")
	}
	if err := h.opts.Reloader.Reload(); err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "reload config failed: %v", err)
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "reloaded"}}
}

// handleDaemonShutdown triggers graceful daemon shutdown via the registered callback.
func (h *CommandHandler) handleDaemonShutdown(_ context.Context, cmd Command) Response {
	if h.shutdownFunc == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "shutdown handler not registered")
	}

	slog.Info("daemon_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // Non-blocking: let the response be sent first

	return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "shutting_down"}}
}

// DaemonStatus is the daemon_status result.
type DaemonStatus struct {
	Version    string   `json:"version"`
	UptimeSec  int64    `json:"uptime_sec"`
	Components int      `json:"components"`
	Taps       int      `json:"taps"`
	Queries    []string `json:"queries"`
}

func (h *CommandHandler) handleDaemonStatus(_ context.Context, cmd Command) Response {
	status := DaemonStatus{
		Version:   Version,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
		Queries:   observe.Queries(),
	}
	if h.opts.Registry != nil {
		status.Components = h.opts.Registry.Len()
	}
	if h.opts.Taps != nil {
		status.Taps = h.opts.Taps.Taps()
	}
	return Response{ID: cmd.ID, Result: status}
}

// ─── Streaming ───

// SubscribeParams represents parameters for subscribe.
type SubscribeParams struct {
	Query    string `json:"query"`
	Interval int    `json:"interval,omitempty"` // milliseconds
}

// TapParams represents parameters for tap.
type TapParams struct {
	Inputs []string `json:"inputs"`
}

// Stream runs a streaming command, calling send for every element until
// ctx is done, the stream ends, or send fails. A non-nil ErrorInfo means
// the stream never started.
func (h *CommandHandler) Stream(ctx context.Context, cmd Command, send func(any) error) *ErrorInfo {
	slog.Debug("handling stream", "method", cmd.Method, "id", cmd.ID)

	switch cmd.Method {
	case MethodSubscribe:
		return h.streamSubscribe(ctx, cmd, send)
	case MethodTap:
		return h.streamTap(ctx, cmd, send)
	default:
		return &ErrorInfo{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("method %q is not a stream", cmd.Method)}
	}
}

func (h *CommandHandler) streamSubscribe(ctx context.Context, cmd Command, send func(any) error) *ErrorInfo {
	var params SubscribeParams
	if e := decodeParams(cmd, &params); e != nil {
		return e
	}
	if params.Interval == 0 {
		params.Interval = h.opts.DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := h.opts.Subscriptions.Subscribe(ctx, params.Query, params.Interval)
	if err != nil {
		return &ErrorInfo{Code: codeFor(err), Message: err.Error()}
	}
	slog.Info("subscription started", "query", params.Query, "interval_ms", params.Interval)
	defer slog.Info("subscription ended", "query", params.Query)

	for v := range ch {
		if err := send(v); err != nil {
			slog.Debug("subscriber gone", "query", params.Query, "error", err)
			return nil
		}
	}
	return nil
}

func (h *CommandHandler) streamTap(ctx context.Context, cmd Command, send func(any) error) *ErrorInfo {
	var params TapParams
	if e := decodeParams(cmd, &params); e != nil {
		return e
	}
	if len(params.Inputs) == 0 {
		return &ErrorInfo{Code: ErrCodeInvalidParams, Message: core.ErrNoInputs.Error()}
	}
	if h.opts.Taps == nil {
		return &ErrorInfo{Code: ErrCodeInternalError, Message: "taps not available"}
	}

	results := make(chan tap.Result)
	sink := tap.NewSink(params.Inputs, results, tap.WithBufferSize(h.opts.TapBufferSize))
	ctl := tap.NewController(h.opts.Taps.Control(), sink)
	defer ctl.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-results:
			if !ok {
				return nil
			}
			if err := send(r); err != nil {
				slog.Debug("tap subscriber gone", "tap_id", sink.ID(), "error", err)
				return nil
			}
		}
	}
}
