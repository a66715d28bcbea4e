package cmd

import (
	"context"
	"encoding/json"

	"firestige.xyz/pulse/internal/command"
	"firestige.xyz/pulse/internal/observe"
	"firestige.xyz/pulse/internal/tap"
)

// Client is the part of the control socket client the commands use.
type Client interface {
	ComponentsList(ctx context.Context) ([]command.ComponentInfo, error)
	MetricsSnapshot(ctx context.Context) ([]observe.Total, error)
	DaemonStatus(ctx context.Context) (*command.DaemonStatus, error)
	ConfigReload(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Subscribe(ctx context.Context, query string, interval int, fn func(json.RawMessage) error) error
	Tap(ctx context.Context, inputs []string, fn func(tap.Result) error) error
}

// newClient is replaced in tests.
var newClient = func() Client {
	return command.NewUDSClient(socketPath, timeout)
}
