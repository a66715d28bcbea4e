package cmd

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"firestige.xyz/pulse/internal/command"
	"firestige.xyz/pulse/internal/observe"
	"firestige.xyz/pulse/internal/tap"
)

// MockClient implements Client. Streaming methods replay the values set
// with stream before returning the mocked error.
type MockClient struct {
	mock.Mock
	raw     []json.RawMessage
	results []tap.Result
}

func (m *MockClient) ComponentsList(ctx context.Context) ([]command.ComponentInfo, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]command.ComponentInfo)
	return list, args.Error(1)
}

func (m *MockClient) MetricsSnapshot(ctx context.Context) ([]observe.Total, error) {
	args := m.Called(ctx)
	totals, _ := args.Get(0).([]observe.Total)
	return totals, args.Error(1)
}

func (m *MockClient) DaemonStatus(ctx context.Context) (*command.DaemonStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*command.DaemonStatus)
	return status, args.Error(1)
}

func (m *MockClient) ConfigReload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Subscribe(ctx context.Context, query string, interval int, fn func(json.RawMessage) error) error {
	args := m.Called(ctx, query, interval)
	for _, raw := range m.raw {
		if err := fn(raw); err != nil {
			return err
		}
	}
	return args.Error(0)
}

func (m *MockClient) Tap(ctx context.Context, inputs []string, fn func(tap.Result) error) error {
	args := m.Called(ctx, inputs)
	for _, r := range m.results {
		if err := fn(r); err != nil {
			return err
		}
	}
	return args.Error(0)
}
