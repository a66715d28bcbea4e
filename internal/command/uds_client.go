package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"firestige.xyz/pulse/internal/observe"
	"firestige.xyz/pulse/internal/tap"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second // Default timeout
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// rawResponse keeps the result undecoded so callers pick the type.
type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

func (c *UDSClient) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", c.socketPath, err)
	}
	return conn, nil
}

func newRequest(method string, params interface{}) (JSONRPCRequest, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return JSONRPCRequest{}, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}
	return JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      fmt.Sprintf("req-%d", time.Now().UnixNano()),
	}, nil
}

// Call sends a command and waits for response.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	raw, err := c.roundTrip(ctx, method, params)
	if err != nil {
		return nil, err
	}
	resp := &Response{ID: fmt.Sprintf("%v", raw.ID), Error: raw.Error}
	if len(raw.Result) > 0 {
		if err := json.Unmarshal(raw.Result, &resp.Result); err != nil {
			return nil, fmt.Errorf("failed to parse result: %w", err)
		}
	}
	return resp, nil
}

func (c *UDSClient) roundTrip(ctx context.Context, method string, params interface{}) (*rawResponse, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	req, err := newRequest(method, params)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed without response")
	}

	var resp rawResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Verify response ID matches (convert both to string for comparison)
	if respID := fmt.Sprintf("%v", resp.ID); respID != req.ID {
		return nil, fmt.Errorf("response ID mismatch: expected %v, got %v", req.ID, respID)
	}
	return &resp, nil
}

// callInto performs a unary call and decodes its result into out.
func (c *UDSClient) callInto(ctx context.Context, method string, params, out interface{}) error {
	resp, err := c.roundTrip(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// Stream sends a streaming command and calls fn with every result until
// ctx is done, the server ends the stream, or fn returns an error.
// Cancelling ctx closes the connection, which ends the stream server side.
func (c *UDSClient) Stream(ctx context.Context, method string, params interface{}, fn func(json.RawMessage) error) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	req, err := newRequest(method, params)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var resp rawResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if err := fn(resp.Result); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return nil
}

// ComponentsList lists the running components.
func (c *UDSClient) ComponentsList(ctx context.Context) ([]ComponentInfo, error) {
	var out []ComponentInfo
	err := c.callInto(ctx, MethodComponentsList, nil, &out)
	return out, err
}

// MetricsSnapshot returns one aggregated per-component snapshot.
func (c *UDSClient) MetricsSnapshot(ctx context.Context) ([]observe.Total, error) {
	var out []observe.Total
	err := c.callInto(ctx, MethodMetricsSnapshot, nil, &out)
	return out, err
}

// ComponentTotal returns one component's events or bytes total.
func (c *UDSClient) ComponentTotal(ctx context.Context, component, metric string) (observe.Total, error) {
	var out observe.Total
	err := c.callInto(ctx, MethodComponentTotal, ComponentTotalParams{Component: component, Metric: metric}, &out)
	return out, err
}

// DaemonStatus returns daemon status information.
func (c *UDSClient) DaemonStatus(ctx context.Context) (*DaemonStatus, error) {
	var out DaemonStatus
	if err := c.callInto(ctx, MethodDaemonStatus, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfigReload asks the daemon to reload its component configuration.
func (c *UDSClient) ConfigReload(ctx context.Context) error {
	return c.callInto(ctx, MethodConfigReload, nil, nil)
}

// Shutdown asks the daemon to stop.
func (c *UDSClient) Shutdown(ctx context.Context) error {
	return c.callInto(ctx, MethodDaemonShutdown, nil, nil)
}

// Subscribe streams a metric query. Elements are passed undecoded since
// their shape depends on the query.
func (c *UDSClient) Subscribe(ctx context.Context, query string, interval int, fn func(json.RawMessage) error) error {
	return c.Stream(ctx, MethodSubscribe, SubscribeParams{Query: query, Interval: interval}, fn)
}

// Tap streams events leaving the named components.
func (c *UDSClient) Tap(ctx context.Context, inputs []string, fn func(tap.Result) error) error {
	return c.Stream(ctx, MethodTap, TapParams{Inputs: inputs}, func(raw json.RawMessage) error {
		var r tap.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("failed to parse tap result: %w", err)
		}
		return fn(r)
	})
}

// Ping checks that the daemon is alive.
func (c *UDSClient) Ping(ctx context.Context) error {
	_, err := c.DaemonStatus(ctx)
	return err
}
