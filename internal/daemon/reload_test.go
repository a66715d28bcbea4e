package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pulse/internal/command"
)

func TestDaemon_ReloadLogLevel(t *testing.T) {
	e := newEnv(t)
	e.write(t, renderConfig("info", false))
	d := startDaemon(t, e)
	assert.Equal(t, "info", d.config.Log.Level)

	e.write(t, renderConfig("debug", false))
	require.NoError(t, d.Reload())
	assert.Equal(t, "debug", d.config.Log.Level)
}

func TestDaemon_ReloadReplacesComponents(t *testing.T) {
	e := newEnv(t)
	e.write(t, renderConfig("info", false))
	d := startDaemon(t, e)
	assert.Equal(t, []string{"in", "drop"}, d.Registry().Names())

	e.write(t, `
pulse:
  log:
    level: info
  metrics:
    enabled: false
  sources:
    in:
      type: generator
      options:
        interval: 5ms
  transforms:
    tag:
      type: add_fields
      inputs: [in]
      options:
        fields:
          env: test
  sinks:
    drop:
      type: blackhole
      inputs: [tag]
`)
	require.NoError(t, d.Reload())
	assert.Equal(t, []string{"in", "tag", "drop"}, d.Registry().Names())

	// The reloaded component is observable through the control socket.
	client := command.NewUDSClient(e.socketPath, 5*time.Second)
	require.Eventually(t, func() bool {
		total, err := client.ComponentTotal(context.Background(), "tag", "events")
		return err == nil && total.Value > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDaemon_ReloadInvalidKeepsRunning(t *testing.T) {
	e := newEnv(t)
	e.write(t, renderConfig("info", false))
	d := startDaemon(t, e)

	e.write(t, renderConfig("info", false)+`
  transforms:
    broken:
      type: no_such_transform
      inputs: [in]
`)
	assert.Error(t, d.Reload())
	assert.Equal(t, []string{"in", "drop"}, d.Registry().Names())
	assert.Equal(t, "info", d.config.Log.Level)
}

func TestDaemon_ReloadViaCommand(t *testing.T) {
	e := newEnv(t)
	e.write(t, renderConfig("info", false))
	d := startDaemon(t, e)

	e.write(t, renderConfig("warn", false))
	client := command.NewUDSClient(e.socketPath, 5*time.Second)
	require.NoError(t, client.ConfigReload(context.Background()))

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, "warn", d.config.Log.Level)
}
