package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"firestige.xyz/pulse/internal/core"
)

// WritePIDFile writes the current process ID to path. An empty path is a
// no-op.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", path, err)
	}

	slog.Debug("PID file written", "path", path, "pid", pid)
	return nil
}

// RemovePIDFile removes the PID file. A missing file is not an error.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", path, err)
	}

	slog.Debug("PID file removed", "path", path)
	return nil
}

// ReadPIDFile returns the process ID stored in path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: no PID file at %s", core.ErrDaemonNotRunning, path)
	}
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Signal sends sig to the daemon recorded in pidFile. It is the fallback
// for stop and reload when the control socket is unreachable.
func Signal(pidFile string, sig syscall.Signal) error {
	pid, err := ReadPIDFile(pidFile)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("%w: process %d has exited", core.ErrDaemonNotRunning, pid)
		}
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	return nil
}
