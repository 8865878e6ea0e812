package support

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// StartServerProcess runs "shapectx serve" with extra arguments on a free
// local port and waits until /health answers.
func (testCtx *TestContext) StartServerProcess(extraArgs ...string) error {
	port, err := freePort()
	if err != nil {
		return err
	}
	testCtx.ServerPort = port

	bin := os.Getenv("SHAPECTX_BIN")
	if bin == "" {
		bin = "shapectx"
	}
	args := append([]string{"serve", "--host", testCtx.ServerHost, "--port", strconv.Itoa(port)}, extraArgs...)
	cmd := exec.CommandContext(context.Background(), bin, args...) //nolint:gosec // G204: test binary
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerCmd = cmd

	if err := testCtx.waitForServerReady(); err != nil {
		if stopErr := testCtx.StopServerProcess(); stopErr != nil {
			return fmt.Errorf("server failed to start and also failed to stop: %w; stop error: %w", err, stopErr)
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// StopServerProcess sends SIGTERM and waits for the process to exit.
func (testCtx *TestContext) StopServerProcess() error {
	if testCtx.ServerCmd == nil || testCtx.ServerCmd.Process == nil {
		return nil
	}
	proc := testCtx.ServerCmd.Process

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if killErr := proc.Kill(); killErr != nil {
			return fmt.Errorf("failed to kill server process: %w", killErr)
		}
	}

	done := make(chan error, 1)
	go func() { done <- testCtx.ServerCmd.Wait() }()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("failed to force kill server: %w", err)
		}
		<-done
	}

	testCtx.ServerCmd = nil
	return nil
}

// GetServerURL returns the base URL of the running server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer != nil {
		return testCtx.HTTPTestServer.URL
	}
	return fmt.Sprintf("http://%s:%d", testCtx.ServerHost, testCtx.ServerPort)
}

func (testCtx *TestContext) waitForServerReady() error {
	url := testCtx.GetServerURL() + "/health"
	client := &http.Client{Timeout: time.Second}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url) //nolint:noctx // short polling loop
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("timed out waiting for /health")
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find free port: %w", err)
	}
	defer func() { _ = l.Close() }()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("unexpected listener address")
	}
	return addr.Port, nil
}
